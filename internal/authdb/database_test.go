// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package authdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekcraft/geekcraft/internal/auth"
	"github.com/geekcraft/geekcraft/internal/auth/authtest"
	"github.com/geekcraft/geekcraft/internal/auth/memory"
	"github.com/geekcraft/geekcraft/pkg/errutil"
)

// failingStore fails every call with err.
type failingStore struct {
	*memory.Store
	err error
}

func (f *failingStore) GetSession(context.Context, string) (*auth.Session, error) { return nil, f.err }
func (f *failingStore) DeleteSession(context.Context, string) error              { return f.err }
func (f *failingStore) Ping(context.Context) error                               { return f.err }
func (f *failingStore) Close() error                                             { return f.err }

func TestParseKind(t *testing.T) {
	tests := []struct {
		in   string
		want Kind
	}{
		{"memory", KindMemory},
		{"InMemory", KindMemory},
		{"relational", KindRelational},
		{"postgres", KindRelational},
		{"sqlite", KindRelational},
		{"keyvalue", KindKeyValue},
		{"redis", KindKeyValue},
		{"document", KindDocument},
		{" mongodb ", KindDocument},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := ParseKind("cassandra")
		errutil.AssertErrorCode(t, err, "AUTHDB_UNKNOWN_BACKEND")
	})
}

func TestDatabase_BackendContract(t *testing.T) {
	authtest.RunBackendContract(t, func(t *testing.T) auth.Backend {
		return New(KindMemory, memory.New(), WithMetrics(NewMetrics(prometheus.NewRegistry())))
	}, authtest.Options{Writers: 100})
}

func TestDatabase_ErrorClassification(t *testing.T) {
	ctx := context.Background()

	t.Run("conflict passes through", func(t *testing.T) {
		db := New(KindMemory, memory.New())
		_, err := db.CreateUser(ctx, "bob", "h")
		require.NoError(t, err)
		_, err = db.CreateUser(ctx, "bob", "h2")
		assert.ErrorIs(t, err, auth.ErrConflict)
		errutil.AssertErrorCode(t, err, auth.CodeConflict)
	})

	t.Run("not found passes through", func(t *testing.T) {
		db := New(KindMemory, memory.New())
		err := db.CreateSession(ctx, "tok", 99, time.Now().Add(time.Hour))
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("other errors become backend errors", func(t *testing.T) {
		cause := errors.New("connection refused")
		db := New(KindKeyValue, &failingStore{Store: memory.New(), err: cause})

		_, err := db.GetSession(ctx, "tok")
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		errutil.AssertErrorCode(t, err, auth.CodeBackend)
		errutil.AssertErrorContext(t, err, "backend", "keyvalue")
		errutil.AssertErrorContext(t, err, "operation", OpGetSession)
	})

	t.Run("close failure is a backend error", func(t *testing.T) {
		db := New(KindDocument, &failingStore{Store: memory.New(), err: errors.New("disconnect")})
		errutil.AssertErrorCode(t, db.Close(), auth.CodeBackend)
	})
}

func TestDatabase_Metrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	db := New(KindMemory, memory.New(), WithMetrics(m))

	_, err := db.CreateUser(ctx, "alice", "h")
	require.NoError(t, err)
	_, _ = db.CreateUser(ctx, "alice", "h")
	_, err = db.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)

	// create_user/ok, create_user/conflict, get_user_by_username/ok
	assert.Equal(t, 3, testutil.CollectAndCount(m.Duration))
}

func TestDatabase_Ready(t *testing.T) {
	ctx := context.Background()
	assert.True(t, New(KindMemory, memory.New()).Ready(ctx, time.Second))

	down := New(KindKeyValue, &failingStore{Store: memory.New(), err: errors.New("down")})
	assert.False(t, down.Ready(ctx, time.Second))
}

func TestOpen_Memory(t *testing.T) {
	db, err := Open(context.Background(), Config{Backend: KindMemory}, nil)
	require.NoError(t, err)
	assert.Equal(t, KindMemory, db.Kind())
	require.NoError(t, db.Ping(context.Background()))
	require.NoError(t, db.Close())
}

func TestOpen_SQLiteFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auth.db")

	db, err := Open(ctx, Config{Backend: KindRelational, Path: path}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.CreateUser(ctx, "alice", "h")
	require.NoError(t, err)
	assert.Equal(t, KindRelational, db.Kind())
}

func TestOpen_MissingLocation(t *testing.T) {
	tests := []Config{
		{Backend: KindRelational},
		{Backend: KindKeyValue},
		{Backend: KindDocument},
		{Backend: Kind("bogus")},
	}
	for _, cfg := range tests {
		t.Run(string(cfg.Backend), func(t *testing.T) {
			_, err := Open(context.Background(), cfg, nil)
			errutil.AssertErrorCode(t, err, auth.CodeStartup)
		})
	}
}

func TestConfig_AdapterRouting(t *testing.T) {
	tests := []struct {
		cfg      Config
		adapter  string
		location string
	}{
		{Config{Backend: KindRelational, Path: "postgres://u:p@db/geekcraft"}, "postgres", "postgres://u:p@db/geekcraft"},
		{Config{Backend: KindRelational, Path: "postgresql://db/geekcraft"}, "postgres", "postgresql://db/geekcraft"},
		{Config{Backend: KindRelational, Path: "/var/lib/geekcraft/auth.db"}, "sqlite", "/var/lib/geekcraft/auth.db"},
		{Config{Backend: KindRelational, Path: ":memory:"}, "sqlite", ":memory:"},
		{Config{Backend: KindKeyValue, URL: "redis://localhost:6379/0"}, "redis", "redis://localhost:6379/0"},
		{Config{Backend: KindDocument, URL: "mongodb://localhost/geekcraft"}, "mongodb", "mongodb://localhost/geekcraft"},
	}
	for _, tt := range tests {
		t.Run(tt.adapter+" "+tt.location, func(t *testing.T) {
			adapter, location, err := tt.cfg.adapter()
			require.NoError(t, err)
			assert.Equal(t, tt.adapter, adapter)
			assert.Equal(t, tt.location, location)
		})
	}
}

func TestOpen_RetriesUntilReachable(t *testing.T) {
	var calls int
	open := func(context.Context, string) (Store, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection refused")
		}
		return memory.New(), nil
	}

	db, err := Open(context.Background(), Config{
		Backend:        KindKeyValue,
		URL:            "redis://localhost:6379",
		ConnectRetries: 5,
		RetryBase:      time.Millisecond,
	}, nil, WithOpener("redis", open))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, KindKeyValue, db.Kind())
}

func TestOpen_RetriesExhaustedIsStartupError(t *testing.T) {
	var calls int
	open := func(context.Context, string) (Store, error) {
		calls++
		return nil, errors.New("no reachable servers")
	}

	_, err := Open(context.Background(), Config{
		Backend:        KindDocument,
		URL:            "mongodb://localhost",
		ConnectRetries: 2,
		RetryBase:      time.Millisecond,
	}, nil, WithOpener("mongodb", open))
	errutil.AssertErrorCode(t, err, auth.CodeStartup)
	assert.Contains(t, err.Error(), "no reachable servers")
	assert.Equal(t, 3, calls)
}

func TestOpen_SQLiteIsNotRetried(t *testing.T) {
	var calls int
	open := func(context.Context, string) (Store, error) {
		calls++
		return nil, errors.New("unable to open database file")
	}

	_, err := Open(context.Background(), Config{
		Backend:        KindRelational,
		Path:           "/nonexistent/auth.db",
		ConnectRetries: 5,
		RetryBase:      time.Millisecond,
	}, nil, WithOpener("sqlite", open))
	errutil.AssertErrorCode(t, err, auth.CodeStartup)
	assert.Equal(t, 1, calls)
}

func TestOpen_CancelledContextStopsRetry(t *testing.T) {
	open := func(context.Context, string) (Store, error) {
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Open(ctx, Config{
		Backend:        KindRelational,
		Path:           "postgres://localhost/geekcraft",
		ConnectRetries: 100,
		RetryBase:      time.Hour,
	}, nil, WithOpener("postgres", open))
	errutil.AssertErrorCode(t, err, auth.CodeStartup)
}

func TestWithOpener_ScopedToDatabase(t *testing.T) {
	stub := func(context.Context, string) (Store, error) { return memory.New(), nil }

	overridden := New(KindKeyValue, nil, WithOpener("redis", stub))
	_, err := overridden.opener("redis")(context.Background(), "redis://unused")
	require.NoError(t, err)

	plain := New(KindKeyValue, nil)
	assert.Nil(t, plain.openers)
	for _, adapter := range []string{"postgres", "sqlite", "redis", "mongodb"} {
		assert.NotNil(t, plain.opener(adapter), adapter)
	}
	assert.Nil(t, plain.opener("memory"))
}
