// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekcraft/geekcraft/internal/auth"
	"github.com/geekcraft/geekcraft/internal/authdb"
	"github.com/geekcraft/geekcraft/internal/observability"
	"github.com/geekcraft/geekcraft/pkg/errutil"
)

// TestMain points XDG directories at a scratch area so no command reads or
// writes the real home directory.
func TestMain(m *testing.M) {
	scratch, err := os.MkdirTemp("", "geekcraft-cmd-")
	if err != nil {
		panic(err)
	}
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(scratch, "config"))
	_ = os.Setenv("XDG_DATA_HOME", filepath.Join(scratch, "data"))

	code := m.Run()

	_ = os.RemoveAll(scratch)
	os.Exit(code)
}

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(ctx context.Context, deps *Deps, stdin string, args ...string) result {
	cmd := newRootCmd(deps)
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

// sqliteArgs points every invocation at the same database file so state
// survives across commands.
func sqliteArgs(t *testing.T) []string {
	t.Helper()
	t.Setenv("GEEKCRAFT_AUTH_COST", "4")
	path := filepath.Join(t.TempDir(), "auth.db")
	return []string{"--backend", "sqlite", "--db-path", path, "--log-format", "text"}
}

func TestRootCmd_ListsSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Subset(t, names, []string{"serve", "migrate", "sweep", "user", "version"})
}

func TestVersionCmd(t *testing.T) {
	res := execute(context.Background(), nil, "", "version")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "geekcraft dev")
}

func TestUserCommands_EndToEnd(t *testing.T) {
	ctx := context.Background()
	base := sqliteArgs(t)
	run := func(stdin string, args ...string) result {
		return execute(ctx, nil, stdin, append(args, base...)...)
	}

	res := run("", "user", "register", "alice", "--password", "secret1")
	require.NoError(t, res.err, res.stderr)
	var reg auth.Response
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &reg))
	assert.Equal(t, auth.Response{Success: true, Message: "User alice registered successfully", Username: "alice"}, reg)

	res = run("secret1\n", "user", "login", "alice")
	require.NoError(t, res.err, res.stderr)
	var login auth.Response
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &login))
	require.True(t, login.Success)
	require.NotEmpty(t, login.Token)

	res = run("", "user", "validate", login.Token)
	require.NoError(t, res.err, res.stderr)
	var valid validateOutput
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &valid))
	assert.True(t, valid.Valid)
	require.NotNil(t, valid.Session)
	assert.Equal(t, "alice", valid.Session.Username)

	res = run("", "user", "logout", login.Token)
	require.NoError(t, res.err, res.stderr)

	res = run("", "user", "validate", login.Token)
	errutil.AssertErrorCode(t, res.err, "AUTH_REJECTED")
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &valid))
	assert.False(t, valid.Valid)
}

func TestUserRegister_Rejected(t *testing.T) {
	base := sqliteArgs(t)
	res := execute(context.Background(), nil, "", append([]string{"user", "register", "ab", "--password", "secret1"}, base...)...)

	errutil.AssertErrorCode(t, res.err, "AUTH_REJECTED")
	var resp auth.Response
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "Username must be between 3 and 32 characters", resp.Message)
}

func TestUserLogin_PasswordNeverLogged(t *testing.T) {
	base := sqliteArgs(t)
	res := execute(context.Background(), nil, "", append([]string{"user", "login", "nobody", "--password", "hunter22", "--log-level", "debug"}, base...)...)

	errutil.AssertErrorCode(t, res.err, "AUTH_REJECTED")
	assert.NotContains(t, res.stderr, "hunter22")
}

func TestMigrateAndSweep(t *testing.T) {
	base := sqliteArgs(t)

	res := execute(context.Background(), nil, "", append([]string{"migrate"}, base...)...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Schema ready for relational backend")

	res = execute(context.Background(), nil, "", append([]string{"sweep"}, base...)...)
	require.NoError(t, res.err, res.stderr)
	assert.Contains(t, res.stdout, "Expired sessions removed")
}

func TestMigrateDown_RequiresPostgres(t *testing.T) {
	base := sqliteArgs(t)
	res := execute(context.Background(), nil, "", append([]string{"migrate", "--down"}, base...)...)
	errutil.AssertErrorCode(t, res.err, "MIGRATION_FAILED")
}

func TestDefaultSQLitePathIsCreated(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	res := execute(context.Background(), nil, "", "migrate", "--backend", "sqlite", "--log-format", "text")
	require.NoError(t, res.err, res.stderr)
	assert.FileExists(t, filepath.Join(os.Getenv("XDG_DATA_HOME"), "geekcraft", "auth.db"))
}

func TestConfigFileFromXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "geekcraft"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "geekcraft", "config.yaml"),
		[]byte("database:\n  backend: cassandra\n"), 0o600))

	res := execute(context.Background(), nil, "", "sweep")
	errutil.AssertErrorCode(t, res.err, "CONFIG_INVALID")
}

func TestInvalidConfig(t *testing.T) {
	res := execute(context.Background(), nil, "", "sweep", "--backend", "cassandra")
	errutil.AssertErrorCode(t, res.err, "CONFIG_INVALID")
}

// fakeObservability records lifecycle calls and cancels serve on Start.
type fakeObservability struct {
	registry *prometheus.Registry
	ready    observability.ReadinessChecker
	onStart  func()
	started  atomic.Bool
	stopped  atomic.Bool
}

func (f *fakeObservability) Start() (<-chan error, error) {
	f.started.Store(true)
	f.onStart()
	return make(chan error), nil
}

func (f *fakeObservability) Stop(context.Context) error {
	f.stopped.Store(true)
	return nil
}

func (f *fakeObservability) Addr() string                    { return "fake:0" }
func (f *fakeObservability) Registry() prometheus.Registerer { return f.registry }

func TestServe_StartsAndShutsDown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := &fakeObservability{registry: prometheus.NewRegistry(), onStart: cancel}
	var opened atomic.Int32
	deps := &Deps{
		ObservabilityServerFactory: func(_, _ string, ready observability.ReadinessChecker, _ *slog.Logger) ObservabilityServer {
			fake.ready = ready
			return fake
		},
		DatabaseOpener: func(ctx context.Context, cfg authdb.Config, logger *slog.Logger, opts ...authdb.Option) (*authdb.Database, error) {
			opened.Add(1)
			return authdb.Open(ctx, cfg, logger, opts...)
		},
	}

	res := execute(ctx, deps, "", "serve", "--metrics-addr", "127.0.0.1:0", "--log-format", "text")
	require.NoError(t, res.err, res.stderr)

	assert.True(t, fake.started.Load())
	assert.True(t, fake.stopped.Load())
	assert.Equal(t, int32(1), opened.Load())
	assert.True(t, fake.ready(), "memory backend is always ready")

	// Service metrics were registered on the server's registry.
	assert.Panics(t, func() { auth.NewMetrics(fake.registry) })
	assert.Panics(t, func() { authdb.NewMetrics(fake.registry) })
}
