// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package authtest provides a conformance suite for auth.Backend adapters.
package authtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geekcraft/geekcraft/internal/auth"
)

// Factory returns an empty backend for a single subtest.
type Factory func(t *testing.T) auth.Backend

// Options tunes the suite for slower engines.
type Options struct {
	// Writers is the number of concurrent registrations in the stress case.
	Writers int
}

// timePrecision covers engines that store milliseconds.
const timePrecision = 2 * time.Millisecond

// RunBackendContract runs the Backend conformance suite against fresh
// backends produced by newBackend.
func RunBackendContract(t *testing.T, newBackend Factory, opts Options) {
	t.Helper()
	if opts.Writers <= 0 {
		opts.Writers = 32
	}

	t.Run("create user assigns increasing positive ids", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		first, err := b.CreateUser(ctx, "alice", "hash-a")
		require.NoError(t, err)
		second, err := b.CreateUser(ctx, "bob", "hash-b")
		require.NoError(t, err)

		assert.Positive(t, first.ID)
		assert.Greater(t, second.ID, first.ID)
		assert.Equal(t, "alice", first.Username)
		assert.Equal(t, "hash-a", first.PasswordHash)
		assert.False(t, first.CreatedAt.IsZero())
	})

	t.Run("duplicate username conflicts and keeps original", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		original, err := b.CreateUser(ctx, "bob", "hash-original")
		require.NoError(t, err)

		dup, err := b.CreateUser(ctx, "bob", "hash-other")
		require.Error(t, err)
		assert.Nil(t, dup)
		assert.ErrorIs(t, err, auth.ErrConflict)

		stored, err := b.GetUserByUsername(ctx, "bob")
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, original.ID, stored.ID)
		assert.Equal(t, "hash-original", stored.PasswordHash)
	})

	t.Run("get user by username returns stored record", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		created, err := b.CreateUser(ctx, "carol", "hash-c")
		require.NoError(t, err)

		got, err := b.GetUserByUsername(ctx, "carol")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "hash-c", got.PasswordHash)
		assert.WithinDuration(t, created.CreatedAt, got.CreatedAt, timePrecision)
	})

	t.Run("get user by username returns nil when absent", func(t *testing.T) {
		b := newBackend(t)

		got, err := b.GetUserByUsername(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("create session for unknown user is not found", func(t *testing.T) {
		b := newBackend(t)

		err := b.CreateSession(context.Background(), "tok-missing", 424242, time.Now().Add(time.Hour))
		require.Error(t, err)
		assert.ErrorIs(t, err, auth.ErrNotFound)
	})

	t.Run("session round trip copies username", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		user, err := b.CreateUser(ctx, "dave", "hash-d")
		require.NoError(t, err)

		expiresAt := time.Now().Add(time.Hour)
		require.NoError(t, b.CreateSession(ctx, "tok-dave", user.ID, expiresAt))

		session, err := b.GetSession(ctx, "tok-dave")
		require.NoError(t, err)
		require.NotNil(t, session)
		assert.Equal(t, "tok-dave", session.Token)
		assert.Equal(t, user.ID, session.UserID)
		assert.Equal(t, "dave", session.Username)
		assert.WithinDuration(t, expiresAt, session.ExpiresAt, timePrecision)
		assert.True(t, session.ExpiresAt.After(session.CreatedAt))
	})

	t.Run("get session returns nil when absent", func(t *testing.T) {
		b := newBackend(t)

		session, err := b.GetSession(context.Background(), "never-issued")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("session created already expired is never returned", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		user, err := b.CreateUser(ctx, "erin", "hash-e")
		require.NoError(t, err)
		require.NoError(t, b.CreateSession(ctx, "tok-past", user.ID, time.Now().Add(-time.Minute)))

		session, err := b.GetSession(ctx, "tok-past")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("session is not returned once it expires", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		user, err := b.CreateUser(ctx, "frank", "hash-f")
		require.NoError(t, err)
		require.NoError(t, b.CreateSession(ctx, "tok-short", user.ID, time.Now().Add(100*time.Millisecond)))

		session, err := b.GetSession(ctx, "tok-short")
		require.NoError(t, err)
		require.NotNil(t, session)

		time.Sleep(250 * time.Millisecond)

		session, err = b.GetSession(ctx, "tok-short")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("delete session is idempotent", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		user, err := b.CreateUser(ctx, "grace", "hash-g")
		require.NoError(t, err)
		require.NoError(t, b.CreateSession(ctx, "tok-grace", user.ID, time.Now().Add(time.Hour)))

		require.NoError(t, b.DeleteSession(ctx, "tok-grace"))
		require.NoError(t, b.DeleteSession(ctx, "tok-grace"))
		require.NoError(t, b.DeleteSession(ctx, "never-issued"))

		session, err := b.GetSession(ctx, "tok-grace")
		require.NoError(t, err)
		assert.Nil(t, session)
	})

	t.Run("delete expired sessions keeps live ones", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		user, err := b.CreateUser(ctx, "heidi", "hash-h")
		require.NoError(t, err)
		require.NoError(t, b.CreateSession(ctx, "tok-live", user.ID, time.Now().Add(time.Hour)))
		require.NoError(t, b.CreateSession(ctx, "tok-dead", user.ID, time.Now().Add(-time.Hour)))

		require.NoError(t, b.DeleteExpiredSessions(ctx))

		live, err := b.GetSession(ctx, "tok-live")
		require.NoError(t, err)
		assert.NotNil(t, live)

		dead, err := b.GetSession(ctx, "tok-dead")
		require.NoError(t, err)
		assert.Nil(t, dead)
	})

	t.Run("concurrent distinct registrations get distinct ids", func(t *testing.T) {
		ctx := context.Background()
		b := newBackend(t)

		ids := make(chan int64, opts.Writers)
		errs := make(chan error, opts.Writers)
		var wg sync.WaitGroup
		for i := range opts.Writers {
			wg.Add(1)
			go func(n int) {
				defer wg.Done()
				user, err := b.CreateUser(ctx, fmt.Sprintf("player_%03d", n), "hash")
				if err != nil {
					errs <- err
					return
				}
				ids <- user.ID
			}(i)
		}
		wg.Wait()
		close(ids)
		close(errs)

		for err := range errs {
			require.NoError(t, err)
		}
		seen := make(map[int64]bool, opts.Writers)
		for id := range ids {
			assert.False(t, seen[id], "id %d assigned twice", id)
			seen[id] = true
		}
		assert.Len(t, seen, opts.Writers)

		for i := range opts.Writers {
			u, err := b.GetUserByUsername(ctx, fmt.Sprintf("player_%03d", i))
			require.NoError(t, err)
			require.NotNil(t, u)
			assert.True(t, seen[u.ID])
		}
	})
}
