// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package authdb selects one storage adapter from configuration and gives
// the auth service a uniform, instrumented view of it.
package authdb

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/geekcraft/geekcraft/internal/auth"
)

// Store is a Backend that can also be probed and released.
type Store interface {
	auth.Backend
	Ping(ctx context.Context) error
	Close() error
}

// Operation names used in metrics and error context.
const (
	OpCreateUser            = "create_user"
	OpGetUserByUsername     = "get_user_by_username"
	OpCreateSession         = "create_session"
	OpGetSession            = "get_session"
	OpDeleteSession         = "delete_session"
	OpDeleteExpiredSessions = "delete_expired_sessions"
	OpPing                  = "ping"
)

// Database implements auth.Backend over exactly one adapter.
type Database struct {
	store   Store
	kind    Kind
	logger  *slog.Logger
	metrics *Metrics
	openers map[string]Opener
}

var _ auth.Backend = (*Database)(nil)

// Option configures a Database.
type Option func(*Database)

// WithMetrics records operation durations into m.
func WithMetrics(m *Metrics) Option {
	return func(d *Database) {
		d.metrics = m
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Database) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithOpener replaces the constructor Open uses for adapter ("postgres",
// "sqlite", "redis" or "mongodb").
func WithOpener(adapter string, open Opener) Option {
	return func(d *Database) {
		if d.openers == nil {
			d.openers = make(map[string]Opener)
		}
		d.openers[adapter] = open
	}
}

// New wraps an already opened adapter.
func New(kind Kind, store Store, opts ...Option) *Database {
	d := &Database{store: store, kind: kind, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Kind reports which adapter is in use.
func (d *Database) Kind() Kind {
	return d.kind
}

// CreateUser implements auth.Backend.
func (d *Database) CreateUser(ctx context.Context, username, passwordHash string) (*auth.User, error) {
	started := time.Now()
	user, err := d.store.CreateUser(ctx, username, passwordHash)
	return user, d.finish(OpCreateUser, started, err)
}

// GetUserByUsername implements auth.Backend.
func (d *Database) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	started := time.Now()
	user, err := d.store.GetUserByUsername(ctx, username)
	return user, d.finish(OpGetUserByUsername, started, err)
}

// CreateSession implements auth.Backend.
func (d *Database) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	started := time.Now()
	return d.finish(OpCreateSession, started, d.store.CreateSession(ctx, token, userID, expiresAt))
}

// GetSession implements auth.Backend.
func (d *Database) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	started := time.Now()
	session, err := d.store.GetSession(ctx, token)
	return session, d.finish(OpGetSession, started, err)
}

// DeleteSession implements auth.Backend.
func (d *Database) DeleteSession(ctx context.Context, token string) error {
	started := time.Now()
	return d.finish(OpDeleteSession, started, d.store.DeleteSession(ctx, token))
}

// DeleteExpiredSessions implements auth.Backend.
func (d *Database) DeleteExpiredSessions(ctx context.Context) error {
	started := time.Now()
	return d.finish(OpDeleteExpiredSessions, started, d.store.DeleteExpiredSessions(ctx))
}

// Ping checks that the adapter is reachable.
func (d *Database) Ping(ctx context.Context) error {
	started := time.Now()
	return d.finish(OpPing, started, d.store.Ping(ctx))
}

// Ready reports whether Ping succeeds within timeout.
func (d *Database) Ready(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := d.Ping(ctx); err != nil {
		d.logger.WarnContext(ctx, "database not ready", "backend", d.kind, "error", err)
		return false
	}
	return true
}

// Close releases the adapter.
func (d *Database) Close() error {
	if err := d.store.Close(); err != nil {
		return oops.Code(auth.CodeBackend).
			With("backend", string(d.kind)).
			With("operation", "close").
			Wrap(err)
	}
	return nil
}

// finish records the duration and classifies err. Conflict and NotFound
// pass through untouched; anything else becomes a BackendError.
func (d *Database) finish(operation string, started time.Time, err error) error {
	switch {
	case err == nil:
		d.metrics.observe(d.kind, operation, resultOK, started)
		return nil
	case errors.Is(err, auth.ErrConflict):
		d.metrics.observe(d.kind, operation, resultConflict, started)
		return err
	case errors.Is(err, auth.ErrNotFound):
		d.metrics.observe(d.kind, operation, resultNotFound, started)
		return err
	default:
		d.metrics.observe(d.kind, operation, resultError, started)
		return oops.Code(auth.CodeBackend).
			With("backend", string(d.kind)).
			With("operation", operation).
			Wrap(err)
	}
}
