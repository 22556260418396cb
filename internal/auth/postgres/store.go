// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package postgres provides a PostgreSQL auth.Backend.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"

	"github.com/geekcraft/geekcraft/internal/auth"
)

// poolIface is the subset of pgxpool.Pool the store uses.
// pgxmock.PgxPoolIface satisfies it in tests.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements auth.Backend on the users and sessions tables.
type Store struct {
	pool poolIface
	now  func() time.Time
}

// Compile-time interface check.
var _ auth.Backend = (*Store)(nil)

// New wraps an existing pool.
func New(pool poolIface) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Open migrates the schema at databaseURL and connects a pool.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	if err := Migrate(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.With("operation", "create pool").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.With("operation", "ping").Wrap(err)
	}
	return New(pool), nil
}

// CreateUser inserts a user and returns it with its generated id.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*auth.User, error) {
	createdAt := s.now().UTC().Truncate(time.Microsecond)

	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, username, passwordHash, createdAt).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code(auth.CodeConflict).With("username", username).Wrap(auth.ErrConflict)
		}
		return nil, oops.With("operation", "insert user").With("username", username).Wrap(err)
	}

	return &auth.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt,
	}, nil
}

// GetUserByUsername returns the user or nil.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*auth.User, error) {
	var u auth.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "select user").With("username", username).Wrap(err)
	}
	return &u, nil
}

// CreateSession copies the username from users in the same statement, so a
// missing user inserts nothing.
func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	createdAt := s.now().UTC().Truncate(time.Microsecond)

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO sessions (token, user_id, username, created_at, expires_at)
		SELECT $1::text, id, username, $3::timestamptz, $4::timestamptz
		FROM users
		WHERE id = $2
	`, token, userID, createdAt, expiresAt.UTC())
	if err != nil {
		if isForeignKeyViolation(err) {
			return oops.Code(auth.CodeNotFound).With("user_id", userID).Wrap(auth.ErrNotFound)
		}
		return oops.With("operation", "insert session").With("user_id", userID).Wrap(err)
	}
	if tag.RowsAffected() == 0 {
		return oops.Code(auth.CodeNotFound).With("user_id", userID).Wrap(auth.ErrNotFound)
	}
	return nil
}

// GetSession returns the live session or nil. Expired rows found here are
// deleted on a best-effort basis.
func (s *Store) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	var sess auth.Session
	err := s.pool.QueryRow(ctx, `
		SELECT token, user_id, username, created_at, expires_at
		FROM sessions
		WHERE token = $1
	`, token).Scan(&sess.Token, &sess.UserID, &sess.Username, &sess.CreatedAt, &sess.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "select session").Wrap(err)
	}

	now := s.now()
	if !sess.IsLiveAt(now) {
		//nolint:errcheck // best effort; the sweep removes it otherwise
		_, _ = s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1 AND expires_at <= $2`, token, now.UTC())
		return nil, nil
	}
	return &sess, nil
}

// DeleteSession removes a session if present.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token); err != nil {
		return oops.With("operation", "delete session").Wrap(err)
	}
	return nil
}

// DeleteExpiredSessions removes every session whose expiry has passed.
func (s *Store) DeleteExpiredSessions(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, s.now().UTC()); err != nil {
		return oops.With("operation", "delete expired sessions").Wrap(err)
	}
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return oops.With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close closes the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation
}
