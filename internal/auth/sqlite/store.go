// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package sqlite provides an SQLite auth.Backend for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/samber/oops"
	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/geekcraft/geekcraft/internal/auth"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store implements auth.Backend on an SQLite database.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Compile-time interface check.
var _ auth.Backend = (*Store)(nil)

// DSN builds a modernc DSN for path with foreign keys and a busy timeout.
func DSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Open opens the database file at path (or MemoryPath) and applies migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, oops.With("operation", "open database").With("path", path).Wrap(err)
	}
	// SQLite serialises writers. One connection also keeps an in-memory
	// database alive and shared.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, oops.With("operation", "ping").With("path", path).Wrap(err)
	}
	if err := Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return New(db), nil
}

// New wraps an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB {
	return s.db
}

// CreateUser inserts a user. The UNIQUE constraint on username rejects duplicates.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*auth.User, error) {
	createdAt := s.now().Truncate(time.Millisecond)

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		username, passwordHash, createdAt.UnixMilli())
	if err != nil {
		if isConstraintViolation(err) {
			return nil, oops.Code(auth.CodeConflict).With("username", username).Wrap(auth.ErrConflict)
		}
		return nil, oops.With("operation", "insert user").With("username", username).Wrap(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, oops.With("operation", "last insert id").Wrap(err)
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
	var (
		u         auth.User
		createdMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username).Scan(&u.ID, &u.Username, &u.PasswordHash, &createdMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "select user").With("username", username).Wrap(err)
	}
	u.CreatedAt = time.UnixMilli(createdMs)
	return &u, nil
}

// CreateSession copies the username from users in the same statement.
func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, user_id, username, created_at, expires_at)
		SELECT ?, id, username, ?, ? FROM users WHERE id = ?`,
		token, s.now().UnixMilli(), expiresAt.UnixMilli(), userID)
	if err != nil {
		return oops.With("operation", "insert session").With("user_id", userID).Wrap(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return oops.With("operation", "rows affected").Wrap(err)
	}
	if n == 0 {
		return oops.Code(auth.CodeNotFound).With("user_id", userID).Wrap(auth.ErrNotFound)
	}
	return nil
}

// GetSession returns the live session or nil, deleting it if expired.
func (s *Store) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	var (
		sess                 auth.Session
		createdMs, expiresMs int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token, user_id, username, created_at, expires_at FROM sessions WHERE token = ?`,
		token).Scan(&sess.Token, &sess.UserID, &sess.Username, &createdMs, &expiresMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "select session").Wrap(err)
	}
	sess.CreatedAt = time.UnixMilli(createdMs)
	sess.ExpiresAt = time.UnixMilli(expiresMs)

	now := s.now()
	if !sess.IsLiveAt(now) {
		//nolint:errcheck // best effort; the sweep removes it otherwise
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM sessions WHERE token = ? AND expires_at <= ?`, token, now.UnixMilli())
		return nil, nil
	}
	return &sess, nil
}

// DeleteSession removes a session if present.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return oops.With("operation", "delete session").Wrap(err)
	}
	return nil
}

// DeleteExpiredSessions removes every session whose expiry has passed.
func (s *Store) DeleteExpiredSessions(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= ?`, s.now().UnixMilli()); err != nil {
		return oops.With("operation", "delete expired sessions").Wrap(err)
	}
	return nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return oops.With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return oops.With("operation", "close").Wrap(err)
	}
	return nil
}

// isConstraintViolation matches SQLITE_CONSTRAINT and its extended codes
// (UNIQUE, PRIMARYKEY) by result code rather than message text.
func isConstraintViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
		code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY ||
		code&0xff == sqlite3.SQLITE_CONSTRAINT
}
