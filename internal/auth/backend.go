// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package auth

import (
	"context"
	"time"
)

// Backend is the storage contract every adapter implements.
//
// Lookups return (nil, nil) for absent keys. Conflicts wrap ErrConflict and
// unknown user references wrap ErrNotFound.
type Backend interface {
	// CreateUser assigns the next id and stores the user.
	// Returns an error wrapping ErrConflict if the username is taken.
	CreateUser(ctx context.Context, username, passwordHash string) (*User, error)

	// GetUserByUsername returns the user or nil if absent.
	GetUserByUsername(ctx context.Context, username string) (*User, error)

	// CreateSession stores a session for userID, copying the username.
	// Returns an error wrapping ErrNotFound if the user does not exist.
	CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error

	// GetSession returns the live session for token, or nil if absent or expired.
	GetSession(ctx context.Context, token string) (*Session, error)

	// DeleteSession removes a session. Absent tokens are not an error.
	DeleteSession(ctx context.Context, token string) error

	// DeleteExpiredSessions removes sessions past their expiry. Engines with
	// native expiry may implement this as a no-op.
	DeleteExpiredSessions(ctx context.Context) error
}
