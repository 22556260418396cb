// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package auth

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
	"github.com/samber/oops"
)

// DefaultSessionDuration is how long a login session stays live.
const DefaultSessionDuration = 24 * time.Hour

// Session is a login session. Username is copied from the user at creation.
type Session struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// IsLiveAt reports whether the session is still valid at t.
// A session is live only while ExpiresAt is strictly after t.
func (s *Session) IsLiveAt(t time.Time) bool {
	return s.ExpiresAt.After(t)
}

// GenerateSessionToken returns 128 random bits in canonical hyphenated hex
// form (8-4-4-4-12). No version or variant bits are set, so every bit is
// entropy.
func GenerateSessionToken() (string, error) {
	var raw uuid.UUID
	if _, err := rand.Read(raw[:]); err != nil {
		return "", oops.Code("SESSION_TOKEN_GENERATE_FAILED").
			With("operation", "crypto/rand.Read").
			With("requested_bytes", len(raw)).
			Wrap(err)
	}
	return raw.String(), nil
}
