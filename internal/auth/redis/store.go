// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package redis provides a Redis auth.Backend.
//
// Layout:
//   - users:         hash, username -> JSON user record
//   - users_by_id:   hash, id -> JSON user record
//   - next_user_id:  counter advanced with INCR
//   - session:<tok>: JSON session record with a TTL matching its expiry
//
// CreateUser checks the username and then increments the counter in separate
// round trips. Two concurrent registrations of the same name can both pass
// the check; the later write wins the users entry and the earlier id is left
// orphaned in users_by_id. Deployments that need strict uniqueness under
// concurrent registration should use the relational or document backends.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/geekcraft/geekcraft/internal/auth"
)

// Key names.
const (
	UsersKey         = "users"
	UsersByIDKey     = "users_by_id"
	NextUserIDKey    = "next_user_id"
	SessionKeyPrefix = "session:"
)

type userRecord struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	CreatedAt    int64  `json:"created_at"`
}

type sessionRecord struct {
	Token     string `json:"token"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
}

// Store implements auth.Backend on Redis.
type Store struct {
	client *goredis.Client
	now    func() time.Time
}

// Compile-time interface check.
var _ auth.Backend = (*Store)(nil)

// New wraps an existing client.
func New(client *goredis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

// Open connects to the Redis server at url and pings it.
func Open(ctx context.Context, url string) (*Store, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, oops.With("operation", "parse url").Wrap(err)
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.With("operation", "ping").With("addr", opts.Addr).Wrap(err)
	}
	return New(client), nil
}

// SessionKey returns the key holding token's session.
func SessionKey(token string) string {
	return SessionKeyPrefix + token
}

// CreateUser stores a user under both hashes. See the package doc for the
// uniqueness race.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*auth.User, error) {
	exists, err := s.client.HExists(ctx, UsersKey, username).Result()
	if err != nil {
		return nil, oops.With("operation", "check username").With("username", username).Wrap(err)
	}
	if exists {
		return nil, oops.Code(auth.CodeConflict).With("username", username).Wrap(auth.ErrConflict)
	}

	id, err := s.client.Incr(ctx, NextUserIDKey).Result()
	if err != nil {
		return nil, oops.With("operation", "increment user id").Wrap(err)
	}

	createdAt := s.now().Truncate(time.Millisecond)
	data, err := json.Marshal(userRecord{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    createdAt.UnixMilli(),
	})
	if err != nil {
		return nil, oops.With("operation", "encode user").Wrap(err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, UsersKey, username, data)
		pipe.HSet(ctx, UsersByIDKey, strconv.FormatInt(id, 10), data)
		return nil
	})
	if err != nil {
		return nil, oops.With("operation", "write user").With("user_id", id).Wrap(err)
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
	raw, err := s.client.HGet(ctx, UsersKey, username).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "get user").With("username", username).Wrap(err)
	}
	return decodeUser(raw)
}

// CreateSession writes the session with a TTL of expiresAt minus now.
// A session that is already expired is not written since no lookup could
// return it.
func (s *Store) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	raw, err := s.client.HGet(ctx, UsersByIDKey, strconv.FormatInt(userID, 10)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return oops.Code(auth.CodeNotFound).With("user_id", userID).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.With("operation", "get user by id").With("user_id", userID).Wrap(err)
	}
	user, err := decodeUser(raw)
	if err != nil {
		return err
	}

	now := s.now()
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(sessionRecord{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: now.UnixMilli(),
		ExpiresAt: expiresAt.UnixMilli(),
	})
	if err != nil {
		return oops.With("operation", "encode session").Wrap(err)
	}

	if err := s.client.Set(ctx, SessionKey(token), data, ttl).Err(); err != nil {
		return oops.With("operation", "set session").With("user_id", userID).Wrap(err)
	}
	return nil
}

// GetSession returns the live session or nil. The expiry is re-checked
// because a read can race the server's own eviction.
func (s *Store) GetSession(ctx context.Context, token string) (*auth.Session, error) {
	raw, err := s.client.Get(ctx, SessionKey(token)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "get session").Wrap(err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.With("operation", "decode session").Wrap(err)
	}
	sess := &auth.Session{
		Token:     rec.Token,
		UserID:    rec.UserID,
		Username:  rec.Username,
		CreatedAt: time.UnixMilli(rec.CreatedAt),
		ExpiresAt: time.UnixMilli(rec.ExpiresAt),
	}

	if !sess.IsLiveAt(s.now()) {
		//nolint:errcheck // best effort; the TTL removes it otherwise
		_ = s.client.Del(ctx, SessionKey(token)).Err()
		return nil, nil
	}
	return sess, nil
}

// DeleteSession removes a session if present.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, SessionKey(token)).Err(); err != nil {
		return oops.With("operation", "delete session").Wrap(err)
	}
	return nil
}

// DeleteExpiredSessions is a no-op. Session keys carry their own TTL.
func (s *Store) DeleteExpiredSessions(context.Context) error {
	return nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return oops.With("operation", "ping").Wrap(err)
	}
	return nil
}

// Close closes the client.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return oops.With("operation", "close").Wrap(err)
	}
	return nil
}

func decodeUser(raw []byte) (*auth.User, error) {
	var rec userRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.With("operation", "decode user").Wrap(err)
	}
	return &auth.User{
		ID:           rec.ID,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		CreatedAt:    time.UnixMilli(rec.CreatedAt),
	}, nil
}
