// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package memory provides a process-local auth.Backend. State is lost on exit.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/geekcraft/geekcraft/internal/auth"
)

// Store keeps users and sessions in maps, each with its own lock.
//
// Lock order is usersByName, then nextID, then usersByID. sessions is never
// held together with another lock.
type Store struct {
	usersByNameMu sync.RWMutex
	usersByName   map[string]*auth.User

	nextIDMu sync.Mutex
	nextID   int64

	usersByIDMu sync.RWMutex
	usersByID   map[int64]*auth.User

	sessionsMu sync.RWMutex
	sessions   map[string]*auth.Session

	now func() time.Time
}

// Compile-time interface check.
var _ auth.Backend = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		usersByName: make(map[string]*auth.User),
		nextID:      1,
		usersByID:   make(map[int64]*auth.User),
		sessions:    make(map[string]*auth.Session),
		now:         time.Now,
	}
}

// CreateUser stores a user. The existence check and id assignment happen
// under the usersByName lock so concurrent registrations of one name
// cannot both succeed.
func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (*auth.User, error) {
	s.usersByNameMu.Lock()
	defer s.usersByNameMu.Unlock()

	if _, exists := s.usersByName[username]; exists {
		return nil, oops.Code(auth.CodeConflict).With("username", username).Wrap(auth.ErrConflict)
	}

	s.nextIDMu.Lock()
	id := s.nextID
	s.nextID++
	s.nextIDMu.Unlock()

	user := &auth.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    s.now(),
	}
	s.usersByName[username] = user

	s.usersByIDMu.Lock()
	s.usersByID[id] = user
	s.usersByIDMu.Unlock()

	return copyUser(user), nil
}

// GetUserByUsername returns the user or nil.
func (s *Store) GetUserByUsername(_ context.Context, username string) (*auth.User, error) {
	s.usersByNameMu.RLock()
	defer s.usersByNameMu.RUnlock()

	user, ok := s.usersByName[username]
	if !ok {
		return nil, nil
	}
	return copyUser(user), nil
}

// CreateSession stores a session, replacing any session with the same token.
func (s *Store) CreateSession(_ context.Context, token string, userID int64, expiresAt time.Time) error {
	s.usersByIDMu.RLock()
	user, ok := s.usersByID[userID]
	s.usersByIDMu.RUnlock()
	if !ok {
		return oops.Code(auth.CodeNotFound).With("user_id", userID).Wrap(auth.ErrNotFound)
	}

	session := &auth.Session{
		Token:     token,
		UserID:    user.ID,
		Username:  user.Username,
		CreatedAt: s.now(),
		ExpiresAt: expiresAt,
	}

	s.sessionsMu.Lock()
	s.sessions[token] = session
	s.sessionsMu.Unlock()

	return nil
}

// GetSession returns the live session or nil. An expired session is
// removed after the read lock is released.
func (s *Store) GetSession(_ context.Context, token string) (*auth.Session, error) {
	s.sessionsMu.RLock()
	session, ok := s.sessions[token]
	s.sessionsMu.RUnlock()

	if !ok {
		return nil, nil
	}

	now := s.now()
	if session.IsLiveAt(now) {
		out := *session
		return &out, nil
	}

	s.sessionsMu.Lock()
	// Another caller may have replaced the token in between.
	if current, ok := s.sessions[token]; ok && !current.IsLiveAt(now) {
		delete(s.sessions, token)
	}
	s.sessionsMu.Unlock()

	return nil, nil
}

// DeleteSession removes the session if present.
func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.sessionsMu.Lock()
	delete(s.sessions, token)
	s.sessionsMu.Unlock()
	return nil
}

// DeleteExpiredSessions removes every session that is no longer live.
func (s *Store) DeleteExpiredSessions(_ context.Context) error {
	now := s.now()

	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()

	for token, session := range s.sessions {
		if !session.IsLiveAt(now) {
			delete(s.sessions, token)
		}
	}
	return nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Len reports the number of users and sessions currently held.
func (s *Store) Len() (users, sessions int) {
	s.usersByIDMu.RLock()
	users = len(s.usersByID)
	s.usersByIDMu.RUnlock()

	s.sessionsMu.RLock()
	sessions = len(s.sessions)
	s.sessionsMu.RUnlock()
	return users, sessions
}

func copyUser(u *auth.User) *auth.User {
	out := *u
	return &out
}
