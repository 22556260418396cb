// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/geekcraft/geekcraft/pkg/errutil"
)

// Caller-facing messages.
const (
	MsgUsernameExists     = "Username already exists"
	MsgInvalidCredentials = "Invalid username or password"
	MsgLoginSuccess       = "Login successful"
	MsgLogoutSuccess      = "Logout successful"
	MsgInternalError      = "Internal error"
)

// Operation label values.
const (
	opRegister = "register"
	opLogin    = "login"
	opLogout   = "logout"
	opValidate = "validate_token"
)

// Response is the uniform result of register, login and logout.
type Response struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// Service provides authentication operations on top of a Backend.
// It holds no per-user state and is safe for concurrent use.
type Service struct {
	db              Backend
	hasher          PasswordHasher
	logger          *slog.Logger
	metrics         *Metrics
	now             func() time.Time
	sessionDuration time.Duration

	// dummyHash is verified against when the user does not exist so both
	// failure paths cost one hash comparison.
	dummyHash string
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSessionDuration overrides DefaultSessionDuration.
func WithSessionDuration(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.sessionDuration = d
		}
	}
}

// NewService creates a Service.
func NewService(db Backend, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if db == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("backend is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}

	s := &Service{
		db:              db,
		hasher:          hasher,
		logger:          slog.Default(),
		now:             time.Now,
		sessionDuration: DefaultSessionDuration,
	}
	for _, opt := range opts {
		opt(s)
	}

	dummy, err := newDummyHash(hasher)
	if err != nil {
		return nil, err
	}
	s.dummyHash = dummy

	return s, nil
}

// newDummyHash hashes a random secret nobody knows, so it never matches a
// submitted password but costs the same to verify as a real one.
func newDummyHash(hasher PasswordHasher) (string, error) {
	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return "", oops.Code("AUTH_INVALID_SERVICE").With("operation", "dummy secret").Wrap(err)
	}
	hash, err := hasher.Hash(base64.RawURLEncoding.EncodeToString(secret))
	if err != nil {
		return "", oops.Code("AUTH_INVALID_SERVICE").With("operation", "dummy hash").Wrap(err)
	}
	return hash, nil
}

// Register validates the credentials and creates a user.
func (s *Service) Register(ctx context.Context, username, password string) Response {
	if err := ValidateUsername(username); err != nil {
		return s.reject(opRegister, err)
	}
	if err := ValidatePassword(password, MaxPasswordLength(s.hasher)); err != nil {
		return s.reject(opRegister, err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return s.internalError(ctx, opRegister, "hash password", err)
	}

	user, err := s.db.CreateUser(ctx, username, hash)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.request(opRegister, OutcomeRejected)
			return Response{Message: MsgUsernameExists}
		}
		return s.internalError(ctx, opRegister, "create user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	s.metrics.request(opRegister, OutcomeSuccess)
	return Response{
		Success:  true,
		Message:  fmt.Sprintf("User %s registered successfully", user.Username),
		Username: user.Username,
	}
}

// Login checks credentials and issues a session token.
// Unknown users and wrong passwords produce the same response.
func (s *Service) Login(ctx context.Context, username, password string) Response {
	user, err := s.db.GetUserByUsername(ctx, username)
	if err != nil {
		return s.internalError(ctx, opLogin, "get user by username", err)
	}

	targetHash := s.dummyHash
	if user != nil {
		targetHash = user.PasswordHash
	}

	valid, err := s.hasher.Verify(password, targetHash)
	if err != nil {
		// An unreadable stored hash counts as a failed check.
		errutil.LogErrorContext(ctx, s.logger, "password verification failed", err, "username", username)
		valid = false
	}
	if user == nil || !valid {
		s.metrics.request(opLogin, OutcomeRejected)
		return Response{Message: MsgInvalidCredentials}
	}

	token, err := GenerateSessionToken()
	if err != nil {
		return s.internalError(ctx, opLogin, "generate session token", err)
	}

	expiresAt := s.now().Add(s.sessionDuration)
	if err := s.db.CreateSession(ctx, token, user.ID, expiresAt); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "session owner vanished during login", "user_id", user.ID)
			s.metrics.request(opLogin, OutcomeRejected)
			return Response{Message: MsgInvalidCredentials}
		}
		return s.internalError(ctx, opLogin, "create session", err)
	}

	s.logger.InfoContext(ctx, "user logged in", "user_id", user.ID, "username", user.Username)
	s.metrics.request(opLogin, OutcomeSuccess)
	return Response{
		Success:  true,
		Message:  MsgLoginSuccess,
		Token:    token,
		Username: user.Username,
	}
}

// Logout removes the session. Unknown tokens succeed.
func (s *Service) Logout(ctx context.Context, token string) Response {
	if err := s.db.DeleteSession(ctx, token); err != nil {
		return s.internalError(ctx, opLogout, "delete session", err)
	}
	s.metrics.request(opLogout, OutcomeSuccess)
	return Response{Success: true, Message: MsgLogoutSuccess}
}

// ValidateToken returns the live session for token, or nil.
// Backend failures are logged and reported as no session.
func (s *Service) ValidateToken(ctx context.Context, token string) *Session {
	if token == "" {
		s.metrics.request(opValidate, OutcomeRejected)
		return nil
	}

	session, err := s.db.GetSession(ctx, token)
	if err != nil {
		errutil.LogErrorContext(ctx, s.logger, "session lookup failed", err)
		s.metrics.request(opValidate, OutcomeError)
		return nil
	}
	if session == nil || !session.IsLiveAt(s.now()) {
		s.metrics.request(opValidate, OutcomeRejected)
		return nil
	}

	s.metrics.request(opValidate, OutcomeSuccess)
	return session
}

// CleanupExpiredSessions removes expired sessions from the backend.
func (s *Service) CleanupExpiredSessions(ctx context.Context) error {
	if err := s.db.DeleteExpiredSessions(ctx); err != nil {
		errutil.LogErrorContext(ctx, s.logger, "expired session cleanup failed", err)
		s.metrics.sweep(OutcomeError)
		return err
	}
	s.logger.DebugContext(ctx, "expired sessions cleaned up")
	s.metrics.sweep(OutcomeSuccess)
	return nil
}

func (s *Service) reject(op string, err error) Response {
	s.metrics.request(op, OutcomeRejected)
	var ve *ValidationError
	if errors.As(err, &ve) {
		return Response{Message: ve.Reason}
	}
	return Response{Message: err.Error()}
}

func (s *Service) internalError(ctx context.Context, op, step string, err error) Response {
	errutil.LogErrorContext(ctx, s.logger, "auth operation failed", err, "operation", op, "step", step)
	s.metrics.request(op, OutcomeError)
	return Response{Message: MsgInternalError}
}
