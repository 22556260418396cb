// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package auth

import "errors"

// Sentinel errors. Adapters wrap these so callers can classify with errors.Is.
var (
	// ErrNotFound is returned when a referenced user or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a username is already taken.
	ErrConflict = errors.New("already exists")
)

// Error codes attached with oops.
const (
	CodeInvalidUsername = "AUTH_INVALID_USERNAME"
	CodeInvalidPassword = "AUTH_INVALID_PASSWORD"
	CodeConflict        = "AUTH_CONFLICT"
	CodeNotFound        = "AUTH_NOT_FOUND"
	CodeBackend         = "AUTH_BACKEND"
	CodeStartup         = "AUTH_STARTUP"
)

// ValidationError reports input the caller can correct. Reason is safe to
// show to end users verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
