// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package auth

import (
	"fmt"
	"time"
	"unicode"

	"github.com/samber/oops"
)

// Username and password constraints. Lengths are counted in bytes.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 32
	MinPasswordLength = 6
)

// User-facing validation messages.
const (
	msgUsernameLength  = "Username must be between 3 and 32 characters"
	msgUsernameCharset = "Username can only contain letters, numbers, underscore, and hyphen"
	msgPasswordShort   = "Password must be at least 6 characters"
	msgPasswordLong    = "Password must be at most %d bytes"
)

// User is a registered account. Users are never mutated or deleted.
type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidateUsername checks length and charset. Letters and digits of any
// script are allowed.
func ValidateUsername(username string) error {
	if len(username) < MinUsernameLength || len(username) > MaxUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("min", MinUsernameLength).
			With("max", MaxUsernameLength).
			Wrap(&ValidationError{Field: "username", Reason: msgUsernameLength})
	}
	if !validUsernameChars(username) {
		return oops.Code(CodeInvalidUsername).
			Wrap(&ValidationError{Field: "username", Reason: msgUsernameCharset})
	}
	return nil
}

func validUsernameChars(username string) bool {
	for _, r := range username {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' && r != '-' {
			return false
		}
	}
	return true
}

// ValidatePassword checks password length. maxLength is the hasher's input
// ceiling in bytes; zero means none.
func ValidatePassword(password string, maxLength int) error {
	if len(password) < MinPasswordLength {
		return oops.Code(CodeInvalidPassword).
			With("min", MinPasswordLength).
			Wrap(&ValidationError{Field: "password", Reason: msgPasswordShort})
	}
	if maxLength > 0 && len(password) > maxLength {
		return oops.Code(CodeInvalidPassword).
			With("max", maxLength).
			Wrap(&ValidationError{Field: "password", Reason: fmt.Sprintf(msgPasswordLong, maxLength)})
	}
	return nil
}
