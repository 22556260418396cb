// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package authdb

import (
	"strings"

	"github.com/samber/oops"
)

// Kind selects the storage adapter behind a Database.
type Kind string

// Supported backends.
const (
	KindMemory     Kind = "memory"
	KindRelational Kind = "relational"
	KindKeyValue   Kind = "keyvalue"
	KindDocument   Kind = "document"
)

var kindAliases = map[string]Kind{
	"memory":     KindMemory,
	"inmemory":   KindMemory,
	"relational": KindRelational,
	"postgres":   KindRelational,
	"sqlite":     KindRelational,
	"keyvalue":   KindKeyValue,
	"redis":      KindKeyValue,
	"document":   KindDocument,
	"mongodb":    KindDocument,
}

// ParseKind accepts a backend name or one of its aliases, case-insensitively.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", oops.Code("AUTHDB_UNKNOWN_BACKEND").
		With("backend", s).
		Errorf("unknown database backend %q", s)
}

func (k Kind) String() string {
	return string(k)
}
