// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package xdg provides XDG Base Directory paths for GeekCraft.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "geekcraft"

// ConfigDir returns the XDG config directory for geekcraft.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DataDir returns the XDG data directory for geekcraft.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// DatabasePath is the default SQLite file.
func DatabasePath() string {
	return filepath.Join(DataDir(), "auth.db")
}

// ConfigFile returns ConfigDir()/config.yaml and whether it exists.
func ConfigFile() (string, bool) {
	path := filepath.Join(ConfigDir(), "config.yaml")
	_, err := os.Stat(path)
	return path, !errors.Is(err, fs.ErrNotExist)
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
