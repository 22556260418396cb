// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

// Package config loads layered GeekCraft configuration: defaults, an
// optional YAML file, GEEKCRAFT_* environment variables, then flags.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/geekcraft/geekcraft/internal/auth"
	"github.com/geekcraft/geekcraft/internal/authdb"
	"github.com/geekcraft/geekcraft/internal/xdg"
)

// EnvPrefix is stripped from environment variable names.
const EnvPrefix = "GEEKCRAFT_"

// Older deployment variables. GEEKCRAFT_DB_BACKEND sits below the
// GEEKCRAFT_DATABASE_* layer; MONGODB_URL only fills database.url for the
// document backend when no layer set it.
const (
	LegacyBackendEnv  = "GEEKCRAFT_DB_BACKEND"
	LegacyMongoURLEnv = "MONGODB_URL"

	// DefaultDocumentURL is used for the document backend when no URL is set.
	DefaultDocumentURL = "mongodb://localhost:27017/geekcraft"
)

// Config is the full runtime configuration.
type Config struct {
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Sessions SessionsConfig `koanf:"sessions"`
	Log      LogConfig      `koanf:"log"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// DatabaseConfig selects the storage backend.
type DatabaseConfig struct {
	Backend string `koanf:"backend"`
	Path    string `koanf:"path"`
	URL     string `koanf:"url"`
	Retries int    `koanf:"retries"`
}

// AuthConfig selects the password hasher.
type AuthConfig struct {
	Hasher string `koanf:"hasher"`
	Cost   int    `koanf:"cost"`
}

// SessionsConfig controls session lifetime and sweeping.
type SessionsConfig struct {
	Duration time.Duration `koanf:"duration"`
	Sweep    time.Duration `koanf:"sweep"`
}

// LogConfig controls log output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// MetricsConfig controls the observability server. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Defaults returns the lowest configuration layer.
func Defaults() map[string]any {
	return map[string]any{
		"database.backend":  string(authdb.KindMemory),
		"database.path":     xdg.DatabasePath(),
		"database.url":      "",
		"database.retries":  authdb.DefaultConnectRetries,
		"auth.hasher":       auth.HasherBcrypt,
		"auth.cost":         0,
		"sessions.duration": auth.DefaultSessionDuration.String(),
		"sessions.sweep":    time.Hour.String(),
		"log.format":        "json",
		"log.level":         "info",
		"metrics.addr":      "127.0.0.1:9100",
	}
}

// Options are the inputs to Load.
type Options struct {
	// File is an optional YAML file path.
	File string
	// Flags are applied last. Only flags named in FlagKeys are read.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to configuration keys.
	FlagKeys map[string]string
}

// Load builds a Config from all layers and validates it.
func Load(opts Options) (*Config, error) {
	k := koanf.New(".")

	for key, value := range Defaults() {
		if err := k.Set(key, value); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
		}
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("file", opts.File).Wrap(err)
		}
	}

	legacyBackend := env.Provider(LegacyBackendEnv, ".", func(s string) string {
		if s == LegacyBackendEnv {
			return "database.backend"
		}
		return ""
	})
	if err := k.Load(legacyBackend, nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("layer", "env").Wrap(err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("layer", "env").Wrap(err)
	}

	if opts.Flags != nil && len(opts.FlagKeys) > 0 {
		provider := posflag.ProviderWithFlag(opts.Flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			key, ok := opts.FlagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, f.Value.String()
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_INVALID").With("layer", "flags").Wrap(err)
		}
	}

	if err := fillDocumentURL(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps GEEKCRAFT_DATABASE_BACKEND to database.backend.
// GEEKCRAFT_DB_BACKEND is read by its own lower layer.
func envKey(s string) string {
	if s == LegacyBackendEnv {
		return ""
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
}

// fillDocumentURL sets database.url from MONGODB_URL, or DefaultDocumentURL,
// when the document backend is selected without a URL.
func fillDocumentURL(k *koanf.Koanf) error {
	kind, err := authdb.ParseKind(k.String("database.backend"))
	if err != nil || kind != authdb.KindDocument || k.String("database.url") != "" {
		return nil
	}

	legacy := koanf.New(".")
	provider := env.Provider(LegacyMongoURLEnv, ".", func(s string) string {
		if s == LegacyMongoURLEnv {
			return "url"
		}
		return ""
	})
	if err := legacy.Load(provider, nil); err != nil {
		return oops.Code("CONFIG_INVALID").With("layer", "env").Wrap(err)
	}

	url := legacy.String("url")
	if url == "" {
		url = DefaultDocumentURL
	}
	if err := k.Set("database.url", url); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "database.url").Wrap(err)
	}
	return nil
}

// Validate checks values that cannot be expressed by types alone.
func (c *Config) Validate() error {
	invalid := oops.Code("CONFIG_INVALID")

	if _, err := authdb.ParseKind(c.Database.Backend); err != nil {
		return invalid.With("key", "database.backend").Errorf("%s", err.Error())
	}
	if c.Database.Retries < 0 {
		return invalid.With("key", "database.retries").Errorf("database.retries must not be negative")
	}
	switch strings.ToLower(c.Auth.Hasher) {
	case auth.HasherBcrypt, auth.HasherArgon2id:
	default:
		return invalid.With("key", "auth.hasher").Errorf("auth.hasher must be %q or %q, got %q",
			auth.HasherBcrypt, auth.HasherArgon2id, c.Auth.Hasher)
	}
	if c.Sessions.Duration <= 0 {
		return invalid.With("key", "sessions.duration").Errorf("sessions.duration must be positive")
	}
	if c.Sessions.Sweep < 0 {
		return invalid.With("key", "sessions.sweep").Errorf("sessions.sweep must not be negative")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return invalid.With("key", "log.format").Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid.With("key", "log.level").Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	return nil
}

// AuthDB converts the database section to an authdb.Config.
func (c *Config) AuthDB() (authdb.Config, error) {
	kind, err := authdb.ParseKind(c.Database.Backend)
	if err != nil {
		return authdb.Config{}, oops.Code("CONFIG_INVALID").With("key", "database.backend").Errorf("%s", err.Error())
	}
	return authdb.Config{
		Backend:        kind,
		Path:           c.Database.Path,
		URL:            c.Database.URL,
		ConnectRetries: c.Database.Retries,
	}, nil
}
