// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package authdb

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/geekcraft/geekcraft/internal/auth"
	"github.com/geekcraft/geekcraft/internal/auth/memory"
	"github.com/geekcraft/geekcraft/internal/auth/mongo"
	"github.com/geekcraft/geekcraft/internal/auth/postgres"
	"github.com/geekcraft/geekcraft/internal/auth/redis"
	"github.com/geekcraft/geekcraft/internal/auth/sqlite"
)

// Connection retry defaults.
const (
	DefaultConnectRetries = 5
	DefaultRetryBase      = 200 * time.Millisecond
)

// Config selects and locates the backend.
type Config struct {
	Backend Kind
	// Path is a postgres:// URL or an SQLite file path for the relational backend.
	Path string
	// URL locates the key-value or document backend.
	URL string
	// ConnectRetries bounds retries of the initial connection. Zero disables retry.
	ConnectRetries int
	// RetryBase is the first backoff step; zero uses DefaultRetryBase.
	RetryBase time.Duration
}

// Opener constructs an adapter from its location.
type Opener func(ctx context.Context, location string) (Store, error)

func defaultOpener(adapter string) Opener {
	switch adapter {
	case "postgres":
		return func(ctx context.Context, url string) (Store, error) { return postgres.Open(ctx, url) }
	case "sqlite":
		return func(ctx context.Context, path string) (Store, error) { return sqlite.Open(ctx, path) }
	case "redis":
		return func(ctx context.Context, url string) (Store, error) { return redis.Open(ctx, url) }
	case "mongodb":
		return func(ctx context.Context, uri string) (Store, error) { return mongo.Open(ctx, uri) }
	default:
		return nil
	}
}

// opener returns the WithOpener override for adapter, or the default.
func (d *Database) opener(adapter string) Opener {
	if open, ok := d.openers[adapter]; ok {
		return open
	}
	return defaultOpener(adapter)
}

// IsPostgresURL reports whether a relational path names a PostgreSQL server.
func IsPostgresURL(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

// Open constructs exactly one adapter from cfg, applies schema and indexes,
// and verifies connectivity. Any failure is a StartupError.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, opts ...Option) (*Database, error) {
	if logger == nil {
		logger = slog.Default()
	}

	adapter, location, err := cfg.adapter()
	if err != nil {
		return nil, err
	}

	d := New(cfg.Backend, nil, append([]Option{WithLogger(logger)}, opts...)...)
	switch adapter {
	case "memory":
		d.store = memory.New()
	default:
		d.store, err = openWithRetry(ctx, cfg, d.logger, adapter, location, d.opener(adapter))
		if err != nil {
			return nil, oops.Code(auth.CodeStartup).
				With("backend", string(cfg.Backend)).
				With("adapter", adapter).
				Wrap(err)
		}
	}

	d.logger.InfoContext(ctx, "database opened", "backend", cfg.Backend, "adapter", adapter)
	return d, nil
}

// adapter resolves which constructor to use and where it connects.
func (cfg Config) adapter() (name, location string, err error) {
	startup := oops.Code(auth.CodeStartup).With("backend", string(cfg.Backend))
	switch cfg.Backend {
	case KindMemory:
		return "memory", "", nil
	case KindRelational:
		if cfg.Path == "" {
			return "", "", startup.Errorf("relational backend requires database.path")
		}
		if IsPostgresURL(cfg.Path) {
			return "postgres", cfg.Path, nil
		}
		return "sqlite", cfg.Path, nil
	case KindKeyValue:
		if cfg.URL == "" {
			return "", "", startup.Errorf("keyvalue backend requires database.url")
		}
		return "redis", cfg.URL, nil
	case KindDocument:
		if cfg.URL == "" {
			return "", "", startup.Errorf("document backend requires database.url")
		}
		return "mongodb", cfg.URL, nil
	default:
		return "", "", startup.Errorf("unknown database backend %q", cfg.Backend)
	}
}

// openWithRetry retries network adapters with bounded exponential backoff.
// SQLite is local and gets a single attempt.
func openWithRetry(ctx context.Context, cfg Config, logger *slog.Logger, adapter, location string, open Opener) (Store, error) {
	retries := cfg.ConnectRetries
	if adapter == "sqlite" || retries < 0 {
		retries = 0
	}
	base := cfg.RetryBase
	if base <= 0 {
		base = DefaultRetryBase
	}
	backoff := retry.WithMaxRetries(uint64(retries), retry.NewExponential(base))

	var (
		store   Store
		attempt int
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		s, err := open(ctx, location)
		if err != nil {
			logger.WarnContext(ctx, "database connection attempt failed",
				"adapter", adapter, "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		store = s
		return nil
	})
	if err != nil {
		return nil, oops.With("attempts", attempt).Wrap(err)
	}
	return store, nil
}
