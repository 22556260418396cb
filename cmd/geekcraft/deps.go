// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geekcraft/geekcraft/internal/authdb"
	"github.com/geekcraft/geekcraft/internal/observability"
)

// Deps contains injectable dependencies for the commands.
// All fields with nil values will use their default implementations.
type Deps struct {
	// DatabaseOpener opens the configured backend.
	// Default: authdb.Open
	DatabaseOpener func(ctx context.Context, cfg authdb.Config, logger *slog.Logger, opts ...authdb.Option) (*authdb.Database, error)

	// ObservabilityServerFactory creates the metrics and health server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr, version string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer
}

// ObservabilityServer is the subset of observability.Server used by serve.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Registry() prometheus.Registerer
}

func (d *Deps) withDefaults() *Deps {
	out := Deps{}
	if d != nil {
		out = *d
	}
	if out.DatabaseOpener == nil {
		out.DatabaseOpener = authdb.Open
	}
	if out.ObservabilityServerFactory == nil {
		out.ObservabilityServerFactory = func(addr, version string, ready observability.ReadinessChecker, logger *slog.Logger) ObservabilityServer {
			return observability.NewServer(addr, version, ready, logger)
		}
	}
	return &out
}
