// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/geekcraft/geekcraft/internal/auth"
	"github.com/geekcraft/geekcraft/internal/config"
)

// readinessTimeout bounds the backend ping behind /healthz/readiness.
const readinessTimeout = 2 * time.Second

func newServeCmd(c *cli) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the session sweeper and the metrics/health server",
		Long: `Open the configured backend, sweep expired sessions on an interval
and serve /metrics, /healthz/liveness and /healthz/readiness until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.runServe(cmd, metricsAddr)
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics/health HTTP address (overrides metrics.addr)")
	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, metricsAddr string) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	cmd.SetContext(ctx)

	cfg, _, err := c.loadConfig(cmd)
	if err != nil {
		return err
	}
	if metricsAddr == "" {
		metricsAddr = cfg.Metrics.Addr
	}

	var (
		obsServer ObservabilityServer
		reg       prometheus.Registerer
		ready     func() bool
	)
	if metricsAddr != "" {
		obsServer = c.deps.ObservabilityServerFactory(metricsAddr, version, func() bool { return ready != nil && ready() }, nil)
		reg = obsServer.Registry()
	}

	rt, err := c.open(cmd, reg)
	if err != nil {
		return err
	}
	defer rt.close()

	ready = func() bool { return rt.db.Ready(ctx, readinessTimeout) }

	var obsErrCh <-chan error
	if obsServer != nil {
		obsErrCh, err = obsServer.Start()
		if err != nil {
			return oops.Code("SERVE_FAILED").With("addr", metricsAddr).Wrap(err)
		}
		rt.logger.InfoContext(ctx, "observability server listening", "addr", obsServer.Addr())
	}

	var wg sync.WaitGroup
	sweeper := auth.NewSweeper(rt.service, rt.cfg.Sessions.Sweep, rt.logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	rt.logger.InfoContext(ctx, "geekcraft ready", logAttrs(rt.cfg)...)
	cmd.Println("GeekCraft auth service started")

	var serveErr error
	select {
	case <-ctx.Done():
		rt.logger.Info("shutting down")
	case err, ok := <-obsErrCh:
		if ok && err != nil {
			serveErr = oops.Code("SERVE_FAILED").Wrap(err)
		}
		cancel()
	}

	wg.Wait()

	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			rt.logger.Warn("error stopping observability server", "error", err)
		}
	}

	rt.logger.Info("shutdown complete")
	return serveErr
}

func logAttrs(cfg *config.Config) []any {
	return []any{
		"backend", cfg.Database.Backend,
		"hasher", cfg.Auth.Hasher,
		"session_duration", cfg.Sessions.Duration,
		"sweep_interval", cfg.Sessions.Sweep,
	}
}
