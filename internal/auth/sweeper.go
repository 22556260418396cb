// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GeekCraft Contributors

package auth

import (
	"context"
	"log/slog"
	"time"
)

// SessionCleaner removes expired sessions.
type SessionCleaner interface {
	CleanupExpiredSessions(ctx context.Context) error
}

// Sweeper calls CleanupExpiredSessions on a fixed interval.
type Sweeper struct {
	cleaner  SessionCleaner
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a Sweeper. A nil logger uses slog.Default().
func NewSweeper(cleaner SessionCleaner, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{cleaner: cleaner, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. A non-positive interval returns
// immediately. Failures are logged by the cleaner and do not stop the loop.
func (w *Sweeper) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.InfoContext(ctx, "session sweeper disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.InfoContext(ctx, "session sweeper started", "interval", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.InfoContext(ctx, "session sweeper stopped")
			return
		case <-ticker.C:
			//nolint:errcheck // cleaner logs its own failures; the next tick retries
			_ = w.cleaner.CleanupExpiredSessions(ctx)
		}
	}
}
