// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ClassGate Contributors

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
)

// SweeperConfig defines the idle-session sweep policy.
type SweeperConfig struct {
	IdleTimeout time.Duration // sessions unseen for this long are removed
	Interval    time.Duration // how often to sweep
}

// DefaultSweeperConfig returns the default sweep policy.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		IdleTimeout: 24 * time.Hour,
		Interval:    10 * time.Minute,
	}
}

// Sweeper periodically removes idle sessions. It is housekeeping only;
// challenge expiry never depends on it.
type Sweeper struct {
	cfg    SweeperConfig
	store  SessionStore
	logger *slog.Logger
	clock  func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper over store.
func NewSweeper(cfg SweeperConfig, store SessionStore, logger *slog.Logger) (*Sweeper, error) {
	if store == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if cfg.IdleTimeout <= 0 || cfg.Interval <= 0 {
		return nil, oops.Code("AUTH_INVALID_SWEEPER_CONFIG").
			With("idle_timeout", cfg.IdleTimeout.String()).
			With("interval", cfg.Interval.String()).
			Errorf("idle timeout and interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		cfg:    cfg,
		store:  store,
		logger: logger,
		clock:  time.Now,
	}, nil
}

// RunOnce removes every session idle for longer than the configured timeout.
func (w *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	removed, err := w.store.DeleteIdle(ctx, w.clock().Add(-w.cfg.IdleTimeout))
	if err != nil {
		return 0, oops.Code("SESSION_SWEEP_FAILED").
			With("idle_timeout", w.cfg.IdleTimeout.String()).
			Wrap(err)
	}
	if removed > 0 {
		SessionsSwept.Add(float64(removed))
		w.logger.InfoContext(ctx, "swept idle sessions", "count", removed)
	}
	return removed, nil
}

// Start begins periodic sweeping until ctx is cancelled or Stop is called.
func (w *Sweeper) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the sweeper and waits for the current cycle to finish.
func (w *Sweeper) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func (w *Sweeper) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.ErrorContext(ctx, "session sweep failed", "error", err)
			}
		}
	}
}
