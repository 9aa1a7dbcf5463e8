// Package retention removes terminal job records after a configurable
// window, bounding memory growth without touching live jobs.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/drip/job"
)

// Sweeper periodically deletes completed and failed jobs whose last
// update is older than the retention window. Pending, processing, and
// retrying jobs are never touched regardless of age.
type Sweeper struct {
	store    job.Store
	window   time.Duration
	interval time.Duration
	logger   *slog.Logger
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store job.Store, window, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		store:    store,
		window:   window,
		interval: interval,
		logger:   logger.With(slog.String("component", "retention")),
	}
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one pass, deleting terminal jobs past the window.
// Errors are logged, not propagated: a failed sweep retries on the
// next tick.
func (s *Sweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-s.window)

	removed, err := s.store.PurgeTerminal(ctx, cutoff)
	if err != nil {
		s.logger.Error("sweep failed", slog.String("error", err.Error()))
		return
	}

	if removed > 0 {
		s.logger.Info("swept terminal jobs",
			slog.Int64("removed", removed),
			slog.Time("cutoff", cutoff),
		)
	}
}
