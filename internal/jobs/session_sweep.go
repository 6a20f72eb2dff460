package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"semaphore/portal/internal/session"
)

// StartSessionSweepJob drops expired session records on a ticker until ctx ends.
func StartSessionSweepJob(ctx context.Context, store session.Store, interval time.Duration, logger *zap.Logger) {
	if store == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	timeout := interval / 2
	if timeout > 30*time.Second {
		timeout = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepOnce(ctx, store, timeout, logger)
			}
		}
	}()
}

func sweepOnce(ctx context.Context, store session.Store, timeout time.Duration, logger *zap.Logger) int {
	tickCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	removed, err := store.Sweep(tickCtx, time.Now().UTC())
	if err != nil {
		logger.Warn("session sweep failed", zap.Error(err))
		return 0
	}
	if removed > 0 {
		logger.Info("session sweep removed expired sessions", zap.Int("removed", removed))
	}
	return removed
}
