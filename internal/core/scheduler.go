package core

// scheduler.go runs background maintenance. The only job today is run
// history retention: import runs and their error reports older than the
// retention window are deleted. A failed sweep is logged and retried on the
// next tick.

import (
	"context"
	"log/slog"
	"time"
)

// RetentionConfig controls the history sweeper. Zero values take defaults.
type RetentionConfig struct {
	KeepFor       time.Duration // How long finished runs are kept (default: 180 days)
	CheckInterval time.Duration // How often to sweep (default: 24h)
}

func (c RetentionConfig) withDefaults() RetentionConfig {
	if c.KeepFor <= 0 {
		c.KeepFor = 180 * 24 * time.Hour
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartRetentionSweeper purges old run history immediately and then every
// CheckInterval until ctx is cancelled. It blocks; run it in a goroutine.
func (s *Service) StartRetentionSweeper(ctx context.Context, cfg RetentionConfig) {
	cfg = cfg.withDefaults()
	slog.Info("retention sweeper started",
		"keep_days", int(cfg.KeepFor.Hours()/24),
		"interval", cfg.CheckInterval,
	)

	s.sweepHistory(ctx, cfg.KeepFor)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention sweeper stopped")
			return
		case <-ticker.C:
			s.sweepHistory(ctx, cfg.KeepFor)
		}
	}
}

// sweepHistory deletes runs finished more than keepFor ago.
func (s *Service) sweepHistory(ctx context.Context, keepFor time.Duration) int64 {
	start := time.Now()
	purged, err := s.store.PurgeImportRuns(ctx, start.Add(-keepFor))
	if err != nil {
		slog.Error("history sweep failed", "error", err)
		return 0
	}
	slog.Info("history sweep completed",
		"runs_purged", purged,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return purged
}
