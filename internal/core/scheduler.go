package core

// scheduler.go provides background maintenance for export history.
//
// The pruner deletes history entries older than the retention window and
// removes the export files they point to. It runs once at start and then on
// every tick until the context is cancelled. Failures are logged and retried
// on the next tick.

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// HistoryPruneConfig holds configuration for the history pruner.
type HistoryPruneConfig struct {
	RetentionDays int           // Days to keep history entries (default: 30)
	CheckInterval time.Duration // How often to run (default: 24h)
}

func (c HistoryPruneConfig) withDefaults() HistoryPruneConfig {
	if c.RetentionDays <= 0 {
		c.RetentionDays = 30
	}
	if c.CheckInterval <= 0 {
		c.CheckInterval = 24 * time.Hour
	}
	return c
}

// StartHistoryPruner blocks, periodically pruning old history entries and
// export directories. It returns immediately if the service has no history
// store.
func (s *Service) StartHistoryPruner(ctx context.Context, cfg HistoryPruneConfig) {
	if s.history == nil {
		return
	}
	cfg = cfg.withDefaults()

	slog.Info("history pruner started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.CheckInterval,
	)

	s.runPruneJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history pruner stopped")
			return
		case <-ticker.C:
			s.runPruneJob(ctx, cfg)
		}
	}
}

// runPruneJob performs one prune cycle.
func (s *Service) runPruneJob(ctx context.Context, cfg HistoryPruneConfig) {
	start := time.Now()
	cutoff := start.AddDate(0, 0, -cfg.RetentionDays)

	pruned, err := s.history.Prune(ctx, cutoff)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}

	removed := s.removeStaleOutputs(cutoff)

	slog.Info("history prune completed",
		"entries_pruned", pruned,
		"dirs_removed", removed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// removeStaleOutputs deletes per-export directories under OutputDir that
// were last modified before cutoff and are not tracked in memory.
func (s *Service) removeStaleOutputs(cutoff time.Time) int {
	entries, err := os.ReadDir(s.cfg.OutputDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read output dir", "dir", s.cfg.OutputDir, "error", err)
		}
		return 0
	}

	removed := 0
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := s.lookup(e.Name()); err == nil {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.cfg.OutputDir, e.Name())); err != nil {
			slog.Warn("failed to remove export dir", "dir", e.Name(), "error", err)
			continue
		}
		removed++
	}
	return removed
}
