package scratch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cadence/internal/logging"
)

// ReapResult contains the outcome of an orphan sweep.
type ReapResult struct {
	Removed []string
	Errors  []ReapError
}

// ReapError pairs a file path with its removal error.
type ReapError struct {
	Path  string
	Error error
}

// ReapOrphans removes regular files older than maxAge that inUse does not
// claim. inUse may be nil, in which case every old file is an orphan.
func (m *Manager) ReapOrphans(ctx context.Context, maxAge time.Duration, inUse func(path string) bool, logger *slog.Logger) ReapResult {
	result := ReapResult{}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			result.Errors = append(result.Errors, ReapError{Path: m.dir, Error: err})
		}
		return result
	}

	cutoff := m.now().Add(-maxAge)
	for _, entry := range entries {
		if ctx.Err() != nil {
			return result
		}
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		if inUse != nil && inUse(path) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if !os.IsNotExist(err) {
				result.Errors = append(result.Errors, ReapError{Path: path, Error: err})
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := m.Delete(path); err != nil {
			result.Errors = append(result.Errors, ReapError{Path: path, Error: err})
			logging.WarnWithContext(logger, "failed to remove orphaned scratch file", "scratch_reap_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "disk space not reclaimed"),
			)
			continue
		}
		result.Removed = append(result.Removed, path)
		if logger != nil {
			logger.Info("removed orphaned scratch file",
				logging.String("path", path),
				logging.Duration("age", m.now().Sub(info.ModTime())),
				logging.String(logging.FieldEventType, "scratch_reap"),
			)
		}
	}
	return result
}
