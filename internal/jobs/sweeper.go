package jobs

import (
	"context"
	"time"

	"cadence/internal/logging"
	"cadence/internal/services"
)

// SweepResult summarizes one retention pass.
type SweepResult struct {
	Dropped int
	Expired int
	Reaped  int
	Pruned  int64
}

// Sweep enforces retention: undelivered outputs past the failure retention
// window expire, terminal records past their window are dropped along with
// any residual files, untracked scratch files older than the orphan age are
// removed and persisted history is pruned.
func (m *Manager) Sweep(ctx context.Context, now time.Time) SweepResult {
	var result SweepResult
	var expire []string
	var residual []string

	m.mu.Lock()
	for id, rec := range m.jobs {
		job := rec.job
		switch {
		case job.State == StateReady && m.settings.FailureRetention > 0 &&
			now.Sub(job.UpdatedAt) > m.settings.FailureRetention:
			expire = append(expire, id)
		case job.State == StateFailed && !rec.closing && now.Sub(job.FinishedAt) > m.settings.FailureRetention:
			residual = append(residual, job.InputPath, job.OutputPath)
			delete(m.jobs, id)
			result.Dropped++
		case job.State == StateDelivered && !rec.transferOpen && now.Sub(job.UpdatedAt) > m.settings.DeliveryGrace:
			residual = append(residual, job.InputPath, job.OutputPath)
			delete(m.jobs, id)
			result.Dropped++
		}
	}
	m.mu.Unlock()

	for _, path := range residual {
		m.deleteArtifact(m.logger, path, "residual")
	}
	for _, id := range expire {
		m.fail(id, services.Public("download expired",
			services.Wrap(services.ErrExpired, "jobs", "sweep", "output not retrieved in time", nil)))
		result.Expired++
	}

	if m.settings.OrphanMaxAge > 0 {
		reaped := m.storage.ReapOrphans(ctx, m.settings.OrphanMaxAge, m.InUse, m.logger)
		result.Reaped = len(reaped.Removed)
	}

	if m.history != nil && m.settings.HistoryRetention > 0 {
		pruned, err := m.history.PruneBefore(ctx, now.Add(-m.settings.HistoryRetention))
		if err != nil {
			logging.WarnWithContext(m.logger, "failed to prune job history", "history_prune_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir database health"),
				logging.String(logging.FieldImpact, "job history grows until the next sweep"),
			)
		}
		result.Pruned = pruned
	}

	if result.Dropped+result.Expired+result.Reaped > 0 || result.Pruned > 0 {
		m.logger.Info("retention sweep",
			logging.Int("dropped", result.Dropped),
			logging.Int("expired", result.Expired),
			logging.Int("reaped", result.Reaped),
			logging.Int64("pruned", result.Pruned),
			logging.String(logging.FieldEventType, "retention_sweep"),
		)
	}
	return result
}

// RunSweeper calls Sweep every interval until ctx ends. after, when set,
// receives each result.
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration, after func(SweepResult)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := m.Sweep(ctx, m.now())
			if after != nil {
				after(result)
			}
		}
	}
}
