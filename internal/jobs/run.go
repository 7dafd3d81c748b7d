package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cadence/internal/logging"
	"cadence/internal/services"
	"cadence/internal/transcode"
)

// run drives one staged job to ready or failed. It owns the job from staging
// until the engine outcome is recorded.
func (m *Manager) run(ctx context.Context, id string) {
	defer m.wg.Done()
	logger := m.jobLogger(id)

	if err := m.slots.Acquire(ctx, 1); err != nil {
		m.fail(id, services.Wrap(services.ErrCanceled, "jobs", "await slot", "", err))
		return
	}
	defer m.slots.Release(1)

	job, ok := m.Get(id)
	if !ok || job.State != StateStaged {
		return
	}

	if m.prober != nil {
		if err := m.prober(ctx, job.InputPath); err != nil {
			m.fail(id, err)
			return
		}
	}

	convCtx, cancel := context.WithTimeout(ctx, m.settings.Timeout)
	defer cancel()

	exec, err := m.engine.Start(convCtx, job.InputPath, job.OutputPath, m.settings.Profile)
	if err != nil {
		m.fail(id, services.Public("conversion could not be started", err))
		return
	}

	if _, _, ok := m.transition(id, StateConverting, func(rec *record) {
		rec.job.StartedAt = m.now()
		rec.exec = exec
	}); !ok {
		// Canceled between staging and engine start.
		exec.Cancel()
		m.deleteArtifact(logger, job.OutputPath, "output")
		return
	}
	logger.Info("conversion started",
		logging.String(logging.FieldState, string(StateConverting)),
		logging.Duration("timeout", m.settings.Timeout),
		logging.String(logging.FieldEventType, "conversion_started"),
	)

	var outcome transcode.Outcome
	select {
	case outcome = <-exec.Done():
	case <-convCtx.Done():
		// Cancel blocks until the process is reaped, which can outlast the
		// deadline when a child keeps stderr open.
		go exec.Cancel()
		select {
		case outcome = <-exec.Done():
		case <-time.After(m.cancelGrace):
			outcome = transcode.Outcome{Err: convCtx.Err()}
			m.detach(id, exec)
		}
	}

	if outcome.Err != nil {
		m.fail(id, m.describeFailure(outcome.Err, convCtx))
		return
	}

	// Input is never needed again once the output exists.
	m.deleteArtifact(logger, job.InputPath, "input")

	ready, _, ok := m.transition(id, StateReady, func(rec *record) {
		rec.exec = nil
		rec.job.OutputBytes = outcome.OutputBytes
	})
	if !ok {
		m.deleteArtifact(logger, job.OutputPath, "output")
		return
	}
	logger.Info("job ready",
		logging.String(logging.FieldState, string(StateReady)),
		logging.Duration("conversion_time", ready.ConversionDuration()),
		logging.Int64("output_bytes", outcome.OutputBytes),
		logging.String(logging.FieldEventType, "job_ready"),
	)
}

// describeFailure attaches a caller-safe reason to an engine outcome. A run
// that ended after the conversion deadline is a timeout even when the engine
// reported the kill as a cancellation.
func (m *Manager) describeFailure(err error, convCtx context.Context) error {
	var engineErr *transcode.EngineError
	switch {
	case errors.Is(err, services.ErrTimeout), errors.Is(convCtx.Err(), context.DeadlineExceeded):
		if !errors.Is(err, services.ErrTimeout) {
			err = services.Wrap(services.ErrEngine, "jobs", "convert", "", fmt.Errorf("%w: %w", services.ErrTimeout, err))
		}
		return services.Public(fmt.Sprintf("conversion timed out after %s", m.settings.Timeout), err)
	case errors.As(err, &engineErr):
		return services.Public(engineErr.Summary, err)
	case errors.Is(err, services.ErrCanceled):
		return services.Public("conversion canceled", err)
	default:
		return err
	}
}

// detach forgets an execution that did not stop within the grace period so
// the failure path does not wait on it again. The executor still removes its
// partial output once the process exits.
func (m *Manager) detach(id string, exec Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.jobs[id]; ok && rec.exec == exec {
		rec.exec = nil
	}
}
