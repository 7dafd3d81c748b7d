package jobs

import (
	"os"
	"sync"
	"time"

	"cadence/internal/logging"
	"cadence/internal/services"
)

// Artifact is a one-shot handle on a delivered output. Closing it deletes
// the output whether or not the transfer finished.
type Artifact struct {
	*os.File

	JobID   string
	Name    string
	Size    int64
	ModTime time.Time

	closeOnce sync.Once
	closeErr  error
	release   func() error
}

// Close closes the file and deletes the output. It is safe to call more
// than once.
func (a *Artifact) Close() error {
	a.closeOnce.Do(func() {
		closeErr := a.File.Close()
		releaseErr := a.release()
		if closeErr != nil {
			a.closeErr = closeErr
		} else {
			a.closeErr = releaseErr
		}
	})
	return a.closeErr
}

// Retrieve hands out the output of a ready job exactly once. The state flips
// to delivered under the manager lock before the file is opened, so a
// concurrent or later call for the same id gets ErrNotFound.
func (m *Manager) Retrieve(id string) (*Artifact, error) {
	job, _, ok := m.transition(id, StateDelivered, func(rec *record) {
		rec.transferOpen = true
	})
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "jobs", "retrieve", "no ready output", nil)
	}
	logger := m.jobLogger(id)

	file, err := os.Open(job.OutputPath)
	if err != nil {
		m.endTransfer(id)
		m.deleteArtifact(logger, job.OutputPath, "output")
		logging.WarnWithContext(logger, "ready output could not be opened", "delivery_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for external cleanup of scratch_dir"),
			logging.String(logging.FieldImpact, "client receives not found"),
		)
		return nil, services.Wrap(services.ErrNotFound, "jobs", "retrieve", "open output", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		m.endTransfer(id)
		m.deleteArtifact(logger, job.OutputPath, "output")
		logging.WarnWithContext(logger, "ready output could not be read", "delivery_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check for external cleanup of scratch_dir"),
			logging.String(logging.FieldImpact, "client receives not found"),
		)
		return nil, services.Wrap(services.ErrNotFound, "jobs", "retrieve", "stat output", err)
	}

	logger.Info("delivery started",
		logging.String(logging.FieldState, string(StateDelivered)),
		logging.Int64("output_bytes", info.Size()),
		logging.String(logging.FieldEventType, "delivery_started"),
	)

	return &Artifact{
		File:    file,
		JobID:   id,
		Name:    m.settings.Profile.DownloadName(job.OriginalName),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		release: func() error {
			m.endTransfer(id)
			if err := m.storage.Delete(job.OutputPath); err != nil {
				logging.WarnWithContext(logger, "failed to delete delivered output", "delivery_cleanup_failed",
					logging.String("path", job.OutputPath),
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
					logging.String(logging.FieldImpact, "file remains until the orphan sweep"),
				)
				return err
			}
			logger.Debug("delivered output deleted", logging.String(logging.FieldEventType, "delivery_cleanup"))
			return nil
		},
	}, nil
}

// endTransfer clears the open-transfer flag. The delivered record itself is
// final and is not touched.
func (m *Manager) endTransfer(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.jobs[id]; ok {
		rec.transferOpen = false
	}
}
