package jobstore

import (
	"context"
	"log/slog"

	"cadence/internal/jobs"
	"cadence/internal/logging"
)

// Recorder persists every job transition. Write failures are logged and
// never block the lifecycle.
type Recorder struct {
	store  *Store
	logger *slog.Logger
}

// NewRecorder returns an observer that writes snapshots to store.
func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logging.NewComponentLogger(logger, "jobstore")}
}

// JobChanged implements jobs.Observer. Out-of-order calls are harmless
// because Upsert ignores older revisions.
func (r *Recorder) JobChanged(ctx context.Context, job jobs.Job, _ jobs.State) {
	if r == nil || r.store == nil {
		return
	}
	if err := r.store.Upsert(context.WithoutCancel(ctx), RecordFromJob(job)); err != nil {
		logging.WarnWithContext(r.logger, "failed to record job transition", "job_record_failed",
			logging.String(logging.FieldJobID, job.ID),
			logging.String(logging.FieldState, string(job.State)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and free space"),
			logging.String(logging.FieldImpact, "job history is incomplete"),
		)
	}
}
