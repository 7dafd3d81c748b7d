package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"cadence/internal/logging"
	"cadence/internal/scratch"
	"cadence/internal/services"
	"cadence/internal/transcode"
	"cadence/internal/upload"
)

// ErrShuttingDown is returned by Submit once Shutdown has begun.
var ErrShuttingDown = errors.New("job manager shutting down")

const defaultCancelGrace = 5 * time.Second

// Settings holds the lifecycle bounds.
type Settings struct {
	Profile       transcode.Profile
	Timeout       time.Duration
	MaxConcurrent int
	// FailureRetention keeps failed records (and undelivered outputs) this long.
	FailureRetention time.Duration
	// DeliveryGrace keeps delivered records this long after the transfer.
	DeliveryGrace time.Duration
	OrphanMaxAge  time.Duration
	// HistoryRetention bounds persisted records; zero disables pruning.
	HistoryRetention time.Duration
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver registers an observer for job transitions.
func WithObserver(observer Observer) Option {
	return func(m *Manager) {
		if observer != nil {
			m.observers = append(m.observers, observer)
		}
	}
}

// WithProber enables pre-conversion input inspection.
func WithProber(prober Prober) Option {
	return func(m *Manager) {
		m.prober = prober
	}
}

// WithHistory lets the sweeper prune persisted records.
func WithHistory(pruner HistoryPruner) Option {
	return func(m *Manager) {
		m.history = pruner
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// record is the manager's private view of one job.
type record struct {
	job Job
	// closing is set while a failure cleanup runs so no other transition
	// can race it.
	closing bool
	// transferOpen is set while a delivered artifact is still being read.
	transferOpen bool
	cancel       context.CancelFunc
	exec         Execution
	settled      chan struct{}
	settledOnce  sync.Once
}

func (r *record) markSettled() {
	r.settledOnce.Do(func() { close(r.settled) })
}

// Manager owns every job's state and drives conversions. Each job runs on its
// own goroutine; the only state shared across jobs is the record table and
// the scratch directory.
type Manager struct {
	storage   *scratch.Manager
	validator upload.Validator
	engine    Engine
	prober    Prober
	history   HistoryPruner
	settings  Settings
	slots     *semaphore.Weighted
	logger    *slog.Logger
	observers []Observer
	now       func() time.Time

	// cancelGrace bounds the wait for an engine to stop after its deadline.
	cancelGrace time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu     sync.Mutex
	jobs   map[string]*record
	closed bool
}

// NewManager wires a lifecycle manager. storage, engine and a positive
// timeout are required.
func NewManager(storage *scratch.Manager, validator upload.Validator, engine Engine, settings Settings, opts ...Option) (*Manager, error) {
	if storage == nil {
		return nil, errors.New("jobs: scratch storage is required")
	}
	if engine == nil {
		return nil, errors.New("jobs: engine is required")
	}
	if settings.Timeout <= 0 {
		return nil, errors.New("jobs: conversion timeout must be positive")
	}
	if err := settings.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("jobs: %w", err)
	}
	if settings.MaxConcurrent <= 0 {
		settings.MaxConcurrent = runtime.NumCPU()
	}

	baseCtx, baseCancel := context.WithCancel(context.Background())
	m := &Manager{
		storage:     storage,
		validator:   validator,
		engine:      engine,
		settings:    settings,
		slots:       semaphore.NewWeighted(int64(settings.MaxConcurrent)),
		logger:      logging.NewNop(),
		now:         time.Now,
		cancelGrace: defaultCancelGrace,
		baseCtx:     baseCtx,
		baseCancel:  baseCancel,
		jobs:        make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = logging.NewComponentLogger(m.logger, "jobs")
	return m, nil
}

// Settings returns the manager's lifecycle bounds.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Get returns a copy of the job.
func (m *Manager) Get(id string) (Job, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.jobs[id]
	if !ok {
		return Job{}, false
	}
	return rec.job, true
}

// List returns copies of every tracked job, oldest first.
func (m *Manager) List() []Job {
	m.mu.Lock()
	out := make([]Job, 0, len(m.jobs))
	for _, rec := range m.jobs {
		out = append(out, rec.job)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Counts returns the number of tracked jobs per state.
func (m *Manager) Counts() map[State]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[State]int, len(allStates))
	for _, rec := range m.jobs {
		counts[rec.job.State]++
	}
	return counts
}

// Wait blocks until the job is ready, delivered or failed, or ctx ends.
func (m *Manager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	m.mu.Unlock()
	if !ok {
		return Job{}, notFound(id)
	}
	select {
	case <-rec.settled:
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return rec.job, nil
}

// Cancel fails a job that has not been delivered yet. Cancelling a ready job
// discards its output.
func (m *Manager) Cancel(id string) error {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	if !ok {
		m.mu.Unlock()
		return notFound(id)
	}
	if rec.job.State.Terminal() || rec.closing {
		m.mu.Unlock()
		return services.Wrap(services.ErrNotFound, "jobs", "cancel", "job already finished", nil)
	}
	m.mu.Unlock()

	m.fail(id, services.Public("conversion canceled",
		services.Wrap(services.ErrCanceled, "jobs", "cancel", "canceled by request", nil)))
	return nil
}

// Shutdown stops accepting submissions, fails every job that has not been
// delivered, deletes their artifacts and waits for job goroutines to exit.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	var pending []string
	for id, rec := range m.jobs {
		if !rec.job.State.Terminal() {
			pending = append(pending, id)
		}
	}
	m.mu.Unlock()

	reason := services.Public("service shutting down",
		services.Wrap(services.ErrCanceled, "jobs", "shutdown", "service shutting down", nil))
	for _, id := range pending {
		m.fail(id, reason)
	}
	m.baseCancel()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for jobs: %w", ctx.Err())
	}
}

// InUse reports whether path belongs to a job whose artifacts may still be
// needed. The orphan reaper skips such paths.
func (m *Manager) InUse(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.jobs {
		if rec.job.InputPath != path && rec.job.OutputPath != path {
			continue
		}
		if !rec.job.State.Terminal() || rec.transferOpen || rec.closing {
			return true
		}
	}
	return false
}

// transition moves id from one of the allowed states to `to` and applies
// mutate under the lock. It returns false when the job is gone, already
// closing, or the move is not allowed.
func (m *Manager) transition(id string, to State, mutate func(rec *record)) (Job, State, bool) {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	if !ok || rec.closing || !canTransition(rec.job.State, to) {
		m.mu.Unlock()
		return Job{}, "", false
	}
	from := rec.job.State
	now := m.now()
	rec.job.State = to
	rec.job.UpdatedAt = now
	rec.job.Revision++
	if to.Terminal() {
		rec.job.FinishedAt = now
	}
	if mutate != nil {
		mutate(rec)
	}
	if to.Settled() {
		rec.markSettled()
	}
	snapshot := rec.job
	m.mu.Unlock()

	m.notify(snapshot, from)
	return snapshot, from, true
}

// fail runs the failure path for id: it claims the job, stops any running
// engine, deletes both artifacts and only then records the failed state.
func (m *Manager) fail(id string, cause error) {
	m.mu.Lock()
	rec, ok := m.jobs[id]
	if !ok || rec.closing || !canTransition(rec.job.State, StateFailed) {
		m.mu.Unlock()
		return
	}
	rec.closing = true
	exec := rec.exec
	cancel := rec.cancel
	input, output := rec.job.InputPath, rec.job.OutputPath
	m.mu.Unlock()

	if exec != nil {
		exec.Cancel()
	}
	if cancel != nil {
		cancel()
	}
	logger := m.jobLogger(id)
	m.deleteArtifact(logger, input, "input")
	m.deleteArtifact(logger, output, "output")

	m.mu.Lock()
	from := rec.job.State
	now := m.now()
	rec.closing = false
	rec.exec = nil
	rec.job.State = StateFailed
	rec.job.UpdatedAt = now
	rec.job.FinishedAt = now
	rec.job.Revision++
	rec.job.FailureKind = services.KindOf(cause)
	rec.job.ErrorDetail = services.PublicMessage(cause)
	rec.markSettled()
	snapshot := rec.job
	m.mu.Unlock()

	attrs := []logging.Attr{
		logging.String(logging.FieldState, string(StateFailed)),
		logging.String("from", string(from)),
		logging.String("failure_kind", string(snapshot.FailureKind)),
		logging.String("reason", snapshot.ErrorDetail),
		logging.String(logging.FieldEventType, "job_failed"),
	}
	if snapshot.FailureKind == services.KindValidation || snapshot.FailureKind == services.KindCanceled {
		logger.Info("job failed", logging.Args(append(attrs, logging.Error(cause))...)...)
	} else {
		logger.Warn("job failed", logging.Args(append(attrs,
			logging.Error(cause),
			logging.String(logging.FieldErrorHint, failureHint(snapshot.FailureKind)),
			logging.String(logging.FieldImpact, "submission must be retried by the client"),
		)...)...)
	}
	m.notify(snapshot, from)
}

func (m *Manager) deleteArtifact(logger *slog.Logger, path, role string) {
	if path == "" {
		return
	}
	if err := m.storage.Delete(path); err != nil {
		logging.WarnWithContext(logger, "failed to delete job artifact", "artifact_cleanup_failed",
			logging.String("path", path),
			logging.String("role", role),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
			logging.String(logging.FieldImpact, "file remains until the orphan sweep"),
		)
	}
}

func (m *Manager) notify(job Job, from State) {
	if len(m.observers) == 0 {
		return
	}
	ctx := services.WithJobID(context.Background(), job.ID)
	for _, observer := range m.observers {
		observer.JobChanged(ctx, job, from)
	}
}

func (m *Manager) jobLogger(id string) *slog.Logger {
	return m.logger.With(logging.String(logging.FieldJobID, id))
}

func notFound(id string) error {
	return services.Wrap(services.ErrNotFound, "jobs", "lookup", fmt.Sprintf("job %s", id), nil)
}

func failureHint(kind services.Kind) string {
	switch kind {
	case services.KindTimeout:
		return "raise transcode.timeout_seconds or lower upload.max_size"
	case services.KindEngine:
		return "inspect the engine stderr tail at debug level"
	case services.KindStorage:
		return "check scratch_dir free space and permissions"
	default:
		return "check logs for details"
	}
}
