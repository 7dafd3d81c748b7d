package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"cadence/internal/config"
	"cadence/internal/deps"
	"cadence/internal/jobs"
	"cadence/internal/jobstore"
	"cadence/internal/logging"
	"cadence/internal/metrics"
	"cadence/internal/preflight"
	"cadence/internal/scratch"
)

// shutdownTimeout bounds how long Stop waits for job goroutines.
const shutdownTimeout = 15 * time.Second

// Daemon coordinates the service components and enforces single-instance execution.
type Daemon struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *jobstore.Store
	manager *jobs.Manager
	storage *scratch.Manager
	version string

	lockPath string
	lock     *flock.Flock
	api      atomic.Pointer[apiServer]

	running   atomic.Bool
	startedAt time.Time
	deps      []deps.Status
	cancel    context.CancelFunc
	sweeper   sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	Version       string
	StartedAt     time.Time
	ListenAddress string
	JobDBPath     string
	LockFilePath  string
	MaxConcurrent int
	Jobs          map[jobs.State]int
	History       map[jobs.State]int
	ScratchDir    string
	Scratch       scratch.Usage
	Dependencies  []deps.Status
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithVersion records the build version reported by Status.
func WithVersion(version string) Option {
	return func(d *Daemon) {
		d.version = version
	}
}

// New constructs a daemon around an already wired manager. store may be nil
// when history is disabled.
func New(cfg *config.Config, store *jobstore.Store, manager *jobs.Manager, storage *scratch.Manager, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || manager == nil || storage == nil {
		return nil, errors.New("daemon requires config, job manager and scratch storage")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		manager:  manager,
		storage:  storage,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start acquires the instance lock, recovers state left by a previous
// process and starts the sweeper and the API listener.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}
	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another cadence instance is already running")
	}

	d.deps = deps.WithVersions(ctx, preflight.CheckSystemDeps(d.cfg))
	if missing := deps.MissingRequired(d.deps); len(missing) > 0 {
		logging.WarnWithContext(d.logger, "required binaries missing", "dependency_missing",
			logging.Any("missing", missing),
			logging.String(logging.FieldErrorHint, "install ffmpeg or set transcode.ffmpeg_binary"),
			logging.String(logging.FieldImpact, "every conversion will fail"),
		)
	}

	if d.store != nil {
		interrupted, err := d.store.MarkInterrupted(ctx, time.Now())
		if err != nil {
			logging.WarnWithContext(d.logger, "failed to mark interrupted jobs", "history_recovery_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check state_dir database health"),
				logging.String(logging.FieldImpact, "history may list stale in-flight jobs"),
			)
		} else if interrupted > 0 {
			d.logger.Info("marked interrupted jobs from previous run",
				logging.Int64("count", interrupted),
				logging.String(logging.FieldEventType, "history_recovered"),
			)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.afterSweep(d.manager.Sweep(runCtx, time.Now()))
	d.sweeper.Add(1)
	go func() {
		defer d.sweeper.Done()
		d.manager.RunSweeper(runCtx, d.cfg.SweepInterval(), d.afterSweep)
	}()

	// Handlers read startedAt through Status once the listener is up.
	d.startedAt = time.Now()
	srv, err := newAPIServer(d.cfg, d, d.logger)
	if err == nil {
		err = srv.start(runCtx)
	}
	if err != nil {
		cancel()
		d.sweeper.Wait()
		_ = d.lock.Unlock()
		d.cancel = nil
		return fmt.Errorf("start api server: %w", err)
	}
	d.api.Store(srv)

	d.running.Store(true)
	d.logger.Info("cadence daemon started",
		logging.String("lock", d.lockPath),
		logging.String("address", d.ListenAddress()),
		logging.Int("max_concurrent", d.manager.Settings().MaxConcurrent),
		logging.String(logging.FieldEventType, "daemon_started"),
	)
	return nil
}

// Stop closes the listener, fails undelivered jobs, deletes their files and
// releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.Swap(nil).stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.sweeper.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := d.manager.Shutdown(ctx); err != nil {
		logging.WarnWithContext(d.logger, "job shutdown incomplete", "daemon_shutdown_timeout",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "a conversion ignored cancellation"),
			logging.String(logging.FieldImpact, "scratch files are reaped on next start"),
		)
	}

	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_unlock_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove the lock file if the next start fails"),
		)
	}
	d.running.Store(false)
	d.logger.Info("cadence daemon stopped", logging.String(logging.FieldEventType, "daemon_stopped"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// ListenAddress returns the bound API address, or "" when not listening.
func (d *Daemon) ListenAddress() string {
	return d.api.Load().address()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		Version:       d.version,
		StartedAt:     d.startedAt,
		ListenAddress: d.ListenAddress(),
		JobDBPath:     d.cfg.DatabasePath(),
		LockFilePath:  d.lockPath,
		MaxConcurrent: d.manager.Settings().MaxConcurrent,
		Jobs:          d.manager.Counts(),
		ScratchDir:    d.storage.Dir(),
		Dependencies:  d.deps,
	}
	if status.Dependencies == nil {
		status.Dependencies = preflight.CheckSystemDeps(d.cfg)
	}
	if usage, err := d.storage.Usage(); err == nil {
		status.Scratch = usage
	}
	if d.store != nil {
		if history, err := d.store.Stats(ctx); err == nil {
			status.History = history
		}
	}
	return status
}

func (d *Daemon) afterSweep(result jobs.SweepResult) {
	metrics.SweepsTotal.Inc()
	metrics.ScratchReapedTotal.Add(float64(result.Reaped))
	metrics.SetJobCounts(d.manager.Counts())
	usage, err := d.storage.Usage()
	if err != nil {
		d.logger.Debug("scratch usage unavailable", logging.Error(err))
		return
	}
	metrics.SetScratchUsage(usage.Files, usage.Bytes)
}
