package daemonrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"cadence/internal/config"
	"cadence/internal/daemon"
	"cadence/internal/jobs"
	"cadence/internal/jobstore"
	"cadence/internal/logging"
	"cadence/internal/metrics"
	"cadence/internal/preflight"
	"cadence/internal/services"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel string
	Version  string
}

// Run starts the cadence service and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logCfg := *cfg
	if opts.LogLevel != "" {
		logCfg.Logging.Level = opts.LogLevel
	}
	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logName := fmt.Sprintf("cadence-%s.log", runID)
	logPath := filepath.Join(cfg.Paths.LogDir, logName)
	logger, err := logging.NewFromConfig(&logCfg, logName)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update cadence.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "cadence-*.log", Exclude: []string{logPath}},
	)

	results := preflight.RunAll(cfg)
	for _, result := range results {
		logger.Debug("preflight check",
			logging.String("check", result.Name),
			logging.Bool("passed", result.Passed),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldEventType, "preflight_check"),
		)
	}
	if err := preflight.Err(results); err != nil {
		logging.ErrorWithContext(logger, "preflight failed", "preflight_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "fix the listed checks or run `cadence config validate`"),
		)
		return err
	}

	metrics.SetAppInfo(opts.Version, runtime.Version())
	metrics.InitializeMetrics(stateLabels(), failureKinds())

	pidPath := filepath.Join(cfg.Paths.StateDir, "cadence.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobstore.Open(cfg)
	if err != nil {
		logging.ErrorWithContext(logger, "open job store", "jobstore_open_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete jobs.db in state_dir if the schema changed"),
		)
		return err
	}

	manager, storage, err := NewManager(cfg, logger, store)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create job manager: %w", err)
	}

	d, err := daemon.New(cfg, store, manager, storage, logger, daemon.WithVersion(opts.Version))
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-signalCtx.Done()
	logger.Info("cadence daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func stateLabels() []string {
	states := jobs.AllStates()
	out := make([]string, len(states))
	for i, state := range states {
		out[i] = string(state)
	}
	return out
}

func failureKinds() []string {
	return []string{
		string(services.KindValidation),
		string(services.KindStorage),
		string(services.KindEngine),
		string(services.KindTimeout),
		string(services.KindCanceled),
		string(services.KindExpired),
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "cadence.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
