package transcode

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"cadence/internal/logging"
	"cadence/internal/services"
)

var commandContext = exec.CommandContext

// Outcome is the terminal result of one engine run. A nil Err is success.
type Outcome struct {
	Err         error
	Duration    time.Duration
	OutputBytes int64
}

// EngineError describes a failed engine run. Summary is safe to show to
// callers; Detail holds the stderr tail for logs only.
type EngineError struct {
	Summary  string
	ExitCode int
	Detail   string
}

func (e *EngineError) Error() string {
	if e.ExitCode != 0 {
		return fmt.Sprintf("engine exited with code %d: %s", e.ExitCode, e.Summary)
	}
	return "engine failed: " + e.Summary
}

func (e *EngineError) Unwrap() error { return services.ErrEngine }

// PublicMessage returns the summarized diagnostic.
func (e *EngineError) PublicMessage() string { return e.Summary }

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRemover overrides how partial outputs are deleted. The lifecycle
// manager passes its scratch manager so deletions stay inside scratch.
func WithRemover(remove func(path string) error) Option {
	return func(e *Executor) {
		if remove != nil {
			e.remove = remove
		}
	}
}

// WithWaitDelay bounds how long Wait blocks for I/O after the process is killed.
func WithWaitDelay(d time.Duration) Option {
	return func(e *Executor) {
		e.waitDelay = d
	}
}

// Executor launches ffmpeg processes.
type Executor struct {
	binary    string
	logger    *slog.Logger
	remove    func(path string) error
	waitDelay time.Duration
}

// NewExecutor constructs an Executor for binary (default "ffmpeg").
func NewExecutor(binary string, opts ...Option) *Executor {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	e := &Executor{
		binary:    binary,
		logger:    logging.NewNop(),
		remove:    removeIfExists,
		waitDelay: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Binary returns the configured engine command.
func (e *Executor) Binary() string {
	return e.binary
}

// Start launches the engine for inputPath -> outputPath. The returned Handle
// resolves when the process exits. When ctx ends first the process is killed
// and the outcome carries ErrTimeout (deadline) or ErrCanceled.
func (e *Executor) Start(ctx context.Context, inputPath, outputPath string, profile Profile) (*Handle, error) {
	if strings.TrimSpace(inputPath) == "" || strings.TrimSpace(outputPath) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "start", "input and output paths are required", nil)
	}
	if err := profile.Validate(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "transcode", "start", "invalid profile", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	args := profile.Args(inputPath, outputPath)
	cmd := commandContext(runCtx, e.binary, args...) //nolint:gosec
	tail := newTailBuffer(stderrTailBytes)
	cmd.Stderr = tail
	cmd.WaitDelay = e.waitDelay

	logger := logging.WithContext(ctx, e.logger)
	logger.Debug("starting engine",
		logging.String("binary", e.binary),
		logging.String("args", strings.Join(args, " ")),
	)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, services.Wrap(services.ErrEngine, "transcode", "start", e.binary, err)
	}

	h := &Handle{
		done:     make(chan Outcome, 1),
		finished: make(chan struct{}),
		cancel:   cancel,
		output:   outputPath,
		pid:      cmd.Process.Pid,
	}
	go h.supervise(ctx, cmd, tail, started, e.remove, logger)
	return h, nil
}

// Handle tracks one running engine process.
type Handle struct {
	done     chan Outcome
	finished chan struct{}
	cancel   context.CancelFunc
	output   string
	pid      int

	cancelOnce sync.Once
	mu         sync.Mutex
	canceled   bool
	outcome    Outcome
}

// Done receives exactly one Outcome when the process has exited and any
// partial output has been removed.
func (h *Handle) Done() <-chan Outcome {
	return h.done
}

// Wait blocks until the process has exited and returns its Outcome. Unlike
// Done it may be called any number of times.
func (h *Handle) Wait() Outcome {
	<-h.finished
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// PID returns the engine process id.
func (h *Handle) PID() int {
	return h.pid
}

// Cancel terminates the process, waits for it to exit and ensures the partial
// output is gone. Calling Cancel after completion or more than once is safe.
func (h *Handle) Cancel() {
	h.cancelOnce.Do(func() {
		h.mu.Lock()
		select {
		case <-h.finished:
		default:
			h.canceled = true
		}
		h.mu.Unlock()
		h.cancel()
	})
	<-h.finished
}

func (h *Handle) supervise(parent context.Context, cmd *exec.Cmd, tail *tailBuffer, started time.Time, remove func(string) error, logger *slog.Logger) {
	waitErr := cmd.Wait()
	elapsed := time.Since(started)

	h.mu.Lock()
	canceled := h.canceled
	h.mu.Unlock()

	outcome := Outcome{Duration: elapsed}
	switch {
	case canceled:
		outcome.Err = services.Wrap(services.ErrCanceled, "transcode", "wait", "conversion canceled", nil)
	case waitErr != nil && errors.Is(parent.Err(), context.DeadlineExceeded):
		outcome.Err = services.Wrap(services.ErrEngine, "transcode", "wait",
			fmt.Sprintf("conversion timed out after %s", elapsed.Round(time.Second)), services.ErrTimeout)
	case waitErr != nil && parent.Err() != nil:
		outcome.Err = services.Wrap(services.ErrCanceled, "transcode", "wait", "conversion canceled", parent.Err())
	case waitErr != nil:
		stderr := tail.String()
		engineErr := &EngineError{Summary: Summarize(stderr), ExitCode: exitCode(waitErr), Detail: lastLine(stderr)}
		outcome.Err = engineErr
	default:
		size, err := outputSize(h.output)
		if err != nil || size == 0 {
			outcome.Err = &EngineError{Summary: "engine produced no output", Detail: errorDetail(err)}
		} else {
			outcome.OutputBytes = size
		}
	}

	if outcome.Err != nil {
		if err := remove(h.output); err != nil {
			logging.WarnWithContext(logger, "failed to remove partial output", "partial_output_cleanup_failed",
				logging.String("path", h.output),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check scratch_dir permissions"),
				logging.String(logging.FieldImpact, "partial file remains until the orphan sweep"),
			)
		}
		var engineErr *EngineError
		if errors.As(outcome.Err, &engineErr) {
			logger.Debug("engine failed",
				logging.Int("exit_code", engineErr.ExitCode),
				logging.String("stderr_tail", engineErr.Detail),
				logging.Duration("elapsed", elapsed),
			)
		}
	} else {
		logger.Debug("engine finished",
			logging.Duration("elapsed", elapsed),
			logging.Int64("output_bytes", outcome.OutputBytes),
		)
	}

	h.cancel()
	h.mu.Lock()
	h.outcome = outcome
	h.mu.Unlock()
	close(h.finished)
	h.done <- outcome
}

func outputSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("output is not a regular file")
	}
	return info.Size(), nil
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
