package jobs

import (
	"context"
	"errors"
	"os"
	"sync"

	"cadence/internal/services"
	"cadence/internal/transcode"
)

type engineMode int

const (
	modeSuccess engineMode = iota
	modeFail
	modeHang
	modeStartError
	// modeStuck ignores cancellation until gate closes.
	modeStuck
)

// fakeEngine stands in for ffmpeg. Gated runs wait on gate before finishing.
type fakeEngine struct {
	mode engineMode
	gate chan struct{}

	mu      sync.Mutex
	started int
	active  int
	peak    int
}

func (f *fakeEngine) Start(ctx context.Context, inputPath, outputPath string, _ transcode.Profile) (Execution, error) {
	if f.mode == modeStartError {
		return nil, services.Wrap(services.ErrEngine, "transcode", "start", "ffmpeg", errors.New("exec: not found"))
	}
	f.mu.Lock()
	f.started++
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()

	exec := &fakeExecution{
		done:     make(chan transcode.Outcome, 1),
		finished: make(chan struct{}),
		stop:     make(chan struct{}),
	}
	go exec.run(ctx, f, inputPath, outputPath)
	return exec, nil
}

func (f *fakeEngine) running() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeEngine) stats() (started, peak int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.peak
}

type fakeExecution struct {
	done     chan transcode.Outcome
	finished chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func (e *fakeExecution) run(ctx context.Context, f *fakeEngine, inputPath, outputPath string) {
	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()
	_ = os.WriteFile(outputPath, []byte("partial"), 0o600)

	var outcome transcode.Outcome
	if f.mode == modeStuck {
		<-f.gate
		_ = os.Remove(outputPath)
		close(e.finished)
		e.done <- transcode.Outcome{Err: services.Wrap(services.ErrCanceled, "transcode", "wait", "", nil)}
		return
	}
	gate := f.gate
	if f.mode == modeHang {
		gate = nil
	} else if gate == nil {
		closed := make(chan struct{})
		close(closed)
		gate = closed
	}

	select {
	case <-gate:
		if _, err := os.Stat(inputPath); err != nil {
			outcome.Err = &transcode.EngineError{Summary: "input file is not a readable video", ExitCode: 1}
			break
		}
		switch f.mode {
		case modeFail:
			outcome.Err = &transcode.EngineError{Summary: "input file is not a readable video", ExitCode: 1}
		default:
			payload := []byte("ID3 converted audio")
			if err := os.WriteFile(outputPath, payload, 0o600); err != nil {
				outcome.Err = err
			}
			outcome.OutputBytes = int64(len(payload))
		}
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			outcome.Err = services.Wrap(services.ErrEngine, "transcode", "wait", "timed out", services.ErrTimeout)
		} else {
			outcome.Err = services.Wrap(services.ErrCanceled, "transcode", "wait", "", ctx.Err())
		}
	case <-e.stop:
		outcome.Err = services.Wrap(services.ErrCanceled, "transcode", "wait", "", nil)
	}

	if outcome.Err != nil {
		_ = os.Remove(outputPath)
	}
	close(e.finished)
	e.done <- outcome
}

func (e *fakeExecution) Done() <-chan transcode.Outcome { return e.done }

func (e *fakeExecution) Cancel() {
	e.stopOnce.Do(func() { close(e.stop) })
	<-e.finished
}
