package jobs

import (
	"context"
	"time"

	"cadence/internal/transcode"
)

// Execution is a running conversion.
type Execution interface {
	Done() <-chan transcode.Outcome
	Cancel()
}

// Engine starts conversions. *transcode.Executor satisfies it through
// ExecutorEngine; tests substitute an in-process fake.
type Engine interface {
	Start(ctx context.Context, inputPath, outputPath string, profile transcode.Profile) (Execution, error)
}

// ExecutorEngine adapts a transcode.Executor to Engine.
type ExecutorEngine struct {
	Executor *transcode.Executor
}

// Start implements Engine.
func (e ExecutorEngine) Start(ctx context.Context, inputPath, outputPath string, profile transcode.Profile) (Execution, error) {
	handle, err := e.Executor.Start(ctx, inputPath, outputPath, profile)
	if err != nil {
		return nil, err
	}
	return handle, nil
}

// Prober inspects a staged input before conversion. A non-nil error fails
// the job without starting the engine.
type Prober func(ctx context.Context, inputPath string) error

// Observer receives a copy of the job after every transition. Calls happen
// outside the manager lock and may arrive out of order across goroutines;
// Revision orders them.
type Observer interface {
	JobChanged(ctx context.Context, job Job, from State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, job Job, from State)

// JobChanged implements Observer.
func (f ObserverFunc) JobChanged(ctx context.Context, job Job, from State) { f(ctx, job, from) }

// HistoryPruner removes persisted job records older than a cutoff.
type HistoryPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
