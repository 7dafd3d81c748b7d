package metrics

import (
	"context"

	"cadence/internal/jobs"
)

// JobObserver feeds job transitions into the collectors.
type JobObserver struct {
	counts func() map[jobs.State]int
}

// NewJobObserver returns an observer. counts, when set, is read after each
// transition to refresh the per-state gauge; the sweeper drops records
// without a transition, so the gauge is derived rather than incremented.
func NewJobObserver(counts func() map[jobs.State]int) *JobObserver {
	return &JobObserver{counts: counts}
}

// JobChanged implements jobs.Observer.
func (o *JobObserver) JobChanged(_ context.Context, job jobs.Job, from jobs.State) {
	if from == "" {
		JobsSubmittedTotal.Inc()
	} else {
		JobTransitionsTotal.WithLabelValues(string(from), string(job.State)).Inc()
	}

	switch job.State {
	case jobs.StateStaged:
		UploadBytes.Observe(float64(job.SizeBytes))
	case jobs.StateReady:
		ConversionDuration.WithLabelValues("ready").Observe(job.ConversionDuration().Seconds())
	case jobs.StateFailed:
		JobFailuresTotal.WithLabelValues(string(job.FailureKind)).Inc()
		if from == jobs.StateConverting {
			ConversionDuration.WithLabelValues("failed").Observe(job.ConversionDuration().Seconds())
		}
	}

	o.Refresh()
}

// Refresh sets the per-state gauge from the current counts.
func (o *JobObserver) Refresh() {
	if o == nil || o.counts == nil {
		return
	}
	SetJobCounts(o.counts())
}

// SetJobCounts publishes tracked job counts for every known state.
func SetJobCounts(counts map[jobs.State]int) {
	for _, state := range jobs.AllStates() {
		JobsInState.WithLabelValues(string(state)).Set(float64(counts[state]))
	}
}
