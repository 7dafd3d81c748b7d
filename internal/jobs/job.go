package jobs

import (
	"io"
	"time"

	"cadence/internal/services"
)

// Job is a point-in-time copy of one conversion request. Copies are safe to
// hold and share; the manager never hands out its internal record.
type Job struct {
	ID           string        `json:"id"`
	State        State         `json:"state"`
	OriginalName string        `json:"original_name,omitempty"`
	InputPath    string        `json:"-"`
	OutputPath   string        `json:"-"`
	SizeBytes    int64         `json:"size_bytes"`
	OutputBytes  int64         `json:"output_bytes,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	StartedAt    time.Time     `json:"started_at,omitzero"`
	FinishedAt   time.Time     `json:"finished_at,omitzero"`
	ErrorDetail  string        `json:"error,omitempty"`
	FailureKind  services.Kind `json:"failure_kind,omitempty"`
	// Revision increases on every transition so observers can discard
	// out-of-order notifications.
	Revision int `json:"revision"`
}

// ConversionDuration returns the time spent converting, or zero when the
// engine never started.
func (j Job) ConversionDuration() time.Duration {
	if j.StartedAt.IsZero() {
		return 0
	}
	end := j.FinishedAt
	if end.IsZero() {
		end = j.UpdatedAt
	}
	if end.Before(j.StartedAt) {
		return 0
	}
	return end.Sub(j.StartedAt)
}

// Submission is one inbound upload.
type Submission struct {
	Body         io.Reader
	DeclaredType string
	// DeclaredSize is the client-declared byte count, or -1 when unknown.
	DeclaredSize int64
	OriginalName string
}

// RejectedError is returned by Submit when the upload fails admission. The
// job still exists in the failed state under JobID.
type RejectedError struct {
	JobID string
	Err   error
}

func (e *RejectedError) Error() string {
	return "upload rejected: " + services.PublicMessage(e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }
