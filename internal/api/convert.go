package api

import (
	"time"

	"cadence/internal/jobs"
	"cadence/internal/jobstore"
)

// FromJob converts a live job snapshot to its API representation.
func FromJob(job jobs.Job) Job {
	dto := Job{
		ID:           job.ID,
		State:        string(job.State),
		OriginalName: job.OriginalName,
		SizeBytes:    job.SizeBytes,
		OutputBytes:  job.OutputBytes,
		Error:        job.ErrorDetail,
		FailureKind:  string(job.FailureKind),
		CreatedAt:    formatTime(job.CreatedAt),
		UpdatedAt:    formatTime(job.UpdatedAt),
		StartedAt:    formatTime(job.StartedAt),
		FinishedAt:   formatTime(job.FinishedAt),
		Live:         true,
	}
	if job.State == jobs.StateReady {
		dto.DownloadURL = DownloadURL(job.ID)
	}
	return dto
}

// FromRecord converts a persisted history record.
func FromRecord(rec jobstore.Record) Job {
	return Job{
		ID:           rec.ID,
		State:        string(rec.State),
		OriginalName: rec.OriginalName,
		SizeBytes:    rec.SizeBytes,
		OutputBytes:  rec.OutputBytes,
		Error:        rec.ErrorDetail,
		FailureKind:  string(rec.FailureKind),
		CreatedAt:    formatTime(rec.CreatedAt),
		UpdatedAt:    formatTime(rec.UpdatedAt),
		StartedAt:    formatTime(rec.StartedAt),
		FinishedAt:   formatTime(rec.FinishedAt),
	}
}

// DownloadURL returns the retrieval path for a job.
func DownloadURL(id string) string {
	return "/api/download/" + id
}

// StatusURL returns the status path for a job.
func StatusURL(id string) string {
	return "/api/jobs/" + id
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
