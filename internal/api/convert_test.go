package api

import (
	"testing"
	"time"

	"cadence/internal/jobs"
	"cadence/internal/jobstore"
	"cadence/internal/services"
)

func TestFromJobReadyIncludesDownloadURL(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	dto := FromJob(jobs.Job{
		ID:           "abc",
		State:        jobs.StateReady,
		OriginalName: "talk.mp4",
		InputPath:    "/scratch/upload-1.mp4",
		OutputPath:   "/scratch/converted-1.mp3",
		SizeBytes:    1024,
		OutputBytes:  256,
		CreatedAt:    created,
		UpdatedAt:    created.Add(time.Second),
	})

	if dto.DownloadURL != "/api/download/abc" {
		t.Fatalf("DownloadURL = %q", dto.DownloadURL)
	}
	if !dto.Live {
		t.Fatal("live job should be marked live")
	}
	if dto.CreatedAt != "2026-03-01T11:00:00.000Z" {
		t.Fatalf("CreatedAt = %q, want UTC", dto.CreatedAt)
	}
	if dto.StartedAt != "" || dto.FinishedAt != "" {
		t.Fatalf("zero times should be empty: %+v", dto)
	}
}

func TestFromJobOnlyOffersDownloadWhenReady(t *testing.T) {
	for _, state := range []jobs.State{jobs.StateConverting, jobs.StateDelivered, jobs.StateFailed} {
		if dto := FromJob(jobs.Job{ID: "x", State: state}); dto.DownloadURL != "" {
			t.Errorf("state %s should not offer a download", state)
		}
	}
}

func TestFromRecordIsNotLive(t *testing.T) {
	dto := FromRecord(jobstore.Record{
		ID:          "old",
		State:       jobs.StateFailed,
		FailureKind: services.KindInterrupted,
		ErrorDetail: "service restarted before the job finished",
	})
	if dto.Live || dto.DownloadURL != "" {
		t.Fatalf("history record must not be live: %+v", dto)
	}
	if dto.FailureKind != "interrupted" || dto.Error == "" {
		t.Fatalf("unexpected failure fields: %+v", dto)
	}
}
