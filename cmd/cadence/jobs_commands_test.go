package main

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"cadence/internal/config"
	"cadence/internal/jobs"
	"cadence/internal/jobstore"
	"cadence/internal/services"
)

func seedHistory(t *testing.T, env *cliTestEnv) {
	t.Helper()
	cfg, _, _, err := config.Load(env.configPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	store, err := jobstore.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	records := []jobstore.Record{
		{ID: "job-delivered", State: jobs.StateDelivered, OriginalName: "a.mp4", SizeBytes: 2048, OutputBytes: 512, Revision: 5, CreatedAt: old, UpdatedAt: old, StartedAt: old, FinishedAt: old},
		{ID: "job-failed", State: jobs.StateFailed, OriginalName: "b.mp4", SizeBytes: 10, FailureKind: services.KindEngine, ErrorDetail: "invalid data found", Revision: 4, CreatedAt: now, UpdatedAt: now, FinishedAt: now},
	}
	for _, rec := range records {
		if err := store.Upsert(context.Background(), rec); err != nil {
			t.Fatalf("upsert %s: %v", rec.ID, err)
		}
	}
}

func TestJobsListShowAndPrune(t *testing.T) {
	env := setupCLITestEnv(t)
	seedHistory(t, env)

	out, _, err := runCLI(t, []string{"jobs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list: %v", err)
	}
	requireContains(t, out, "job-delivered")
	requireContains(t, out, "Failed")
	requireContains(t, out, "engine: invalid data found")
	if strings.Index(out, "job-failed") > strings.Index(out, "job-delivered") {
		t.Fatalf("expected newest first:\n%s", out)
	}

	out, _, err = runCLI(t, []string{"jobs", "list", "--state", "failed", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list --json: %v", err)
	}
	var records []jobstore.Record
	if err := json.Unmarshal([]byte(out), &records); err != nil {
		t.Fatalf("decode json: %v\n%s", err, out)
	}
	if len(records) != 1 || records[0].ID != "job-failed" {
		t.Fatalf("unexpected filtered records: %+v", records)
	}

	if _, _, err := runCLI(t, []string{"jobs", "list", "--state", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected unknown state error")
	}

	out, _, err = runCLI(t, []string{"jobs", "show", "job-delivered"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs show: %v", err)
	}
	requireContains(t, out, "Delivered")
	requireContains(t, out, "512 B")

	if _, _, err := runCLI(t, []string{"jobs", "show", "missing"}, env.configPath); err == nil {
		t.Fatal("expected not found error")
	}

	out, _, err = runCLI(t, []string{"jobs", "prune", "--older-than", "24h"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs prune: %v", err)
	}
	requireContains(t, out, "Removed 1 job record(s)")

	out, _, err = runCLI(t, []string{"jobs", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("jobs list after prune: %v", err)
	}
	if strings.Contains(out, "job-delivered") {
		t.Fatalf("expected delivered record pruned:\n%s", out)
	}
}

func TestParseStates(t *testing.T) {
	states, err := parseStates([]string{"failed, ready", "delivered"})
	if err != nil {
		t.Fatalf("parseStates: %v", err)
	}
	want := []jobs.State{jobs.StateFailed, jobs.StateReady, jobs.StateDelivered}
	if len(states) != len(want) {
		t.Fatalf("got %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("got %v, want %v", states, want)
		}
	}
}
