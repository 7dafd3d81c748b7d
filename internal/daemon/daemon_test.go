package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"cadence/internal/api"
	"cadence/internal/config"
	"cadence/internal/daemon"
	"cadence/internal/daemonrun"
	"cadence/internal/jobstore"
	"cadence/internal/logging"
	"cadence/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config, store *jobstore.Store) *daemon.Daemon {
	t.Helper()
	logger := logging.NewNop()
	manager, storage, err := daemonrun.NewManager(cfg, logger, store)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	d, err := daemon.New(cfg, store, manager, storage, logger, daemon.WithVersion("test"))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	d := newDaemon(t, cfg, store)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second Start to fail")
	}

	status := d.Status(ctx)
	if !status.Running || status.Version != "test" {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.ListenAddress == "" {
		t.Fatal("expected a bound listen address")
	}
	if status.JobDBPath != cfg.DatabasePath() {
		t.Fatalf("JobDBPath = %q, want %q", status.JobDBPath, cfg.DatabasePath())
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/status", status.ListenAddress))
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var payload api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !payload.Running || payload.Version != "test" || payload.MaxConcurrent != 2 {
		t.Fatalf("unexpected api status: %+v", payload)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon stopped")
	}
	if d.ListenAddress() != "" {
		t.Fatal("expected listener closed after Stop")
	}
	d.Stop()
}

func TestDaemonStatusDuringStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	d := newDaemon(t, cfg, nil)

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				_ = d.Status(ctx)
				_ = d.ListenAddress()
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	d.Stop()
	close(stop)
	wg.Wait()

	if got := d.ListenAddress(); got != "" {
		t.Fatalf("ListenAddress after Stop = %q", got)
	}
}

func TestDaemonLockPreventsSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	first := newDaemon(t, cfg, nil)
	second := newDaemon(t, cfg, nil)

	ctx := context.Background()
	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer first.Stop()

	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected lock contention error")
	}
}

func TestDaemonMarksInterruptedJobsOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	if err := store.Upsert(ctx, jobstore.Record{
		ID:        "left-over",
		State:     "converting",
		Revision:  3,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	d := newDaemon(t, cfg, store)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	rec, err := store.Get(ctx, "left-over")
	if err != nil || rec == nil {
		t.Fatalf("Get: %v %v", rec, err)
	}
	if rec.State != "failed" || rec.FailureKind != "interrupted" {
		t.Fatalf("expected interrupted failure, got %+v", rec)
	}
	if got := d.Status(ctx).History["failed"]; got != 1 {
		t.Fatalf("history failed count = %d", got)
	}
}
