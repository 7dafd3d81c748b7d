package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cadence/internal/api"
)

func TestStatusCommandRendersDaemonStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(api.DaemonStatus{
			Running:       true,
			PID:           4242,
			Version:       "1.2.3",
			ListenAddress: "127.0.0.1:3000",
			MaxConcurrent: 2,
			Jobs:          map[string]int{"converting": 1, "ready": 2},
			Scratch:       api.ScratchUsage{Dir: "/tmp/scratch", Files: 3, Bytes: 3 << 20},
			Dependencies: []api.DependencyStatus{
				{Name: "FFmpeg", Command: "ffmpeg", Available: true, Version: "6.1"},
				{Name: "FFprobe", Command: "ffprobe", Optional: true, Detail: "not found"},
			},
		})
	}))
	defer srv.Close()

	addr := strings.TrimPrefix(srv.URL, "http://")
	out, _, err := runCLI(t, []string{"--addr", addr, "status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid 4242)")
	requireContains(t, out, "converting 1, ready 2")
	requireContains(t, out, "3.0 MiB in 3 file(s)")
	requireContains(t, out, "ffmpeg (6.1)")
	requireContains(t, out, "[WARN] optional, not found")
}

func TestStatusCommandReportsDaemonErrors(t *testing.T) {
	env := setupCLITestEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "status unavailable"})
	}))
	defer srv.Close()

	_, _, err := runCLI(t, []string{"--addr", srv.URL, "status"}, env.configPath)
	if err == nil {
		t.Fatal("expected error")
	}
	requireContains(t, err.Error(), "status unavailable")
}

func TestDialAddress(t *testing.T) {
	cases := map[string]string{
		"0.0.0.0:3000":   "127.0.0.1:3000",
		":3000":          "127.0.0.1:3000",
		"10.0.0.5:8080":  "10.0.0.5:8080",
		"[::]:3000":      "127.0.0.1:3000",
		"not-an-address": "not-an-address",
	}
	for in, want := range cases {
		if got := dialAddress(in); got != want {
			t.Errorf("dialAddress(%q) = %q, want %q", in, got, want)
		}
	}
}
