package deps

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Optional", Command: "also-not-present", Optional: true},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[3].Detail != "command not configured" {
		t.Fatalf("unexpected blank detail: %q", results[3].Detail)
	}

	missing := MissingRequired(results)
	if len(missing) != 2 || missing[0] != "Missing" || missing[1] != "Blank" {
		t.Fatalf("unexpected missing list: %v", missing)
	}
}

func TestVersionTrimsCopyright(t *testing.T) {
	stubCommand(t, "ffmpeg version 7.1 Copyright (c) 2000-2024 the FFmpeg developers\nbuilt with gcc\n")

	version, err := Version(context.Background(), "ffmpeg")
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != "ffmpeg version 7.1" {
		t.Fatalf("unexpected version %q", version)
	}
}

func TestWithVersionsSkipsUnavailable(t *testing.T) {
	stubCommand(t, "ffprobe version 7.1\n")

	statuses := WithVersions(context.Background(), []Status{
		{Name: "FFprobe", Command: "ffprobe", Available: true},
		{Name: "FFmpeg", Command: "ffmpeg"},
	})
	if statuses[0].Version != "ffprobe version 7.1" {
		t.Fatalf("expected version on available status, got %q", statuses[0].Version)
	}
	if statuses[1].Version != "" {
		t.Fatalf("expected no version on unavailable status, got %q", statuses[1].Version)
	}
}

func stubCommand(t *testing.T, output string) {
	t.Helper()
	orig := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cmdArgs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cmdArgs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "HELPER_OUTPUT="+output)
		return cmd
	}
	t.Cleanup(func() { commandContext = orig })
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, os.Getenv("HELPER_OUTPUT"))
	os.Exit(0)
}
