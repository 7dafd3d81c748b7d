package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogsPrintsTrailingLines(t *testing.T) {
	env := setupCLITestEnv(t)
	logDir := filepath.Join(env.baseDir, "logs")
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	content := "one\ntwo\nthree\n"
	if err := os.WriteFile(filepath.Join(logDir, "cadence.log"), []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) != "two\nthree" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestLogsReportsMissingFile(t *testing.T) {
	env := setupCLITestEnv(t)
	out, stderr, err := runCLI(t, []string{"logs"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "" {
		t.Fatalf("expected no stdout, got %q", out)
	}
	requireContains(t, stderr, "No log output")
}
