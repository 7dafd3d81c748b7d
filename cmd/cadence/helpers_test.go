package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	scratchDir string
	stateDir   string
}

// setupCLITestEnv writes a config rooted in a temp dir. ffmpeg is a shell
// stub that writes a fixed payload to its last argument.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("MAX_FILE_SIZE", "")
	t.Setenv("CADENCE_FFMPEG", "")
	t.Setenv("CADENCE_SCRATCH_DIR", "")
	t.Setenv("CADENCE_API_BIND", "")

	binDir := filepath.Join(base, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffmpeg := filepath.Join(binDir, "ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\nprintf 'ID3converted' > \"$last\"\n"
	if err := os.WriteFile(ffmpeg, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffmpeg stub: %v", err)
	}

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(base, "config.toml"),
		scratchDir: filepath.Join(base, "scratch"),
		stateDir:   filepath.Join(base, "state"),
	}
	content := fmt.Sprintf(`[paths]
scratch_dir = %q
state_dir = %q
log_dir = %q
api_bind = "127.0.0.1:0"

[upload]
max_size = "1MiB"

[transcode]
ffmpeg_binary = %q
timeout_seconds = 30
max_concurrent = 1
`, env.scratchDir, env.stateDir, filepath.Join(base, "logs"), ffmpeg)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
