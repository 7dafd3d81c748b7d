package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"cadence/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantScratch := filepath.Join(tempHome, ".cache", "cadence", "scratch")
	if cfg.Paths.ScratchDir != wantScratch {
		t.Fatalf("unexpected scratch dir: got %q want %q", cfg.Paths.ScratchDir, wantScratch)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "cadence") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:3000" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Upload.AcceptedType != "video/mp4" {
		t.Fatalf("unexpected accepted type: %q", cfg.Upload.AcceptedType)
	}
	if cfg.Upload.MaxBytes != 20*1024*1024 {
		t.Fatalf("expected 20 MiB limit, got %d", cfg.Upload.MaxBytes)
	}
	if cfg.Transcode.Codec != "libmp3lame" || cfg.Transcode.Bitrate != "192k" {
		t.Fatalf("unexpected transcode profile: %+v", cfg.Transcode)
	}
	if !cfg.Transcode.StripVideo {
		t.Fatal("expected video to be stripped by default")
	}
	if cfg.Transcode.MaxConcurrent <= 0 {
		t.Fatalf("expected positive concurrency cap, got %d", cfg.Transcode.MaxConcurrent)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.ScratchDir, cfg.Paths.StateDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "cadence.toml")

	type payload struct {
		Paths struct {
			ScratchDir string `toml:"scratch_dir"`
			StateDir   string `toml:"state_dir"`
		} `toml:"paths"`
		Upload struct {
			MaxSize string `toml:"max_size"`
		} `toml:"upload"`
		Transcode struct {
			Bitrate        string `toml:"bitrate"`
			TimeoutSeconds int    `toml:"timeout_seconds"`
			MaxConcurrent  int    `toml:"max_concurrent"`
		} `toml:"transcode"`
	}
	custom := payload{}
	custom.Paths.ScratchDir = filepath.Join(tempDir, "scratch")
	custom.Paths.StateDir = filepath.Join(tempDir, "state")
	custom.Upload.MaxSize = "5MB"
	custom.Transcode.Bitrate = "128k"
	custom.Transcode.TimeoutSeconds = 60
	custom.Transcode.MaxConcurrent = 2

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.ScratchDir != custom.Paths.ScratchDir {
		t.Fatalf("unexpected scratch dir: %q", cfg.Paths.ScratchDir)
	}
	if cfg.Upload.MaxBytes != 5_000_000 {
		t.Fatalf("expected 5MB limit, got %d", cfg.Upload.MaxBytes)
	}
	if cfg.Transcode.Bitrate != "128k" {
		t.Fatalf("unexpected bitrate: %q", cfg.Transcode.Bitrate)
	}
	if cfg.ConversionTimeout().Seconds() != 60 {
		t.Fatalf("unexpected timeout: %s", cfg.ConversionTimeout())
	}
	if cfg.Transcode.MaxConcurrent != 2 {
		t.Fatalf("unexpected concurrency cap: %d", cfg.Transcode.MaxConcurrent)
	}
}

func TestMaxFileSizeEnvironmentOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	tests := []struct {
		name  string
		value string
		want  int64
	}{
		{name: "plain bytes", value: "1048576", want: 1048576},
		{name: "trailing comment", value: "2097152 # two megabytes", want: 2097152},
		{name: "human size", value: "10MiB", want: 10 * 1024 * 1024},
		{name: "invalid falls back", value: "lots", want: 20 * 1024 * 1024},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("MAX_FILE_SIZE", tc.value)
			cfg, _, _, err := config.Load("")
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if cfg.Upload.MaxBytes != tc.want {
				t.Fatalf("MaxBytes = %d, want %d", cfg.Upload.MaxBytes, tc.want)
			}
		})
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{
			name:   "non positive timeout",
			mutate: func(c *config.Config) { c.Transcode.TimeoutSeconds = 0 },
			want:   "transcode.timeout_seconds",
		},
		{
			name:   "zero concurrency",
			mutate: func(c *config.Config) { c.Transcode.MaxConcurrent = 0 },
			want:   "transcode.max_concurrent",
		},
		{
			name: "strip everything",
			mutate: func(c *config.Config) {
				c.Transcode.StripVideo = true
				c.Transcode.StripAudio = true
			},
			want: "cannot both be true",
		},
		{
			name:   "bad mime",
			mutate: func(c *config.Config) { c.Upload.AcceptedType = "mp4" },
			want:   "upload.accepted_type",
		},
		{
			name:   "orphan age below timeout",
			mutate: func(c *config.Config) { c.Jobs.OrphanMaxAgeSeconds = 10 },
			want:   "jobs.orphan_max_age_seconds",
		},
		{
			name:   "unknown log format",
			mutate: func(c *config.Config) { c.Logging.Format = "xml" },
			want:   "logging.format",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Paths.ScratchDir = "/tmp/cadence-scratch"
			cfg.Paths.StateDir = "/tmp/cadence-state"
			cfg.Upload.MaxBytes = 1024
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestCreateSampleIsLoadable(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample failed: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Upload.FormField != "videoFile" {
		t.Fatalf("unexpected form field: %q", cfg.Upload.FormField)
	}
}
