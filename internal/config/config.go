package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ScratchDir string `toml:"scratch_dir"`
	StateDir   string `toml:"state_dir"`
	LogDir     string `toml:"log_dir"`
	APIBind    string `toml:"api_bind"`
}

// Upload contains admission rules for submitted media.
type Upload struct {
	AcceptedType string `toml:"accepted_type"`
	// MaxSize is a human readable size such as "20MiB" or a plain byte count.
	MaxSize   string `toml:"max_size"`
	FormField string `toml:"form_field"`

	// MaxBytes is derived from MaxSize during normalization.
	MaxBytes int64 `toml:"-"`
}

// Transcode contains the fixed conversion profile and engine supervision settings.
type Transcode struct {
	FFmpegBinary   string `toml:"ffmpeg_binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	Codec          string `toml:"codec"`
	Bitrate        string `toml:"bitrate"`
	Quality        int    `toml:"quality"`
	StripVideo     bool   `toml:"strip_video"`
	StripAudio     bool   `toml:"strip_audio"`
	Format         string `toml:"format"`
	Extension      string `toml:"extension"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxConcurrent  int    `toml:"max_concurrent"`
	ProbeInput     bool   `toml:"probe_input"`
}

// Jobs contains retention and sweeping intervals for job records and scratch files.
type Jobs struct {
	FailureRetentionSeconds int `toml:"failure_retention_seconds"`
	DeliveryGraceSeconds    int `toml:"delivery_grace_seconds"`
	SweepIntervalSeconds    int `toml:"sweep_interval_seconds"`
	OrphanMaxAgeSeconds     int `toml:"orphan_max_age_seconds"`
	HistoryRetentionDays    int `toml:"history_retention_days"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for cadence.
//
// Configuration sections by subsystem:
//   - Paths: scratch, state and log directories plus the API bind address
//   - Upload: accepted MIME type and size limit
//   - Transcode: engine binaries, output profile, timeout and concurrency cap
//   - Jobs: failure retention, orphan reaping and history pruning
//   - Logging: log format, level, and retention
type Config struct {
	Paths     Paths     `toml:"paths"`
	Upload    Upload    `toml:"upload"`
	Transcode Transcode `toml:"transcode"`
	Jobs      Jobs      `toml:"jobs"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/cadence/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("cadence.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the scratch, state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScratchDir, c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// ConversionTimeout returns the bound on a single engine run.
func (c *Config) ConversionTimeout() time.Duration {
	return time.Duration(c.Transcode.TimeoutSeconds) * time.Second
}

// FailureRetention returns how long failed job records stay queryable.
func (c *Config) FailureRetention() time.Duration {
	return time.Duration(c.Jobs.FailureRetentionSeconds) * time.Second
}

// DeliveryGrace returns how long delivered job records stay queryable.
func (c *Config) DeliveryGrace() time.Duration {
	return time.Duration(c.Jobs.DeliveryGraceSeconds) * time.Second
}

// SweepInterval returns the retention sweeper period.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Jobs.SweepIntervalSeconds) * time.Second
}

// OrphanMaxAge returns the age after which unowned scratch files are reaped.
func (c *Config) OrphanMaxAge() time.Duration {
	return time.Duration(c.Jobs.OrphanMaxAgeSeconds) * time.Second
}

// HistoryRetention returns how long terminal records are kept in the job store.
func (c *Config) HistoryRetention() time.Duration {
	return time.Duration(c.Jobs.HistoryRetentionDays) * 24 * time.Hour
}

// DatabasePath returns the job history database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "jobs.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "cadence.lock")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultScratchDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "cadence", "scratch")
	}
	return "~/.cache/cadence/scratch"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
