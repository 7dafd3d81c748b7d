package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateJobs(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.ScratchDir == "" {
		return errors.New("paths.scratch_dir must be set")
	}
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.ScratchDir == c.Paths.StateDir || c.Paths.ScratchDir == c.Paths.LogDir {
		return errors.New("paths.scratch_dir must not be shared with state_dir or log_dir")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if !strings.Contains(c.Upload.AcceptedType, "/") {
		return fmt.Errorf("upload.accepted_type %q is not a MIME type", c.Upload.AcceptedType)
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_size must be positive")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.Codec == "" {
		return errors.New("transcode.codec must be set")
	}
	if c.Transcode.Format == "" {
		return errors.New("transcode.format must be set")
	}
	if c.Transcode.Bitrate == "" && (c.Transcode.Quality < 0 || c.Transcode.Quality > 9) {
		return errors.New("transcode.quality must be between 0 and 9 when transcode.bitrate is empty")
	}
	if c.Transcode.StripVideo && c.Transcode.StripAudio {
		return errors.New("transcode.strip_video and transcode.strip_audio cannot both be true")
	}
	if strings.ContainsAny(c.Transcode.Extension, `/\`) {
		return fmt.Errorf("transcode.extension %q must not contain path separators", c.Transcode.Extension)
	}
	return ensurePositiveMap(map[string]int{
		"transcode.timeout_seconds": c.Transcode.TimeoutSeconds,
		"transcode.max_concurrent":  c.Transcode.MaxConcurrent,
	})
}

func (c *Config) validateJobs() error {
	if err := ensurePositiveMap(map[string]int{
		"jobs.failure_retention_seconds": c.Jobs.FailureRetentionSeconds,
		"jobs.sweep_interval_seconds":    c.Jobs.SweepIntervalSeconds,
		"jobs.orphan_max_age_seconds":    c.Jobs.OrphanMaxAgeSeconds,
		"jobs.history_retention_days":    c.Jobs.HistoryRetentionDays,
	}); err != nil {
		return err
	}
	if c.Jobs.DeliveryGraceSeconds < 0 {
		return errors.New("jobs.delivery_grace_seconds must not be negative")
	}
	if c.Jobs.OrphanMaxAgeSeconds <= c.Transcode.TimeoutSeconds {
		return errors.New("jobs.orphan_max_age_seconds must be greater than transcode.timeout_seconds")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must not be negative")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
