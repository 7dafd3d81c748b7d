package config

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeUpload(); err != nil {
		return err
	}
	c.normalizeTranscode()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv("CADENCE_SCRATCH_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.ScratchDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.ScratchDir) == "" {
		c.Paths.ScratchDir = defaultScratchDir()
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}

	var err error
	if c.Paths.ScratchDir, err = expandPath(c.Paths.ScratchDir); err != nil {
		return fmt.Errorf("paths.scratch_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	if value, ok := os.LookupEnv("CADENCE_API_BIND"); ok && strings.TrimSpace(value) != "" {
		c.Paths.APIBind = value
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeUpload() error {
	c.Upload.AcceptedType = strings.ToLower(strings.TrimSpace(c.Upload.AcceptedType))
	if c.Upload.AcceptedType == "" {
		c.Upload.AcceptedType = defaultAcceptedType
	}
	c.Upload.FormField = strings.TrimSpace(c.Upload.FormField)
	if c.Upload.FormField == "" {
		c.Upload.FormField = defaultFormField
	}

	// An unparseable environment override is ignored so a stray value cannot
	// take the service down; the file or default limit applies instead.
	if value, ok := os.LookupEnv("MAX_FILE_SIZE"); ok {
		cleaned := strings.TrimSpace(strings.SplitN(value, "#", 2)[0])
		if _, err := parseSize(cleaned); err == nil {
			c.Upload.MaxSize = cleaned
		}
	}

	c.Upload.MaxSize = strings.TrimSpace(c.Upload.MaxSize)
	if c.Upload.MaxSize == "" {
		c.Upload.MaxSize = defaultMaxSize
	}
	size, err := parseSize(c.Upload.MaxSize)
	if err != nil {
		return fmt.Errorf("upload.max_size: %w", err)
	}
	c.Upload.MaxBytes = size
	return nil
}

func (c *Config) normalizeTranscode() {
	if value, ok := os.LookupEnv("CADENCE_FFMPEG"); ok && strings.TrimSpace(value) != "" {
		c.Transcode.FFmpegBinary = value
	}
	c.Transcode.FFmpegBinary = strings.TrimSpace(c.Transcode.FFmpegBinary)
	if c.Transcode.FFmpegBinary == "" {
		c.Transcode.FFmpegBinary = defaultFFmpegBinary
	}
	c.Transcode.FFprobeBinary = strings.TrimSpace(c.Transcode.FFprobeBinary)
	if c.Transcode.FFprobeBinary == "" {
		c.Transcode.FFprobeBinary = defaultFFprobeBinary
	}
	c.Transcode.Codec = strings.TrimSpace(c.Transcode.Codec)
	c.Transcode.Bitrate = strings.TrimSpace(c.Transcode.Bitrate)
	c.Transcode.Format = strings.ToLower(strings.TrimSpace(c.Transcode.Format))
	c.Transcode.Extension = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.Transcode.Extension), "."))
	if c.Transcode.Extension == "" {
		c.Transcode.Extension = defaultExtension
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func parseSize(value string) (int64, error) {
	parsed, err := humanize.ParseBytes(value)
	if err != nil {
		return 0, err
	}
	if parsed > math.MaxInt64 {
		return 0, fmt.Errorf("size %q out of range", value)
	}
	return int64(parsed), nil
}
