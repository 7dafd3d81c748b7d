package transcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"

	"cadence/internal/services"
)

// ProbeResult is the subset of ffprobe output cadence inspects.
type ProbeResult struct {
	Streams []ProbeStream `json:"streams"`
	Format  ProbeFormat   `json:"format"`
}

// ProbeStream describes one stream in the container.
type ProbeStream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
}

// ProbeFormat captures container-level metadata.
type ProbeFormat struct {
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// Probe executes ffprobe against path and decodes the JSON response.
func Probe(ctx context.Context, binary, path string) (ProbeResult, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return ProbeResult{}, errors.New("ffprobe: empty path")
	}

	cmd := commandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		var stderr string
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			stderr = string(exitErr.Stderr)
		}
		return ProbeResult{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr))
	}

	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return ProbeResult{}, fmt.Errorf("ffprobe parse: %w", err)
	}
	return result, nil
}

// AudioStreamCount returns the number of audio streams discovered.
func (r ProbeResult) AudioStreamCount() int {
	return r.countType("audio")
}

// VideoStreamCount returns the number of video streams discovered.
func (r ProbeResult) VideoStreamCount() int {
	return r.countType("video")
}

func (r ProbeResult) countType(kind string) int {
	count := 0
	for _, stream := range r.Streams {
		if strings.EqualFold(stream.CodecType, kind) {
			count++
		}
	}
	return count
}

// DurationSeconds returns the container duration in seconds, or 0 when unavailable.
func (r ProbeResult) DurationSeconds() float64 {
	value, err := strconv.ParseFloat(strings.TrimSpace(r.Format.Duration), 64)
	if err != nil || math.IsNaN(value) || value < 0 {
		return 0
	}
	return value
}

// CheckInput probes path and rejects inputs the profile cannot convert.
// Rejections carry ErrValidation and a public message.
func CheckInput(ctx context.Context, binary, path string, profile Profile) (ProbeResult, error) {
	result, err := Probe(ctx, binary, path)
	if err != nil {
		if ctx.Err() != nil {
			return ProbeResult{}, services.Wrap(services.ErrCanceled, "transcode", "probe", "", ctx.Err())
		}
		return ProbeResult{}, services.Public("input file is not a readable video",
			services.Wrap(services.ErrValidation, "transcode", "probe", "ffprobe rejected input", err))
	}
	if len(result.Streams) == 0 {
		return result, services.Public("input file is not a readable video",
			services.Wrap(services.ErrValidation, "transcode", "probe", "no streams", nil))
	}
	if !profile.StripAudio && result.AudioStreamCount() == 0 {
		return result, services.Public("input file has no audio track",
			services.Wrap(services.ErrValidation, "transcode", "probe", "no audio stream", nil))
	}
	return result, nil
}
