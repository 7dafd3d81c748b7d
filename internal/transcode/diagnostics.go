package transcode

import (
	"strings"
	"sync"
)

const stderrTailBytes = 8 << 10

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

const genericFailure = "conversion failed"

var diagnosticPatterns = []struct {
	needles []string
	summary string
}{
	{needles: []string{"invalid data found when processing input", "moov atom not found", "could not find codec parameters"}, summary: "input file is not a readable video"},
	{needles: []string{"does not contain any stream", "matches no streams", "output file is empty"}, summary: "input file has no audio track"},
	{needles: []string{"unknown encoder", "encoder not found", "unknown format"}, summary: "audio encoder unavailable on this server"},
	{needles: []string{"no space left on device", "disk quota exceeded"}, summary: "server ran out of disk space"},
	{needles: []string{"permission denied"}, summary: "server could not access the file"},
}

// Summarize maps ffmpeg diagnostics to a stable message that is safe to show
// untrusted callers. Unrecognized output maps to a generic failure.
func Summarize(stderr string) string {
	lower := strings.ToLower(stderr)
	for _, pattern := range diagnosticPatterns {
		for _, needle := range pattern.needles {
			if strings.Contains(lower, needle) {
				return pattern.summary
			}
		}
	}
	return genericFailure
}

// lastLine returns the final non-empty line of stderr for internal logs.
func lastLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
