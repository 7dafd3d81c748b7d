package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// Version runs `<binary> -version` and returns the first line of its output,
// trimmed of the copyright trailer ffmpeg and ffprobe append.
func Version(ctx context.Context, binary string) (string, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return "", fmt.Errorf("binary not configured")
	}
	versionCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	out, err := commandContext(versionCtx, binary, "-version").Output()
	if err != nil {
		return "", fmt.Errorf("%s -version: %w", binary, err)
	}
	scanner := bufio.NewScanner(bytes.NewReader(out))
	if !scanner.Scan() {
		return "", fmt.Errorf("%s -version: empty output", binary)
	}
	line := strings.TrimSpace(scanner.Text())
	if idx := strings.Index(line, " Copyright"); idx > 0 {
		line = line[:idx]
	}
	return line, nil
}

// WithVersions fills Version for every available status. Failures leave the
// field empty; availability was already decided by CheckBinaries.
func WithVersions(ctx context.Context, statuses []Status) []Status {
	for i := range statuses {
		if !statuses[i].Available {
			continue
		}
		if version, err := Version(ctx, statuses[i].Command); err == nil {
			statuses[i].Version = version
		}
	}
	return statuses
}
