package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"cadence/internal/api"
	"cadence/internal/jobs"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
)

const statusLabelWidth = 16

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			var status api.DaemonStatus
			if err := client.do(cmd.Context(), http.MethodGet, "/api/status", &status); err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, status)
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderStatus(status, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func renderStatus(status api.DaemonStatus, colorize bool) string {
	var b strings.Builder
	line := func(label string, kind statusKind, message string) {
		b.WriteString(renderStatusLine(label, kind, message, colorize))
		b.WriteByte('\n')
	}

	if status.Running {
		line("Daemon", statusOK, fmt.Sprintf("running (pid %d)", status.PID))
	} else {
		line("Daemon", statusError, "not running")
	}
	if status.Version != "" {
		line("Version", statusInfo, status.Version)
	}
	if status.StartedAt != "" {
		line("Started", statusInfo, status.StartedAt)
	}
	line("Listening", statusInfo, status.ListenAddress)
	line("Concurrency", statusInfo, fmt.Sprintf("%d conversion slot(s)", status.MaxConcurrent))
	line("Live jobs", statusInfo, formatCounts(status.Jobs))
	if status.History != nil {
		line("History", statusInfo, formatCounts(status.History))
	}
	scratchKind := statusInfo
	if status.Scratch.Files > 0 && status.Jobs[string(jobs.StateConverting)] == 0 && status.Jobs[string(jobs.StateReady)] == 0 {
		scratchKind = statusWarn
	}
	line("Scratch", scratchKind, fmt.Sprintf("%s in %d file(s) at %s",
		humanize.IBytes(uint64(max(status.Scratch.Bytes, 0))), status.Scratch.Files, status.Scratch.Dir))
	line("Job database", statusInfo, status.JobDBPath)

	for _, dep := range status.Dependencies {
		switch {
		case dep.Available:
			message := dep.Command
			if dep.Version != "" {
				message = fmt.Sprintf("%s (%s)", dep.Command, dep.Version)
			}
			line(dep.Name, statusOK, message)
		case dep.Optional:
			line(dep.Name, statusWarn, "optional, "+dep.Detail)
		default:
			line(dep.Name, statusError, dep.Detail)
		}
	}
	return b.String()
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if colorize {
		if color := statusKindColor(kind); color != "" {
			statusText = color + statusText + ansiReset
		}
	}
	if message != "" {
		statusText += " " + message
	}
	return fmt.Sprintf("%-*s %s", statusLabelWidth, label, statusText)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	default:
		return ""
	}
}

// formatCounts lists non-zero states in lifecycle order.
func formatCounts(counts map[string]int) string {
	var parts []string
	seen := make(map[string]bool, len(counts))
	for _, state := range jobs.AllStates() {
		name := string(state)
		seen[name] = true
		if n := counts[name]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", name, n))
		}
	}
	var extra []string
	for name, n := range counts {
		if !seen[name] && n > 0 {
			extra = append(extra, fmt.Sprintf("%s %d", name, n))
		}
	}
	sort.Strings(extra)
	parts = append(parts, extra...)
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
