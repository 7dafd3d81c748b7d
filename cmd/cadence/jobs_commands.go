package main

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"cadence/internal/api"
	"cadence/internal/jobs"
	"cadence/internal/jobstore"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage conversion jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsPruneCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var stateFlags []string
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			states, err := parseStates(stateFlags)
			if err != nil {
				return err
			}
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			records, err := store.List(cmd.Context(), limit, states...)
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			if jsonOutput {
				return writeJSON(cmd, records)
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs recorded")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderJobTable(records, time.Now()))
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&stateFlags, "state", "s", nil, "Filter by state (repeatable or comma separated)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of jobs to show (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one recorded job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			id := strings.TrimSpace(args[0])
			rec, err := store.Get(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("load job: %w", err)
			}
			if rec == nil {
				return fmt.Errorf("job %s not found", id)
			}
			if jsonOutput {
				return writeJSON(cmd, rec)
			}
			fmt.Fprint(cmd.OutOrStdout(), renderJobDetail(*rec))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON")
	return cmd
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a running job on the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.apiClient()
			if err != nil {
				return err
			}
			id := strings.TrimSpace(args[0])
			var job api.Job
			if err := client.do(cmd.Context(), http.MethodDelete, "/api/jobs/"+url.PathEscape(id), &job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Job %s is now %s\n", job.ID, job.State)
			return nil
		},
	}
}

func newJobsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished job records from history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			age := olderThan
			if age <= 0 {
				age = cfg.HistoryRetention()
			}
			if age <= 0 {
				return fmt.Errorf("history retention is disabled; pass --older-than")
			}
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			removed, err := store.PruneBefore(cmd.Context(), time.Now().Add(-age))
			if err != nil {
				return fmt.Errorf("prune history: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d job record(s) older than %s\n", removed, age)
			return nil
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age threshold (defaults to jobs.history_retention_days)")
	return cmd
}

func openStore(ctx *commandContext) (*jobstore.Store, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := jobstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job history: %w", err)
	}
	return store, nil
}

func parseStates(values []string) ([]jobs.State, error) {
	var states []jobs.State
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			state, ok := jobs.ParseState(part)
			if !ok {
				return nil, fmt.Errorf("unknown state %q", part)
			}
			states = append(states, state)
		}
	}
	return states, nil
}

var stateTitle = cases.Title(language.English)

func renderJobTable(records []jobstore.Record, now time.Time) string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.ID,
			stateTitle.String(string(rec.State)),
			displayName(rec.OriginalName),
			humanize.IBytes(uint64(max(rec.SizeBytes, 0))),
			humanize.RelTime(rec.UpdatedAt, now, "ago", "from now"),
			jobOutcome(rec),
		})
	}
	return renderTable(
		[]string{"ID", "State", "File", "Size", "Updated", "Outcome"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	)
}

func renderJobDetail(rec jobstore.Record) string {
	var b strings.Builder
	line := func(label, value string) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%-12s %s\n", label+":", value)
	}
	line("ID", rec.ID)
	line("State", stateTitle.String(string(rec.State)))
	line("File", displayName(rec.OriginalName))
	line("Upload", humanize.IBytes(uint64(max(rec.SizeBytes, 0))))
	if rec.OutputBytes > 0 {
		line("Output", humanize.IBytes(uint64(rec.OutputBytes)))
	}
	line("Created", formatStamp(rec.CreatedAt))
	line("Started", formatStamp(rec.StartedAt))
	line("Finished", formatStamp(rec.FinishedAt))
	if !rec.StartedAt.IsZero() && !rec.FinishedAt.IsZero() {
		line("Converted", rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String())
	}
	line("Failure", string(rec.FailureKind))
	line("Error", rec.ErrorDetail)
	line("Revision", fmt.Sprintf("%d", rec.Revision))
	return b.String()
}

func jobOutcome(rec jobstore.Record) string {
	switch rec.State {
	case jobs.StateFailed:
		if rec.ErrorDetail == "" {
			return string(rec.FailureKind)
		}
		return fmt.Sprintf("%s: %s", rec.FailureKind, rec.ErrorDetail)
	case jobs.StateReady, jobs.StateDelivered:
		if rec.OutputBytes > 0 {
			return humanize.IBytes(uint64(rec.OutputBytes)) + " output"
		}
	}
	return ""
}

func displayName(name string) string {
	if strings.TrimSpace(name) == "" {
		return "-"
	}
	return name
}

func formatStamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
