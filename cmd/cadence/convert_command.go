package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cadence/internal/config"
	"cadence/internal/daemonrun"
	"cadence/internal/fileutil"
	"cadence/internal/jobs"
	"cadence/internal/logging"
	"cadence/internal/services"
	"cadence/internal/transcode"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var outputPath string
	var declaredType string
	var overwrite bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a local file without a running daemon",
		Long: "Run one conversion in-process with the configured limits and profile.\n" +
			"The upload checks, scratch handling and engine supervision are the same as the service.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			level := "warn"
			if verbose {
				level = "debug"
			}
			logger, err := logging.New(logging.Options{
				Level:            level,
				Format:           cfg.Logging.Format,
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return runConvert(cmd, cfg, logger, convertRequest{
				input:        args[0],
				output:       outputPath,
				declaredType: declaredType,
				overwrite:    overwrite,
			})
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to the input name with the profile extension)")
	cmd.Flags().StringVar(&declaredType, "type", "", "Declared media type (defaults to a guess from the file extension)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace the destination if it exists")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log job transitions to stderr")
	return cmd
}

type convertRequest struct {
	input        string
	output       string
	declaredType string
	overwrite    bool
}

func runConvert(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, req convertRequest) error {
	input, err := filepath.Abs(strings.TrimSpace(req.input))
	if err != nil {
		return fmt.Errorf("resolve input: %w", err)
	}
	file, err := os.Open(input)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", input)
	}

	profile := transcode.ProfileFromConfig(cfg.Transcode)
	destination := strings.TrimSpace(req.output)
	if destination == "" {
		destination = filepath.Join(filepath.Dir(input), profile.DownloadName(info.Name()))
	}
	if destination == input {
		return fmt.Errorf("destination %s would overwrite the input", destination)
	}
	if !req.overwrite {
		if _, err := os.Stat(destination); err == nil {
			return fmt.Errorf("%s already exists (use --overwrite to replace it)", destination)
		}
	}

	declared := strings.TrimSpace(req.declaredType)
	if declared == "" {
		declared = guessType(info.Name())
	}

	manager, _, err := daemonrun.NewManager(cfg, logger, nil)
	if err != nil {
		return fmt.Errorf("create job manager: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = manager.Shutdown(shutdownCtx)
	}()

	runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	id, err := manager.Submit(runCtx, jobs.Submission{
		Body:         file,
		DeclaredType: declared,
		DeclaredSize: info.Size(),
		OriginalName: info.Name(),
	})
	if err != nil {
		var rejected *jobs.RejectedError
		if errors.As(err, &rejected) {
			return fmt.Errorf("%s: %s", info.Name(), services.PublicMessage(rejected.Err))
		}
		return fmt.Errorf("submit: %w", err)
	}

	waitCtx, cancel := context.WithTimeout(runCtx, manager.Settings().Timeout+time.Minute)
	defer cancel()
	job, err := manager.Wait(waitCtx, id)
	if err != nil {
		return fmt.Errorf("wait for conversion: %w", err)
	}
	if job.State != jobs.StateReady {
		return fmt.Errorf("conversion failed (%s): %s", job.FailureKind, job.ErrorDetail)
	}

	artifact, err := manager.Retrieve(id)
	if err != nil {
		return fmt.Errorf("retrieve output: %w", err)
	}
	defer artifact.Close()

	saved, err := fileutil.SaveVerified(destination, artifact, artifact.Size, req.overwrite)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Converted %s -> %s (%s in %s)\n",
		info.Name(),
		destination,
		humanize.IBytes(uint64(saved.Bytes)),
		time.Since(started).Round(time.Millisecond),
	)
	fmt.Fprintf(out, "sha256 %s\n", saved.SHA256)
	return nil
}

// mediaTypes covers extensions the system mime tables often lack.
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".mp3":  "audio/mpeg",
	".m4a":  "audio/mp4",
}

func guessType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if value, ok := mediaTypes[ext]; ok {
		return value
	}
	if value := mime.TypeByExtension(ext); value != "" {
		return value
	}
	return "application/octet-stream"
}
