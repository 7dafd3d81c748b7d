package daemonrun

import (
	"context"
	"log/slog"

	"cadence/internal/config"
	"cadence/internal/jobs"
	"cadence/internal/jobstore"
	"cadence/internal/metrics"
	"cadence/internal/scratch"
	"cadence/internal/transcode"
	"cadence/internal/upload"
)

// NewManager wires a job manager from configuration: scratch storage, the
// upload validator, the ffmpeg executor, the optional ffprobe check and the
// observers. store may be nil, in which case no history is kept.
func NewManager(cfg *config.Config, logger *slog.Logger, store *jobstore.Store) (*jobs.Manager, *scratch.Manager, error) {
	storage, err := scratch.New(cfg.Paths.ScratchDir)
	if err != nil {
		return nil, nil, err
	}

	profile := transcode.ProfileFromConfig(cfg.Transcode)
	executor := transcode.NewExecutor(cfg.Transcode.FFmpegBinary, transcode.WithLogger(logger))
	settings := jobs.Settings{
		Profile:          profile,
		Timeout:          cfg.ConversionTimeout(),
		MaxConcurrent:    cfg.Transcode.MaxConcurrent,
		FailureRetention: cfg.FailureRetention(),
		DeliveryGrace:    cfg.DeliveryGrace(),
		OrphanMaxAge:     cfg.OrphanMaxAge(),
		HistoryRetention: cfg.HistoryRetention(),
	}

	// The counts callback only runs after a submission, by which point
	// manager is assigned.
	var manager *jobs.Manager
	opts := []jobs.Option{
		jobs.WithLogger(logger),
		jobs.WithObserver(metrics.NewJobObserver(func() map[jobs.State]int { return manager.Counts() })),
	}
	if store != nil {
		opts = append(opts,
			jobs.WithObserver(jobstore.NewRecorder(store, logger)),
			jobs.WithHistory(store),
		)
	}
	if cfg.Transcode.ProbeInput {
		probeBinary := cfg.Transcode.FFprobeBinary
		opts = append(opts, jobs.WithProber(func(ctx context.Context, inputPath string) error {
			_, err := transcode.CheckInput(ctx, probeBinary, inputPath, profile)
			return err
		}))
	}

	manager, err = jobs.NewManager(storage, upload.New(cfg.Upload.AcceptedType, cfg.Upload.MaxBytes), jobs.ExecutorEngine{Executor: executor}, settings, opts...)
	if err != nil {
		return nil, nil, err
	}
	return manager, storage, nil
}
