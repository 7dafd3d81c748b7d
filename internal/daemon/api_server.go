package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"cadence/internal/api"
	"cadence/internal/config"
	"cadence/internal/jobs"
	"cadence/internal/logging"
)

// transferAllowance bounds the upload and the download leg of a request.
const transferAllowance = 5 * time.Minute

type apiServer struct {
	bind   string
	logger *slog.Logger

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("paths.api_bind is empty")
	}

	opts := api.Options{
		FormField:      cfg.Upload.FormField,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		WaitTimeout:    cfg.ConversionTimeout() + time.Minute,
		Status:         d.apiStatus,
		Logger:         logger,
	}
	if d.store != nil {
		opts.History = d.store
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
	}
	srv.server = &http.Server{
		Handler:           api.NewRouter(d.manager, opts),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       transferAllowance,
		WriteTimeout:      transferAllowance + opts.WaitTimeout + transferAllowance,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_server_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check paths.api_bind"),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listening"),
	)
	return nil
}

// stop drains in-flight requests briefly and closes the listener. Safe to
// call more than once.
func (s *apiServer) stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (d *Daemon) apiStatus(ctx context.Context) api.DaemonStatus {
	status := d.Status(ctx)
	payload := api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		Version:       status.Version,
		ListenAddress: status.ListenAddress,
		JobDBPath:     status.JobDBPath,
		LockFilePath:  status.LockFilePath,
		MaxConcurrent: status.MaxConcurrent,
		Jobs:          stateCounts(status.Jobs),
		History:       stateCounts(status.History),
		Scratch: api.ScratchUsage{
			Dir:   status.ScratchDir,
			Files: status.Scratch.Files,
			Bytes: status.Scratch.Bytes,
			Human: humanize.IBytes(uint64(max(status.Scratch.Bytes, 0))),
		},
		Dependencies: make([]api.DependencyStatus, 0, len(status.Dependencies)),
	}
	if !status.StartedAt.IsZero() {
		payload.StartedAt = status.StartedAt.UTC().Format(time.RFC3339)
	}
	for _, dep := range status.Dependencies {
		payload.Dependencies = append(payload.Dependencies, api.DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Version:     dep.Version,
			Detail:      dep.Detail,
		})
	}
	return payload
}

func stateCounts(counts map[jobs.State]int) map[string]int {
	if counts == nil {
		return nil
	}
	out := make(map[string]int, len(counts))
	for state, n := range counts {
		out[string(state)] = n
	}
	return out
}
