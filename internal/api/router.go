package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"cadence/internal/jobs"
	"cadence/internal/jobstore"
	"cadence/internal/logging"
)

// History is the slice of the job store the routes read.
type History interface {
	Get(ctx context.Context, id string) (*jobstore.Record, error)
	List(ctx context.Context, limit int, states ...jobs.State) ([]jobstore.Record, error)
}

// Options configures the router.
type Options struct {
	// FormField names the multipart field that carries the upload.
	FormField string
	// MaxUploadBytes is the per-file limit; it also bounds the request body.
	MaxUploadBytes int64
	// WaitTimeout bounds how long a synchronous convert request waits for
	// the result. Zero waits until the client disconnects.
	WaitTimeout time.Duration
	History     History
	Status      func(ctx context.Context) DaemonStatus
	Logger      *slog.Logger
}

type handler struct {
	jobs    *jobs.Manager
	opts    Options
	logger  *slog.Logger
	history History
}

// NewRouter wires every route against manager.
func NewRouter(manager *jobs.Manager, opts Options) http.Handler {
	if opts.FormField == "" {
		opts.FormField = "videoFile"
	}
	h := &handler{
		jobs:    manager,
		opts:    opts,
		logger:  logging.NewComponentLogger(opts.Logger, "api"),
		history: opts.History,
	}

	r := mux.NewRouter()
	r.Use(requestID, cors, recordMetrics, h.logRequests)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/status", h.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/convert", h.handleConvert).Methods(http.MethodPost)
	api.HandleFunc("/download/{id}", h.handleDownload).Methods(http.MethodGet)
	api.HandleFunc("/jobs", h.handleListJobs).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", h.handleGetJob).Methods(http.MethodGet)
	api.HandleFunc("/jobs/{id}", h.handleCancelJob).Methods(http.MethodDelete)
	api.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, h.logger, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	if h.opts.Status != nil {
		writeJSON(w, h.logger, http.StatusOK, h.opts.Status(r.Context()))
		return
	}
	counts := make(map[string]int)
	for state, n := range h.jobs.Counts() {
		counts[string(state)] = n
	}
	writeJSON(w, h.logger, http.StatusOK, DaemonStatus{
		Running:       true,
		MaxConcurrent: h.jobs.Settings().MaxConcurrent,
		Jobs:          counts,
	})
}
