package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 300},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Job metrics
var (
	JobsSubmittedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_jobs_submitted_total",
			Help: "Total number of conversion submissions",
		},
	)

	JobTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_job_transitions_total",
			Help: "Total number of job state transitions",
		},
		[]string{"from", "to"},
	)

	JobsInState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cadence_jobs_in_state",
			Help: "Number of tracked jobs per state",
		},
		[]string{"state"},
	)

	JobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_job_failures_total",
			Help: "Total number of failed jobs by failure kind",
		},
		[]string{"kind"},
	)

	ConversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cadence_conversion_duration_seconds",
			Help:    "Time from engine start to ready or failed",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"result"},
	)

	UploadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cadence_upload_bytes",
			Help:    "Size of accepted uploads in bytes",
			Buckets: prometheus.ExponentialBuckets(64<<10, 2, 12),
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cadence_deliveries_total",
			Help: "Total number of download attempts by outcome",
		},
		[]string{"result"}, // "completed", "aborted", "not_found"
	)
)

// Scratch metrics
var (
	ScratchFiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_scratch_files",
			Help: "Number of files in the scratch directory",
		},
	)

	ScratchBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cadence_scratch_bytes",
			Help: "Total size of files in the scratch directory",
		},
	)

	ScratchReapedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_scratch_reaped_total",
			Help: "Total number of orphaned scratch files removed",
		},
	)

	SweepsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cadence_sweeps_total",
			Help: "Total number of retention sweeps",
		},
	)
)

// Application info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "cadence_app_info",
		Help: "Build information",
	},
	[]string{"version", "go_version"},
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, goVersion string) {
	AppInfo.WithLabelValues(version, goVersion).Set(1)
}

// SetScratchUsage publishes the scratch directory footprint.
func SetScratchUsage(files int, bytes int64) {
	ScratchFiles.Set(float64(files))
	ScratchBytes.Set(float64(bytes))
}
