// Package api serves cadence's HTTP surface.
//
// NewRouter mounts the conversion routes on a gorilla/mux router:
//
//	POST   /api/convert          multipart upload, waits for the result unless ?async=true
//	GET    /api/download/{id}    one-shot download of a ready output
//	GET    /api/jobs             live jobs, or persisted history with ?history=true
//	GET    /api/jobs/{id}        one job
//	DELETE /api/jobs/{id}        cancel
//	GET    /api/health           liveness
//	GET    /api/status           daemon status supplied by the host
//	GET    /metrics              Prometheus exposition
//
// Uploads are streamed from the multipart reader straight into the job
// manager; nothing is buffered beyond the scratch file. Error bodies are
// always {"error": "..."} with a caller-safe message: scratch paths and
// engine output never leave the process.
//
// DTOs use camelCase JSON tags and RFC3339 timestamps with milliseconds.
package api
