package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"cadence/internal/logging"
)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Debug("failed to encode response", logging.Error(err))
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, ErrorResponse{Error: message})
}

func writeJobError(w http.ResponseWriter, logger *slog.Logger, status int, message, jobID string) {
	writeJSON(w, logger, status, ErrorResponse{Error: message, JobID: jobID})
}
