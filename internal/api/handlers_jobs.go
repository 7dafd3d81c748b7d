package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"cadence/internal/jobs"
	"cadence/internal/services"
)

const defaultHistoryLimit = 100

func (h *handler) handleListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var states []jobs.State
	for _, value := range query["state"] {
		for _, name := range strings.Split(value, ",") {
			if strings.TrimSpace(name) == "" {
				continue
			}
			state, ok := jobs.ParseState(name)
			if !ok {
				writeError(w, h.logger, http.StatusBadRequest, "unknown state "+strconv.Quote(name))
				return
			}
			states = append(states, state)
		}
	}

	if history, _ := strconv.ParseBool(query.Get("history")); history {
		if h.history == nil {
			writeError(w, h.logger, http.StatusNotFound, "job history is not enabled")
			return
		}
		limit := defaultHistoryLimit
		if value := query.Get("limit"); value != "" {
			parsed, err := strconv.Atoi(value)
			if err != nil || parsed < 0 {
				writeError(w, h.logger, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
			limit = parsed
		}
		records, err := h.history.List(r.Context(), limit, states...)
		if err != nil {
			writeError(w, h.logger, http.StatusInternalServerError, "job history unavailable")
			return
		}
		out := make([]Job, 0, len(records))
		for _, rec := range records {
			out = append(out, FromRecord(rec))
		}
		writeJSON(w, h.logger, http.StatusOK, JobListResponse{Jobs: out})
		return
	}

	wanted := make(map[jobs.State]struct{}, len(states))
	for _, state := range states {
		wanted[state] = struct{}{}
	}
	live := h.jobs.List()
	out := make([]Job, 0, len(live))
	for _, job := range live {
		if len(wanted) > 0 {
			if _, ok := wanted[job.State]; !ok {
				continue
			}
		}
		out = append(out, FromJob(job))
	}
	writeJSON(w, h.logger, http.StatusOK, JobListResponse{Jobs: out})
}

func (h *handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if job, ok := h.jobs.Get(id); ok {
		writeJSON(w, h.logger, http.StatusOK, FromJob(job))
		return
	}
	if h.history != nil {
		rec, err := h.history.Get(r.Context(), id)
		if err != nil {
			writeError(w, h.logger, http.StatusInternalServerError, "job history unavailable")
			return
		}
		if rec != nil {
			writeJSON(w, h.logger, http.StatusOK, FromRecord(*rec))
			return
		}
	}
	writeError(w, h.logger, http.StatusNotFound, "job not found")
}

func (h *handler) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	job, ok := h.jobs.Get(id)
	if !ok {
		writeError(w, h.logger, http.StatusNotFound, "job not found")
		return
	}
	if job.State.Terminal() {
		writeJobError(w, h.logger, http.StatusConflict, "job already finished", id)
		return
	}
	if err := h.jobs.Cancel(id); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeJobError(w, h.logger, http.StatusConflict, "job already finished", id)
			return
		}
		writeJobError(w, h.logger, http.StatusInternalServerError, services.PublicMessage(err), id)
		return
	}
	job, _ = h.jobs.Get(id)
	writeJSON(w, h.logger, http.StatusOK, FromJob(job))
}
