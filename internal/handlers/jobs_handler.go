package handlers

import (
	"errors"
	"net/http"

	"github.com/RevoLand/amazon-client/internal/services/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/ternarybob/arbor"
)

// JobRunner runs maintenance jobs on demand
type JobRunner interface {
	TriggerJob(name string) error
	GetJobStatus(name string) (*scheduler.JobStatus, error)
}

// JobsHandler handles HTTP requests for maintenance jobs
type JobsHandler struct {
	jobs   JobRunner
	logger arbor.ILogger
}

// NewJobsHandler creates a new JobsHandler
func NewJobsHandler(jobs JobRunner, logger arbor.ILogger) *JobsHandler {
	return &JobsHandler{
		jobs:   jobs,
		logger: logger,
	}
}

// TriggerJobHandler handles POST /jobs/{name}/trigger. The job runs to completion before the reply.
func (h *JobsHandler) TriggerJobHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.jobs.TriggerJob(name); err != nil {
		if errors.Is(err, scheduler.ErrJobNotFound) {
			WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("job", name).Msg("Failed to trigger job")
		WriteError(w, http.StatusInternalServerError, "failed to trigger job")
		return
	}

	status, err := h.jobs.GetJobStatus(name)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.logger.Info().Str("job", name).Str("last_error", status.LastError).Msg("Job triggered over HTTP")
	WriteJSON(w, http.StatusOK, status)
}
