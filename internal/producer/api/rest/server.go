package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/nemanja-m/gomar/internal/producer/core"
	"github.com/nemanja-m/gomar/internal/producer/service"
	"github.com/nemanja-m/gomar/internal/shared/config"
	"github.com/nemanja-m/gomar/internal/shared/logging"
)

const defaultLimit = 10

// JobService exposes the in-flight jobs of a producer.
type JobService interface {
	GetJob(id uuid.UUID) (*core.Job, error)
	GetJobs(filter core.JobFilter) ([]*core.Job, int, error)
	Cancel(id uuid.UUID) error
}

type API struct {
	jobs   JobService
	logger logging.Logger
}

func NewAPI(jobs JobService, logger logging.Logger) *API {
	return &API{jobs: jobs, logger: logger}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", a.health)
	mux.HandleFunc("GET /api/jobs", a.listJobs)
	mux.HandleFunc("GET /api/jobs/{id}", a.getJob)
	mux.HandleFunc("POST /api/jobs/{id}/cancel", a.cancelJob)
}

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getJob handles GET /api/jobs/{id}
func (a *API) getJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	job, err := a.jobs.GetJob(jobID)
	if err != nil {
		a.logger.Error("Failed to get job", "job_id", jobID.String(), "error", err)
		respondError(w, http.StatusInternalServerError, "failed to get job", err.Error())
		return
	}
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found", "")
		return
	}

	respondJSON(w, http.StatusOK, ToGetJobResponse(job))
}

// listJobs handles GET /api/jobs with filters and pagination
func (a *API) listJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := core.JobFilter{Limit: defaultLimit}
	if status := query.Get("status"); status != "" {
		s := core.JobStatus(status)
		filter.Status = &s
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			filter.Limit = l
		}
	}
	if offsetStr := query.Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			filter.Offset = o
		}
	}

	jobs, total, err := a.jobs.GetJobs(filter)
	if err != nil {
		a.logger.Error("Failed to list jobs", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list jobs", err.Error())
		return
	}

	summaries := make([]JobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, ToJobSummary(job))
	}

	var nextOffset *int
	if end := filter.Offset + len(jobs); end < total {
		nextOffset = &end
	}

	respondJSON(w, http.StatusOK, ListJobsResponse{
		Jobs:       summaries,
		Total:      total,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
		NextOffset: nextOffset,
	})
}

// cancelJob handles POST /api/jobs/{id}/cancel
func (a *API) cancelJob(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseJobID(w, r)
	if !ok {
		return
	}

	if err := a.jobs.Cancel(jobID); err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			respondError(w, http.StatusNotFound, "job not found", "")
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to cancel job", err.Error())
		return
	}

	a.logger.Info("Job cancellation requested", "job_id", jobID.String())
	respondJSON(w, http.StatusAccepted, CancelJobResponse{JobID: jobID.String(), Status: "CANCELLING"})
}

func parseJobID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.PathValue("id")
	if raw == "" {
		respondError(w, http.StatusBadRequest, "job ID required", "")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid job ID", fmt.Sprintf("%q is not a UUID", raw))
		return uuid.Nil, false
	}
	return id, true
}

func respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, error string, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:   error,
		Message: message,
		Code:    statusCode,
	})
}

func NewServer(cfg config.APIConfig, jobs JobService, logger logging.Logger) *http.Server {
	api := NewAPI(jobs, logger)
	mux := http.NewServeMux()
	api.RegisterRoutes(mux)

	handler := ChainMiddleware(
		mux,
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
	)

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}
