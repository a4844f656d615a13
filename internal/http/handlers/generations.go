package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/domain"
	"github.com/HOW2AI-AGENCY/ai-tune-creator-sub002/internal/registry"
)

type generateRequest struct {
	Service         string   `json:"service"`
	Type            string   `json:"type"`
	Prompt          string   `json:"prompt"`
	Lyrics          string   `json:"lyrics"`
	Title           string   `json:"title"`
	Style           []string `json:"style"`
	Instrumental    bool     `json:"instrumental"`
	Model           string   `json:"model"`
	DurationSeconds int      `json:"duration_seconds"`
}

type jobResponse struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

func (r generateRequest) toInput() domain.GenerationInput {
	return domain.GenerationInput{
		Service:         domain.Service(r.Service),
		Type:            domain.InputType(r.Type),
		Prompt:          r.Prompt,
		Lyrics:          r.Lyrics,
		Title:           r.Title,
		Style:           r.Style,
		Instrumental:    r.Instrumental,
		Model:           r.Model,
		DurationSeconds: r.DurationSeconds,
	}
}

// GenerationsCreate accepts a generation request and starts tracking it.
// The submission is accepted even when the provider rejects it: the response
// then carries the failed job so the client can inspect or retry it.
func (a *App) GenerationsCreate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}
	if req.Type == "" {
		req.Type = string(domain.InputDescription)
	}
	idemKey := r.Header.Get("Idempotency-Key")

	jobID, err := a.Generator.Submit(r.Context(), req.toInput(), idemKey)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			a.error(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
			return
		}
		if errors.Is(err, domain.ErrNoCredentials) {
			a.error(w, http.StatusServiceUnavailable, "provider_unavailable", err.Error())
			return
		}
		// The job exists in a failed state; surface both the failure and
		// the id so the client can retry.
		a.json(w, http.StatusBadGateway, map[string]any{
			"error":   "provider_rejected",
			"message": err.Error(),
			"job_id":  jobID,
		})
		return
	}
	job, _ := a.Registry.Get(jobID)
	a.json(w, http.StatusAccepted, jobResponse{JobID: jobID, Status: string(job.Status), Progress: job.OverallProgress})
}

type jobView struct {
	domain.GenerationJob
	DisplayProgress int `json:"display_progress"`
}

func viewOf(job domain.GenerationJob, now time.Time) jobView {
	return jobView{GenerationJob: job, DisplayProgress: domain.DisplayProgress(job, now)}
}

// GenerationsList returns tracked jobs, optionally filtered by status.
func (a *App) GenerationsList(w http.ResponseWriter, r *http.Request) {
	filter := domain.Status(r.URL.Query().Get("status"))
	now := time.Now()
	var items []jobView
	for _, job := range a.Registry.List() {
		if filter != "" && job.Status != filter {
			continue
		}
		items = append(items, viewOf(job, now))
	}
	if items == nil {
		items = []jobView{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// GenerationsGet returns one job by id, falling back to the cache and the
// durable store for jobs no longer held in memory.
func (a *App) GenerationsGet(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.Generator.Lookup(r.Context(), jobID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.json(w, http.StatusOK, viewOf(job, time.Now()))
}

// GenerationsCancel stops an active job. Cancelling a finished job is a
// conflict, not an idempotent success: the client's view was stale.
func (a *App) GenerationsCancel(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	err := a.Generator.Cancel(jobID)
	switch {
	case err == nil:
		job, _ := a.Registry.Get(jobID)
		a.json(w, http.StatusOK, jobResponse{JobID: jobID, Status: string(job.Status), Progress: job.OverallProgress})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrJobTerminal):
		a.error(w, http.StatusConflict, "job_terminal", "job already finished")
	default:
		a.error(w, http.StatusInternalServerError, "internal", "cancel failed")
	}
}

// GenerationsRetry resubmits a terminal job's input as a new job.
func (a *App) GenerationsRetry(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	newID, err := a.Generator.Retry(r.Context(), jobID)
	switch {
	case err == nil:
		job, _ := a.Registry.Get(newID)
		a.json(w, http.StatusAccepted, jobResponse{JobID: newID, Status: string(job.Status), Progress: job.OverallProgress})
	case errors.Is(err, domain.ErrNotFound):
		a.error(w, http.StatusNotFound, "not_found", "job not found")
	case errors.Is(err, domain.ErrJobActive):
		a.error(w, http.StatusConflict, "job_active", "job is still running")
	case newID != "":
		a.json(w, http.StatusBadGateway, map[string]any{
			"error":   "provider_rejected",
			"message": err.Error(),
			"job_id":  newID,
		})
	default:
		a.error(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
	}
}

// GenerationsClear removes finished jobs. Completed and failed jobs always
// go; cancelled and timed-out ones only with the matching query flag.
func (a *App) GenerationsClear(w http.ResponseWriter, r *http.Request) {
	opts := registry.ClearOptions{
		Cancelled: r.URL.Query().Get("cancelled") == "true",
		Timeout:   r.URL.Query().Get("timeout") == "true",
	}
	removed := a.Generator.ClearTerminal(r.Context(), opts)
	a.json(w, http.StatusOK, map[string]int{"removed": removed})
}
