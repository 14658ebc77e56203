// Package api serves the HTTP control surface of the bronze pipeline.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tfl-lake/internal/domain"
	"tfl-lake/internal/lakepath"
)

// RunService starts and reads bronze pipeline runs.
type RunService interface {
	Start(ctx context.Context, triggerType string) (*domain.PipelineRun, error)
	GetRun(ctx context.Context, id string) (*domain.PipelineRun, error)
	ListRuns(ctx context.Context, filter domain.PipelineRunFilter) ([]domain.PipelineRun, int64, error)
	Active() bool
}

// Handler implements the HTTP endpoints.
type Handler struct {
	paths  *lakepath.Builder
	jobs   []domain.IngestionJob
	runs   RunService
	local  bool
	logger *slog.Logger
}

// NewHandler creates a Handler. local reports whether storage is emulated on disk.
func NewHandler(paths *lakepath.Builder, jobs []domain.IngestionJob, runs RunService, local bool, logger *slog.Logger) *Handler {
	return &Handler{
		paths:  paths,
		jobs:   jobs,
		runs:   runs,
		local:  local,
		logger: logger.With("component", "api"),
	}
}

// Healthz reports liveness and whether a run is in progress.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"run_active": h.runs.Active(),
	})
}

// GetEnvironment returns the resolved environment and its derived locations.
func (h *Handler) GetEnvironment(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, environmentToAPI(h.paths, h.local))
}

// ListJobs returns the bronze jobs in run order.
func (h *Handler) ListJobs(w http.ResponseWriter, _ *http.Request) {
	out := make([]Job, 0, len(h.jobs))
	for _, j := range h.jobs {
		out = append(out, jobToAPI(h.paths, j))
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": out})
}

// ListRuns returns a page of runs, newest first. Query parameters:
// status, max_results, page_token.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.PipelineRunFilter{Page: domain.PageRequest{PageToken: q.Get("page_token")}}
	if v := q.Get("max_results"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, h.logger, domain.ErrValidation("max_results must be a non-negative integer"))
			return
		}
		filter.Page.MaxResults = n
	}
	if v := q.Get("status"); v != "" {
		filter.Status = &v
	}
	if err := filter.Page.Validate(); err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	pipeline := domain.PipelineBronze
	filter.Pipeline = &pipeline

	runs, total, err := h.runs.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	out := RunList{Runs: make([]Run, 0, len(runs)), Total: total}
	for _, run := range runs {
		out.Runs = append(out.Runs, runToAPI(run))
	}
	out.NextPageToken = domain.NextPageToken(filter.Page.Offset(), filter.Page.Limit(), total)
	writeJSON(w, http.StatusOK, out)
}

// GetRun returns one run with its job runs.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, runToAPI(*run))
}

// StartRun starts a bronze run in the background and returns 202 with the
// pending run. A run already in progress yields 409.
func (h *Handler) StartRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.runs.Start(r.Context(), domain.TriggerTypeAPI)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, runToAPI(*run))
}
