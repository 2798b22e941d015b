// Package handlers provides HTTP handlers for archived simulation runs.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/aristath/montecarlo/internal/modules/runs"
	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	defaultBins      = 30
)

// RunStore is the part of the run repository the handlers use
type RunStore interface {
	List(ctx context.Context, limit, offset int) ([]runs.RunSummary, error)
	Count(ctx context.Context) (int, error)
	Get(ctx context.Context, id string, withTrajectories bool) (*runs.Run, error)
	Delete(ctx context.Context, id string) error
}

// Handler handles archived run HTTP requests
type Handler struct {
	store RunStore
	log   zerolog.Logger
}

// NewHandler creates a new runs handler
func NewHandler(store RunStore, log zerolog.Logger) *Handler {
	return &Handler{
		store: store,
		log:   log.With().Str("handler", "runs").Logger(),
	}
}

// HandleList handles GET /api/v1/runs
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	offset := max(queryInt(r, "offset", 0), 0)

	summaries, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list runs")
		h.writeError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to count runs")
		h.writeError(w, http.StatusInternalServerError, "Failed to count runs")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"runs":   summaries,
			"count":  len(summaries),
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGet handles GET /api/v1/runs/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	withTrajectories := r.URL.Query().Get("include_trajectories") == "true"

	run, ok := h.loadRun(w, r, id, withTrajectories)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": run,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetHistogram handles GET /api/v1/runs/{id}/histogram
func (h *Handler) HandleGetHistogram(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	bins := queryInt(r, "bins", defaultBins)
	if bins <= 0 {
		h.writeError(w, http.StatusBadRequest, "bins must be a positive integer")
		return
	}

	run, ok := h.loadRun(w, r, id, true)
	if !ok {
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"run_id":    run.ID,
			"histogram": simulation.BuildHistogram(run.Result().FinalBalances(), bins),
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleDelete handles DELETE /api/v1/runs/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, "Run not found")
			return
		}
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to delete run")
		h.writeError(w, http.StatusInternalServerError, "Failed to delete run")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) loadRun(w http.ResponseWriter, r *http.Request, id string, withTrajectories bool) (*runs.Run, bool) {
	run, err := h.store.Get(r.Context(), id, withTrajectories)
	if err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			h.writeError(w, http.StatusNotFound, "Run not found")
			return nil, false
		}
		h.log.Error().Err(err).Str("run_id", id).Msg("Failed to get run")
		h.writeError(w, http.StatusInternalServerError, "Failed to get run")
		return nil, false
	}
	return run, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
