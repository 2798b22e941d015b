// Package handlers provides HTTP handlers for running portfolio simulations.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/rs/zerolog"
)

// DefaultHistogramBins is used when a request does not ask for a bin count.
const DefaultHistogramBins = 30

// Limits bounds what a single request may ask for.
type Limits struct {
	MaxTrials  int `json:"max_trials"`
	MaxHorizon int `json:"max_horizon"`
}

// Handler handles simulation HTTP requests
type Handler struct {
	service *simulation.Service
	limits  Limits
	log     zerolog.Logger
}

// NewHandler creates a new simulation handler
func NewHandler(service *simulation.Service, limits Limits, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		limits:  limits,
		log:     log.With().Str("handler", "simulation").Logger(),
	}
}

// SimulateRequest is the body of POST /api/v1/simulations and the first message of a live session.
// Config fields left out of the body keep their DefaultConfig values; a distribution
// that is present replaces the default for its asset class entirely.
type SimulateRequest struct {
	simulation.SimulationConfig
	Thresholds          []float64 `json:"thresholds,omitempty"`
	HistogramBins       int       `json:"histogram_bins,omitempty"`
	IncludeTrajectories bool      `json:"include_trajectories,omitempty"`
	Archive             bool      `json:"archive,omitempty"`
}

// SimulateResponse is the outcome of one run.
type SimulateResponse struct {
	RunID        string                       `json:"run_id"`
	Seed         uint64                       `json:"seed"`
	Completed    int                          `json:"completed"`
	Stopped      bool                         `json:"stopped"`
	Archived     bool                         `json:"archived"`
	DurationMs   int64                        `json:"duration_ms"`
	Summary      simulation.SummaryStatistics `json:"summary"`
	Thresholds   simulation.ThresholdTable    `json:"thresholds"`
	Percentiles  simulation.Percentiles       `json:"percentiles"`
	Histogram    simulation.Histogram         `json:"histogram"`
	Trajectories []simulation.Trajectory      `json:"trajectories,omitempty"`
}

func defaultRequest() SimulateRequest {
	return SimulateRequest{SimulationConfig: simulation.DefaultConfig()}
}

// normalize fills request-level defaults and applies the server limits.
func (h *Handler) normalize(req *SimulateRequest) error {
	if req.Thresholds == nil {
		req.Thresholds = simulation.DefaultThresholds()
	}
	if req.HistogramBins <= 0 {
		req.HistogramBins = DefaultHistogramBins
	}

	var errs simulation.ConfigurationErrors
	if h.limits.MaxTrials > 0 && req.Trials > h.limits.MaxTrials {
		errs = append(errs, simulation.ConfigurationError{
			Field:  "trials",
			Reason: fmt.Sprintf("must not exceed %d, got %d", h.limits.MaxTrials, req.Trials),
		})
	}
	if h.limits.MaxHorizon > 0 && req.Horizon > h.limits.MaxHorizon {
		errs = append(errs, simulation.ConfigurationError{
			Field:  "horizon",
			Reason: fmt.Sprintf("must not exceed %d, got %d", h.limits.MaxHorizon, req.Horizon),
		})
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func buildResponse(run *simulation.Run, req SimulateRequest) SimulateResponse {
	result := run.Result
	resp := SimulateResponse{
		RunID:       run.ID,
		Seed:        result.Seed,
		Completed:   result.Completed,
		Stopped:     result.Stopped,
		Archived:    run.Archived,
		DurationMs:  run.Duration.Milliseconds(),
		Summary:     result.Summary,
		Thresholds:  result.Thresholds,
		Percentiles: result.Percentiles,
		Histogram:   simulation.BuildHistogram(result.FinalBalances(), req.HistogramBins),
	}
	if req.IncludeTrajectories {
		resp.Trajectories = result.Trajectories
	}
	return resp
}

// HandleSimulate handles POST /api/v1/simulations
func (h *Handler) HandleSimulate(w http.ResponseWriter, r *http.Request) {
	req := defaultRequest()
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.normalize(&req); err != nil {
		h.writeConfigError(w, err)
		return
	}

	run, err := h.service.Simulate(r.Context(), simulation.Request{
		Config: req.SimulationConfig,
		Options: simulation.RunOptions{
			Mode:       simulation.ModeBatch,
			Thresholds: req.Thresholds,
		},
		Archive: req.Archive,
	})
	if err != nil {
		if errors.Is(err, simulation.ErrInvalidConfiguration) {
			h.writeConfigError(w, err)
			return
		}
		h.log.Error().Err(err).Msg("Failed to run simulation")
		h.writeError(w, http.StatusInternalServerError, "Failed to run simulation")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": buildResponse(run, req),
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetDefaults handles GET /api/v1/simulations/defaults
func (h *Handler) HandleGetDefaults(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"config":         simulation.DefaultConfig(),
			"thresholds":     simulation.DefaultThresholds(),
			"histogram_bins": DefaultHistogramBins,
			"limits":         h.limits,
		},
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	})
}

func (h *Handler) writeConfigError(w http.ResponseWriter, err error) {
	var cfgErrs simulation.ConfigurationErrors
	if !errors.As(err, &cfgErrs) {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"error":  "Invalid simulation configuration",
		"fields": cfgErrs,
	})
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
