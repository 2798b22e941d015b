package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"slices"
	"time"

	"github.com/aristath/montecarlo/internal/database"
	"github.com/aristath/montecarlo/internal/scheduler"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// JobRunner executes a job outside its schedule.
type JobRunner interface {
	RunNow(job scheduler.Job) error
}

// SystemHandlers serves status and maintenance endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	runsDB    *database.DB
	metrics   *Metrics
	runner    JobRunner
	jobs      map[string]scheduler.Job
	workers   int
	startedAt time.Time
	hostStats func() (float64, float64)
}

// SystemStatusResponse is returned by GET /api/system/status.
type SystemStatusResponse struct {
	Status        string           `json:"status"`
	UptimeSeconds float64          `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	Goroutines    int              `json:"goroutines"`
	Workers       int              `json:"workers"`
	Database      *database.Stats  `json:"database,omitempty"`
	Simulations   *MetricsSnapshot `json:"simulations,omitempty"`
	Jobs          []string         `json:"jobs"`
}

// NewSystemHandlers creates system handlers. runsDB, metrics and runner may be nil.
func NewSystemHandlers(
	log zerolog.Logger,
	runsDB *database.DB,
	metrics *Metrics,
	runner JobRunner,
	workers int,
	jobs ...scheduler.Job,
) *SystemHandlers {
	h := &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		runsDB:    runsDB,
		metrics:   metrics,
		runner:    runner,
		jobs:      make(map[string]scheduler.Job, len(jobs)),
		workers:   workers,
		startedAt: time.Now(),
	}
	h.hostStats = h.getSystemStats
	for _, job := range jobs {
		h.jobs[job.Name()] = job
	}
	return h
}

// HandleSystemStatus returns process, host and database status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	cpuPercent, memPercent := h.hostStats()

	response := SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: time.Since(h.startedAt).Seconds(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		Goroutines:    runtime.NumGoroutine(),
		Workers:       h.workers,
		Jobs:          make([]string, 0, len(h.jobs)),
	}

	for name := range h.jobs {
		response.Jobs = append(response.Jobs, name)
	}
	slices.Sort(response.Jobs)

	if h.runsDB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.runsDB.HealthCheck(ctx); err != nil {
			h.log.Warn().Err(err).Msg("Runs database health check failed")
			response.Status = "degraded"
		}
		stats, err := h.runsDB.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to get database stats")
		} else {
			response.Database = stats
		}
	}

	if h.metrics != nil {
		snapshot := h.metrics.Snapshot()
		response.Simulations = &snapshot
	}

	h.writeJSON(w, http.StatusOK, response)
}

// HandleTriggerJob runs a registered maintenance job immediately
// POST /api/system/jobs/{name}
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	job, ok := h.jobs[name]
	if !ok || h.runner == nil {
		h.writeJSON(w, http.StatusNotFound, map[string]string{
			"status":  "error",
			"message": "Job not registered",
		})
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job triggered")

	if err := h.runner.RunNow(job); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job failed")
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Job completed",
	})
}

// getSystemStats returns average CPU percentage and RAM usage percentage
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	// 100ms sample keeps the endpoint responsive
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
