// Package runs archives finished simulation runs so they can be listed, reloaded and pruned.
package runs

import (
	"errors"
	"time"

	"github.com/aristath/montecarlo/internal/modules/simulation"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunSummary is the list view of an archived run.
type RunSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Seed      uint64    `json:"seed"`
	Trials    int       `json:"trials"`
	Horizon   int       `json:"horizon"`
	Completed int       `json:"completed"`
	Stopped   bool      `json:"stopped"`
	MeanFinal float64   `json:"mean_final"`
}

// Run is a fully reloaded archived run. Trajectories are only populated on request.
type Run struct {
	RunSummary
	Config       simulation.SimulationConfig  `json:"config"`
	Summary      simulation.SummaryStatistics `json:"summary"`
	Thresholds   simulation.ThresholdTable    `json:"thresholds"`
	Percentiles  simulation.Percentiles       `json:"percentiles"`
	Trajectories []simulation.Trajectory      `json:"trajectories,omitempty"`
}

// Result rebuilds the simulation result the run was archived from.
func (r *Run) Result() *simulation.SimulationResult {
	return &simulation.SimulationResult{
		Config:       r.Config,
		Seed:         r.Seed,
		Trajectories: r.Trajectories,
		Summary:      r.Summary,
		Thresholds:   r.Thresholds,
		Percentiles:  r.Percentiles,
		Completed:    r.Completed,
		Stopped:      r.Stopped,
	}
}
