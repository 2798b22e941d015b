// Package di wires the application's dependencies.
package di

import (
	"github.com/aristath/montecarlo/internal/database"
	"github.com/aristath/montecarlo/internal/events"
	"github.com/aristath/montecarlo/internal/modules/runs"
	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/aristath/montecarlo/internal/scheduler"
	"github.com/aristath/montecarlo/internal/server"
)

// Container holds every long-lived dependency. It is the single source of truth
// for service instances; cmd/server builds it once and hands pieces to the server.
type Container struct {
	// Databases
	RunsDB *database.DB

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Observability
	Metrics *server.Metrics

	// Repositories
	RunRepo *runs.Repository

	// Services
	BatchRunner       *simulation.BatchRunner
	SimulationService *simulation.Service

	// Scheduling
	Scheduler *scheduler.Scheduler
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	PruneRuns     *scheduler.PruneRunsJob
	WALCheckpoint *scheduler.WALCheckpointJob
}

// All returns the jobs as a slice for registration with the server
func (j *JobInstances) All() []scheduler.Job {
	return []scheduler.Job{j.PruneRuns, j.WALCheckpoint}
}

// Close releases the container's resources
func (c *Container) Close() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.RunsDB != nil {
		return c.RunsDB.Close()
	}
	return nil
}
