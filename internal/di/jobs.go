package di

import (
	"fmt"

	"github.com/aristath/montecarlo/internal/config"
	"github.com/aristath/montecarlo/internal/scheduler"
	"github.com/rs/zerolog"
)

// walCheckpointSchedule runs the checkpoint hourly, on the half hour.
const walCheckpointSchedule = "0 30 * * * *"

// RegisterJobs creates the background jobs and schedules them
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil {
		return nil, fmt.Errorf("container cannot be nil")
	}

	instances := &JobInstances{
		PruneRuns: scheduler.NewPruneRunsJob(
			container.RunRepo,
			container.EventManager,
			cfg.Retention.Days,
			log,
		),
		WALCheckpoint: scheduler.NewWALCheckpointJob(container.RunsDB, log),
	}

	if cfg.Retention.Days > 0 {
		if err := container.Scheduler.AddJob(cfg.Retention.Schedule, instances.PruneRuns); err != nil {
			return nil, fmt.Errorf("failed to register prune job: %w", err)
		}
	} else {
		log.Info().Msg("Run retention disabled, archived runs are kept forever")
	}

	if err := container.Scheduler.AddJob(walCheckpointSchedule, instances.WALCheckpoint); err != nil {
		return nil, fmt.Errorf("failed to register WAL checkpoint job: %w", err)
	}

	log.Info().Int("jobs", container.Scheduler.Entries()).Msg("Background jobs registered")

	return instances, nil
}
