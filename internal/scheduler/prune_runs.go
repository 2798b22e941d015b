package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/montecarlo/internal/events"
	"github.com/rs/zerolog"
)

// RunPruner deletes archived runs older than a cutoff
type RunPruner interface {
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventEmitter publishes job outcomes
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// PruneRunsJob enforces the run archive retention period
type PruneRunsJob struct {
	pruner        RunPruner
	emitter       EventEmitter
	retentionDays int
	timeout       time.Duration
	now           func() time.Time
	log           zerolog.Logger
}

// NewPruneRunsJob creates a new PruneRunsJob. emitter may be nil.
func NewPruneRunsJob(pruner RunPruner, emitter EventEmitter, retentionDays int, log zerolog.Logger) *PruneRunsJob {
	return &PruneRunsJob{
		pruner:        pruner,
		emitter:       emitter,
		retentionDays: retentionDays,
		timeout:       time.Minute,
		now:           time.Now,
		log:           log.With().Str("job", "prune_runs").Logger(),
	}
}

// Name returns the job name
func (j *PruneRunsJob) Name() string {
	return "prune_runs"
}

// Run deletes runs created more than retentionDays ago. A non-positive retention keeps everything.
func (j *PruneRunsJob) Run() error {
	if j.retentionDays <= 0 {
		j.log.Debug().Msg("Run retention disabled")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	cutoff := j.now().AddDate(0, 0, -j.retentionDays)
	deleted, err := j.pruner.PruneOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}

	j.log.Info().
		Int64("deleted", deleted).
		Int("retention_days", j.retentionDays).
		Msg("Run retention applied")

	if deleted > 0 && j.emitter != nil {
		j.emitter.EmitTyped(events.RunsPruned, "scheduler", &events.RunsPrunedData{
			Deleted:       deleted,
			RetentionDays: j.retentionDays,
		})
	}

	return nil
}
