package scheduler

import (
	"fmt"

	"github.com/aristath/montecarlo/internal/database"
	"github.com/rs/zerolog"
)

// WALCheckpointJob truncates the WAL and returns space freed by pruning
type WALCheckpointJob struct {
	db  *database.DB
	log zerolog.Logger
}

// NewWALCheckpointJob creates a new WALCheckpointJob
func NewWALCheckpointJob(db *database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		db:  db,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name returns the job name
func (j *WALCheckpointJob) Name() string {
	return "wal_checkpoint"
}

// Run executes the checkpoint
func (j *WALCheckpointJob) Run() error {
	// PRAGMA wal_checkpoint returns: busy, log, checkpointed
	var busy, pages, checkpointed int
	err := j.db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &pages, &checkpointed)
	if err != nil {
		return fmt.Errorf("failed to check WAL for %s: %w", j.db.Name(), err)
	}

	if busy == 0 {
		if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
			return err
		}
	} else {
		j.log.Warn().
			Str("database", j.db.Name()).
			Int("wal_pages", pages).
			Int("checkpointed", checkpointed).
			Msg("Database busy, skipped WAL truncation")
	}

	if err := j.db.IncrementalVacuum(0); err != nil {
		return err
	}

	j.log.Debug().
		Str("database", j.db.Name()).
		Int("wal_pages", pages).
		Msg("WAL checkpoint complete")

	return nil
}
