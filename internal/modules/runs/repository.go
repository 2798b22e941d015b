package runs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aristath/montecarlo/internal/database"
	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// runSummaryColumns must match scanSummary
const runSummaryColumns = `id, created_at, seed, trials, horizon, completed, stopped, mean_final`

// Repository stores simulation runs in the runs database.
type Repository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewRepository creates a new run repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "runs").Logger(),
	}
}

// Save archives a finished run. Trajectories are stored msgpack-encoded.
func (r *Repository) Save(ctx context.Context, runID string, result *simulation.SimulationResult) error {
	configJSON, err := json.Marshal(result.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	summaryJSON, err := json.Marshal(result.Summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	thresholdsJSON, err := json.Marshal(result.Thresholds)
	if err != nil {
		return fmt.Errorf("failed to encode thresholds: %w", err)
	}
	percentilesJSON, err := json.Marshal(result.Percentiles)
	if err != nil {
		return fmt.Errorf("failed to encode percentiles: %w", err)
	}
	trajectories, err := msgpack.Marshal(result.Trajectories)
	if err != nil {
		return fmt.Errorf("failed to encode trajectories: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO simulation_runs (
			id, created_at, seed, trials, horizon, completed, stopped, mean_final,
			config_json, summary_json, thresholds_json, percentiles_json, trajectories
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		r.now().Unix(),
		strconv.FormatUint(result.Seed, 10),
		result.Config.Trials,
		result.Config.Horizon,
		result.Completed,
		result.Stopped,
		result.Summary.Mean,
		string(configJSON),
		string(summaryJSON),
		string(thresholdsJSON),
		string(percentilesJSON),
		trajectories,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", runID, err)
	}

	r.log.Debug().
		Str("run_id", runID).
		Int("completed", result.Completed).
		Int("trajectory_bytes", len(trajectories)).
		Msg("Archived simulation run")

	return nil
}

// List returns runs newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]RunSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+runSummaryColumns+" FROM simulation_runs ORDER BY created_at DESC, id LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	summaries := make([]RunSummary, 0, limit)
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	return summaries, nil
}

// Count returns the number of archived runs.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM simulation_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}

// Get reloads one run. Decoding the trajectories is skipped unless asked for.
func (r *Repository) Get(ctx context.Context, id string, withTrajectories bool) (*Run, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+runSummaryColumns+`,
		config_json, summary_json, thresholds_json, percentiles_json, trajectories
		FROM simulation_runs WHERE id = ?`, id)

	var (
		run             Run
		seed            string
		createdAt       int64
		configJSON      string
		summaryJSON     string
		thresholdsJSON  string
		percentilesJSON string
		trajectories    []byte
	)
	err := row.Scan(
		&run.ID, &createdAt, &seed, &run.Trials, &run.Horizon, &run.Completed, &run.Stopped, &run.MeanFinal,
		&configJSON, &summaryJSON, &thresholdsJSON, &percentilesJSON, &trajectories,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	run.CreatedAt = time.Unix(createdAt, 0).UTC()
	if run.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
		return nil, fmt.Errorf("failed to parse seed of run %s: %w", id, err)
	}

	decode := []struct {
		name string
		data string
		dst  interface{}
	}{
		{"config", configJSON, &run.Config},
		{"summary", summaryJSON, &run.Summary},
		{"thresholds", thresholdsJSON, &run.Thresholds},
		{"percentiles", percentilesJSON, &run.Percentiles},
	}
	for _, d := range decode {
		if err := json.Unmarshal([]byte(d.data), d.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s of run %s: %w", d.name, id, err)
		}
	}

	if withTrajectories && len(trajectories) > 0 {
		if err := msgpack.Unmarshal(trajectories, &run.Trajectories); err != nil {
			return nil, fmt.Errorf("failed to decode trajectories of run %s: %w", id, err)
		}
	}

	return &run, nil
}

// Delete removes one run.
func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM simulation_runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", id, err)
	}
	if n == 0 {
		return ErrRunNotFound
	}
	return nil
}

// PruneOlderThan deletes every run created before cutoff and returns how many went.
func (r *Repository) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := database.WithTransaction(ctx, r.db, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, "DELETE FROM simulation_runs WHERE created_at < ?", cutoff.Unix())
		if err != nil {
			return err
		}
		deleted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	if deleted > 0 {
		r.log.Info().
			Int64("deleted", deleted).
			Time("cutoff", cutoff).
			Msg("Pruned archived runs")
	}

	return deleted, nil
}

func scanSummary(rows *sql.Rows) (RunSummary, error) {
	var (
		s         RunSummary
		seed      string
		createdAt int64
	)
	if err := rows.Scan(&s.ID, &createdAt, &seed, &s.Trials, &s.Horizon, &s.Completed, &s.Stopped, &s.MeanFinal); err != nil {
		return RunSummary{}, fmt.Errorf("failed to scan run: %w", err)
	}

	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	seedValue, err := strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return RunSummary{}, fmt.Errorf("failed to parse seed of run %s: %w", s.ID, err)
	}
	s.Seed = seedValue

	return s, nil
}
