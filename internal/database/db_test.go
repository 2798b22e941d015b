package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{
		Path:    filepath.Join(t.TempDir(), "runs.db"),
		Profile: ProfileScratch,
		Name:    "runs",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func TestBuildConnectionString(t *testing.T) {
	standard := buildConnectionString("/tmp/runs.db", ProfileStandard)
	assert.Contains(t, standard, "/tmp/runs.db?_pragma=journal_mode(WAL)")
	assert.Contains(t, standard, "synchronous(NORMAL)")
	assert.Contains(t, standard, "auto_vacuum(INCREMENTAL)")

	scratch := buildConnectionString("file:test?mode=memory", ProfileScratch)
	assert.Contains(t, scratch, "file:test?mode=memory&_pragma=journal_mode(WAL)")
	assert.Contains(t, scratch, "synchronous(OFF)")
}

func TestNew_DefaultsToStandardProfile(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "nested", "a.db"), Name: "a"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, ProfileStandard, db.Profile())
	assert.Equal(t, "a", db.Name())
	assert.True(t, filepath.IsAbs(db.Path()))
}

func TestMigrate_CreatesRunsTable(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.Migrate(), "migrating twice must be safe")

	var name string
	err := db.Conn().QueryRow(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'simulation_runs'",
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "simulation_runs", name)
}

func TestMigrate_UnknownDatabase(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "other.db"), Name: "other"})
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Migrate())
}

func TestWithTransaction(t *testing.T) {
	db := newTestDB(t)
	_, err := db.Conn().Exec("CREATE TABLE items (v INTEGER)")
	require.NoError(t, err)

	count := func() int {
		var n int
		require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM items").Scan(&n))
		return n
	}

	err = WithTransaction(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO items (v) VALUES (1)")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count())

	boom := errors.New("boom")
	err = WithTransaction(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO items (v) VALUES (2)")
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, count())

	err = WithTransaction(context.Background(), db.Conn(), func(tx *sql.Tx) error {
		_, _ = tx.Exec("INSERT INTO items (v) VALUES (3)")
		panic("unexpected")
	})
	assert.ErrorContains(t, err, "panic in transaction")
	assert.Equal(t, 1, count())

	assert.Error(t, WithTransaction(context.Background(), nil, func(*sql.Tx) error { return nil }))
}

func TestMaintenance(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrate())

	assert.NoError(t, db.HealthCheck(context.Background()))
	assert.NoError(t, db.WALCheckpoint(""))
	assert.NoError(t, db.WALCheckpoint("PASSIVE"))
	assert.Error(t, db.WALCheckpoint("TRUNCATE); DROP TABLE simulation_runs; --"))
	assert.NoError(t, db.IncrementalVacuum(0))

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Positive(t, stats.PageCount)
	assert.Positive(t, stats.PageSize)
	assert.Positive(t, stats.SizeBytes)
}
