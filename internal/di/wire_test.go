package di

import (
	"context"
	"testing"

	"github.com/aristath/montecarlo/internal/config"
	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir: t.TempDir(),
		Simulation: config.SimulationConfig{
			Workers: 2,
		},
		Retention: config.RetentionConfig{
			Days:     30,
			Schedule: "0 0 3 * * *",
		},
	}
}

func TestWire(t *testing.T) {
	container, jobs, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, container)
	require.NotNil(t, jobs)
	t.Cleanup(func() { container.Close() })

	assert.NotNil(t, container.RunsDB)
	assert.NotNil(t, container.EventBus)
	assert.NotNil(t, container.EventManager)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.RunRepo)
	assert.NotNil(t, container.SimulationService)
	assert.Equal(t, 2, container.BatchRunner.Workers())

	assert.NotNil(t, jobs.PruneRuns)
	assert.NotNil(t, jobs.WALCheckpoint)
	assert.Len(t, jobs.All(), 2)
	assert.Equal(t, 2, container.Scheduler.Entries())
}

func TestWire_RetentionDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention.Days = 0

	container, _, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	assert.Equal(t, 1, container.Scheduler.Entries())
}

func TestWire_InvalidSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.Retention.Schedule = "not a schedule"

	_, _, err := Wire(cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestWire_SimulationArchivesRun(t *testing.T) {
	container, _, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	seed := uint64(7)
	cfg := simulation.DefaultConfig()
	cfg.Trials = 20
	cfg.Seed = &seed

	run, err := container.SimulationService.Simulate(context.Background(), simulation.Request{
		Config:  cfg,
		Archive: true,
	})
	require.NoError(t, err)
	assert.True(t, run.Archived)

	count, err := container.RunRepo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	assert.Equal(t, 1.0, container.Metrics.Snapshot().SimulationsCompleted)
}
