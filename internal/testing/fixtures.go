package testing

import (
	"context"
	"testing"

	"github.com/aristath/montecarlo/internal/modules/simulation"
	"github.com/rs/zerolog"
)

// NewSeededConfig returns the reference scenario with a fixed seed and trial count
func NewSeededConfig(seed uint64, trials int) simulation.SimulationConfig {
	cfg := simulation.DefaultConfig()
	cfg.Seed = &seed
	cfg.Trials = trials
	return cfg
}

// NewSimulationResult runs the reference scenario in batch mode with the default thresholds
func NewSimulationResult(t *testing.T, seed uint64, trials int) *simulation.SimulationResult {
	t.Helper()

	result, err := simulation.NewBatchRunner(2, zerolog.Nop()).Run(
		context.Background(),
		NewSeededConfig(seed, trials),
		simulation.RunOptions{Thresholds: simulation.DefaultThresholds()},
	)
	if err != nil {
		t.Fatalf("Failed to run fixture simulation: %v", err)
	}
	return result
}
