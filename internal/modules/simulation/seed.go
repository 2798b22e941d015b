package simulation

import (
	"math/rand/v2"
)

// TrialSource returns the random stream for one trial. The stream depends only on the
// batch seed and the trial index, so trials can run in any order or on any worker and
// still produce the same trajectories.
func TrialSource(batchSeed uint64, trial int) rand.Source {
	return rand.NewPCG(batchSeed, splitmix64(uint64(trial)))
}

// resolveSeed returns the configured seed, or a fresh one when none was set.
func resolveSeed(cfg SimulationConfig) uint64 {
	if cfg.Seed != nil {
		return *cfg.Seed
	}
	//nolint:gosec // G404: simulation seeds do not need crypto-grade randomness
	return rand.Uint64()
}

// splitmix64 scatters consecutive trial indices across the PCG stream space.
func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
