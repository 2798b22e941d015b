package simulation

import (
	"context"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Mode selects how a batch exposes its trials.
type Mode int

const (
	// ModeBatch builds the result atomically. OnTrialComplete still fires per trial,
	// but no running aggregates are kept and OnProgress is not called.
	ModeBatch Mode = iota
	// ModeStreaming also maintains running aggregates and reports them to OnProgress
	// after every trial.
	ModeStreaming
)

// DefaultRecentPaths is how many trajectories a Progress snapshot carries by default.
const DefaultRecentPaths = 10

// TrialObserver receives each completed trial in trial-index order, in either mode.
// It runs on the runner's collecting goroutine, so a slow observer slows the batch
// down but cannot deadlock it.
type TrialObserver func(index int, trajectory Trajectory)

// ProgressObserver receives the running aggregates after each trial.
type ProgressObserver func(progress Progress)

// RunOptions controls a single batch.
type RunOptions struct {
	Mode            Mode
	Thresholds      []float64
	OnTrialComplete TrialObserver
	OnProgress      ProgressObserver
	ShouldStop      func() bool // checked between trials; true ends the batch early
	RecentPaths     int         // trajectories kept in Progress.Recent (0 = DefaultRecentPaths, <0 = none)
}

// BatchRunner executes independent trials across a fixed number of workers.
type BatchRunner struct {
	workers int
	log     zerolog.Logger
}

// NewBatchRunner creates a runner. Zero or negative workers uses one worker per CPU.
func NewBatchRunner(workers int, log zerolog.Logger) *BatchRunner {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &BatchRunner{
		workers: workers,
		log:     log.With().Str("component", "batch_runner").Logger(),
	}
}

// Workers returns the configured worker count.
func (r *BatchRunner) Workers() int {
	return r.workers
}

type trialResult struct {
	index      int
	trajectory Trajectory
}

// Run executes cfg.Trials trials and aggregates them.
//
// A configuration error is returned before any trial starts. Cancelling ctx or
// ShouldStop returning true ends the batch between trials; the result then covers
// the trials delivered so far (a contiguous prefix of trial indices) and has
// Stopped set. That is a valid result, not an error.
func (r *BatchRunner) Run(ctx context.Context, cfg SimulationConfig, opts RunOptions) (*SimulationResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	seed := resolveSeed(cfg)
	sim := &PathSimulator{cfg: cfg}
	thresholds := slices.Clone(opts.Thresholds)

	streaming := opts.Mode == ModeStreaming
	var tracker *progressTracker
	if streaming && opts.OnProgress != nil {
		recent := opts.RecentPaths
		if recent == 0 {
			recent = DefaultRecentPaths
		}
		tracker = newProgressTracker(cfg.Trials, cfg.Horizon, thresholds, max(recent, 0))
	}

	numWorkers := min(r.workers, cfg.Trials)

	r.log.Debug().
		Int("trials", cfg.Trials).
		Int("horizon", cfg.Horizon).
		Int("workers", numWorkers).
		Uint64("seed", seed).
		Bool("streaming", streaming).
		Msg("Starting batch")
	start := time.Now()

	jobs := make(chan int)
	results := make(chan trialResult, numWorkers)
	stop := make(chan struct{})
	var stopOnce sync.Once
	halt := func() { stopOnce.Do(func() { close(stop) }) }

	halted := r.shouldHalt(ctx, opts)
	if halted {
		halt()
	}

	// Dispatch trial indices until done or halted.
	go func() {
		defer close(jobs)
		for i := 0; i < cfg.Trials; i++ {
			// Prefer stopping over handing out more work when both are possible.
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			default:
			}
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case jobs <- i:
			}
		}
	}()

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results <- trialResult{
					index:      idx,
					trajectory: sim.Run(TrialSource(seed, idx)),
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// Trials finish out of order; deliver them strictly by index.
	trajectories := make([]Trajectory, cfg.Trials)
	ready := make([]bool, cfg.Trials)
	next := 0

	for res := range results {
		trajectories[res.index] = res.trajectory
		ready[res.index] = true

		for !halted && next < cfg.Trials && ready[next] {
			if opts.OnTrialComplete != nil {
				opts.OnTrialComplete(next, slices.Clone(trajectories[next]))
			}
			if tracker != nil {
				tracker.add(trajectories[next])
				opts.OnProgress(tracker.snapshot())
			}
			next++

			if next < cfg.Trials && r.shouldHalt(ctx, opts) {
				halted = true
				halt()
			}
		}
	}

	result := r.aggregate(cfg, seed, trajectories[:next], thresholds)
	result.Stopped = next < cfg.Trials

	r.log.Debug().
		Int("completed", result.Completed).
		Bool("stopped", result.Stopped).
		Dur("elapsed", time.Since(start)).
		Msg("Batch complete")

	return result, nil
}

func (r *BatchRunner) shouldHalt(ctx context.Context, opts RunOptions) bool {
	if ctx.Err() != nil {
		r.log.Debug().Err(ctx.Err()).Msg("Batch cancelled")
		return true
	}
	if opts.ShouldStop != nil && opts.ShouldStop() {
		r.log.Debug().Msg("Batch stop requested")
		return true
	}
	return false
}

func (r *BatchRunner) aggregate(
	cfg SimulationConfig,
	seed uint64,
	trajectories []Trajectory,
	thresholds []float64,
) *SimulationResult {
	finals := sortedCopy(FinalBalances(trajectories))

	return &SimulationResult{
		Config:       cfg,
		Seed:         seed,
		Trajectories: trajectories,
		Summary:      summarizeSorted(finals, cfg.TotalInitial(), cfg.Horizon),
		Thresholds:   exceedance(finals, thresholds),
		Percentiles:  percentilesSorted(finals),
		Completed:    len(trajectories),
	}
}
