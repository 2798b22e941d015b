package simulation

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/montecarlo/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// EventEmitter publishes simulation lifecycle events.
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

// MetricsRecorder receives one observation per finished or failed run.
type MetricsRecorder interface {
	ObserveRun(completed int, stopped bool, elapsed time.Duration)
	ObserveFailure()
}

// ResultStore archives finished runs.
type ResultStore interface {
	Save(ctx context.Context, runID string, result *SimulationResult) error
}

// Request is one simulation submitted to the service.
type Request struct {
	RunID   string // empty generates a new id
	Config  SimulationConfig
	Options RunOptions
	Archive bool // store the result when a ResultStore is configured
}

// Run is a finished simulation together with its identifier.
type Run struct {
	ID       string            `json:"id"`
	Result   *SimulationResult `json:"result"`
	Duration time.Duration     `json:"duration_ns"`
	Archived bool              `json:"archived"`
}

// Service runs batches and reports on them to the rest of the application.
type Service struct {
	runner  *BatchRunner
	emitter EventEmitter
	metrics MetricsRecorder
	store   ResultStore
	log     zerolog.Logger
}

// NewService creates a simulation service. emitter, metrics and store may be nil.
func NewService(runner *BatchRunner, emitter EventEmitter, metrics MetricsRecorder, store ResultStore, log zerolog.Logger) *Service {
	return &Service{
		runner:  runner,
		emitter: emitter,
		metrics: metrics,
		store:   store,
		log:     log.With().Str("service", "simulation").Logger(),
	}
}

// Simulate executes req and returns the finished run.
//
// Progress events are emitted at most every 100ms, plus once for the last completed
// trial, including when the batch stops early.
// A failed archive is logged and reported but does not discard the result.
func (s *Service) Simulate(ctx context.Context, req Request) (*Run, error) {
	runID := req.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	log := s.log.With().Str("run_id", runID).Logger()

	if err := req.Config.Validate(); err != nil {
		log.Warn().Err(err).Msg("Rejected simulation configuration")
		s.observeFailure()
		return nil, err
	}

	opts := req.Options
	var reporter *progressReporter
	if s.emitter != nil {
		reporter = newProgressReporter(s.emitter, runID)
		opts = withProgressEvents(reporter, opts)
	}

	s.emit(events.SimulationStarted, &events.SimulationStartedData{
		RunID:   runID,
		Trials:  req.Config.Trials,
		Horizon: req.Config.Horizon,
	})

	log.Info().
		Int("trials", req.Config.Trials).
		Int("horizon", req.Config.Horizon).
		Msg("Starting simulation")

	start := time.Now()
	result, err := s.runner.Run(ctx, req.Config, opts)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Msg("Simulation failed")
		s.observeFailure()
		s.emit(events.SimulationFailed, &events.SimulationFailedData{RunID: runID, Error: err.Error()})
		return nil, err
	}

	if reporter != nil {
		reporter.flush()
	}

	if s.metrics != nil {
		s.metrics.ObserveRun(result.Completed, result.Stopped, elapsed)
	}

	run := &Run{ID: runID, Result: result, Duration: elapsed}

	if req.Archive && s.store != nil {
		// The caller's context may already be cancelled when the batch was stopped through it.
		if err := s.store.Save(context.WithoutCancel(ctx), runID, result); err != nil {
			log.Error().Err(err).Msg("Failed to archive simulation run")
			s.emit(events.ErrorOccurred, &events.ErrorEventData{
				Error:   err.Error(),
				Context: map[string]interface{}{"run_id": runID},
			})
		} else {
			run.Archived = true
			s.emit(events.RunStored, &events.RunStoredData{RunID: runID})
		}
	}

	s.emit(events.SimulationCompleted, &events.SimulationCompletedData{
		RunID:      runID,
		Completed:  result.Completed,
		Stopped:    result.Stopped,
		MeanFinal:  result.Summary.Mean,
		DurationMs: elapsed.Milliseconds(),
	})

	log.Info().
		Int("completed", result.Completed).
		Bool("stopped", result.Stopped).
		Float64("mean_final", result.Summary.Mean).
		Dur("elapsed", elapsed).
		Msg("Simulation complete")

	return run, nil
}

// withProgressEvents forces streaming so the service can report progress. The caller's
// OnProgress still only fires if the caller asked for streaming.
func withProgressEvents(reporter *progressReporter, opts RunOptions) RunOptions {
	callerProgress := opts.OnProgress
	if opts.Mode != ModeStreaming {
		callerProgress = nil
		// Band and path tracking are only needed by the caller.
		opts.RecentPaths = -1
	}

	opts.Mode = ModeStreaming
	opts.OnProgress = func(p Progress) {
		reporter.report(p)
		if callerProgress != nil {
			callerProgress(p)
		}
	}
	return opts
}

func (s *Service) emit(eventType events.EventType, data events.EventData) {
	if s.emitter == nil {
		return
	}
	s.emitter.EmitTyped(eventType, "simulation", data)
}

func (s *Service) observeFailure() {
	if s.metrics != nil {
		s.metrics.ObserveFailure()
	}
}

// progressReporter throttles SimulationProgress events.
type progressReporter struct {
	mu          sync.Mutex
	emitter     EventEmitter
	runID       string
	lastReport  time.Time
	minInterval time.Duration
	pending     *events.SimulationProgressData // latest snapshot held back by the throttle
}

func newProgressReporter(emitter EventEmitter, runID string) *progressReporter {
	return &progressReporter{
		emitter:     emitter,
		runID:       runID,
		minInterval: 100 * time.Millisecond,
	}
}

// report emits p unless another report went out less than minInterval ago.
// The final trial always bypasses the throttle.
func (pr *progressReporter) report(p Progress) {
	data := &events.SimulationProgressData{
		RunID:     pr.runID,
		Completed: p.Completed,
		Total:     p.Total,
		MeanFinal: p.Final.Mean,
		StdFinal:  p.Final.StdDev,
	}

	pr.mu.Lock()
	now := time.Now()
	if now.Sub(pr.lastReport) < pr.minInterval && p.Completed != p.Total {
		pr.pending = data
		pr.mu.Unlock()
		return
	}
	pr.lastReport = now
	pr.pending = nil
	pr.mu.Unlock()

	pr.emitter.EmitTyped(events.SimulationProgress, "simulation", data)
}

// flush emits the snapshot the throttle held back, if any, so the last progress
// event matches the trials actually completed when a batch stops early.
func (pr *progressReporter) flush() {
	pr.mu.Lock()
	data := pr.pending
	pr.pending = nil
	pr.mu.Unlock()

	if data != nil {
		pr.emitter.EmitTyped(events.SimulationProgress, "simulation", data)
	}
}
