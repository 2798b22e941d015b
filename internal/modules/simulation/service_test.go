package simulation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/montecarlo/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedEvent struct {
	eventType events.EventType
	data      events.EventData
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (f *fakeEmitter) EmitTyped(eventType events.EventType, _ string, data events.EventData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{eventType, data})
}

func (f *fakeEmitter) types() []events.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]events.EventType, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.eventType)
	}
	return out
}

func (f *fakeEmitter) last(eventType events.EventType) events.EventData {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.events) - 1; i >= 0; i-- {
		if f.events[i].eventType == eventType {
			return f.events[i].data
		}
	}
	return nil
}

type fakeMetrics struct {
	runs     int
	failures int
	stopped  bool
}

func (f *fakeMetrics) ObserveRun(_ int, stopped bool, _ time.Duration) {
	f.runs++
	f.stopped = stopped
}

func (f *fakeMetrics) ObserveFailure() {
	f.failures++
}

type fakeStore struct {
	saved map[string]*SimulationResult
	err   error
}

func (f *fakeStore) Save(_ context.Context, runID string, result *SimulationResult) error {
	if f.err != nil {
		return f.err
	}
	if f.saved == nil {
		f.saved = make(map[string]*SimulationResult)
	}
	f.saved[runID] = result
	return nil
}

func newTestService(store ResultStore) (*Service, *fakeEmitter, *fakeMetrics) {
	emitter := &fakeEmitter{}
	metrics := &fakeMetrics{}
	runner := NewBatchRunner(2, zerolog.Nop())
	return NewService(runner, emitter, metrics, store, zerolog.Nop()), emitter, metrics
}

func TestService_Simulate(t *testing.T) {
	store := &fakeStore{}
	service, emitter, metrics := newTestService(store)

	cfg := seeded(DefaultConfig(), 1)
	run, err := service.Simulate(context.Background(), Request{
		RunID:   "run-1",
		Config:  cfg,
		Options: RunOptions{Thresholds: DefaultThresholds()},
		Archive: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "run-1", run.ID)
	assert.True(t, run.Archived)
	assert.Equal(t, cfg.Trials, run.Result.Completed)
	assert.Same(t, run.Result, store.saved["run-1"])

	types := emitter.types()
	require.NotEmpty(t, types)
	assert.Equal(t, events.SimulationStarted, types[0])
	assert.Equal(t, events.SimulationCompleted, types[len(types)-1])
	assert.Contains(t, types, events.SimulationProgress)
	assert.Contains(t, types, events.RunStored)

	// The last trial always gets a progress event.
	progress, ok := emitter.last(events.SimulationProgress).(*events.SimulationProgressData)
	require.True(t, ok)
	assert.Equal(t, cfg.Trials, progress.Completed)

	completed, ok := emitter.last(events.SimulationCompleted).(*events.SimulationCompletedData)
	require.True(t, ok)
	assert.Equal(t, "run-1", completed.RunID)
	assert.InDelta(t, run.Result.Summary.Mean, completed.MeanFinal, 1e-9)

	assert.Equal(t, 1, metrics.runs)
	assert.Zero(t, metrics.failures)
}

func TestService_GeneratesRunID(t *testing.T) {
	service, _, _ := newTestService(nil)

	run, err := service.Simulate(context.Background(), Request{Config: seeded(DefaultConfig(), 2)})
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.False(t, run.Archived)
}

func TestService_InvalidConfig(t *testing.T) {
	service, emitter, metrics := newTestService(nil)

	cfg := DefaultConfig()
	cfg.Trials = 0

	run, err := service.Simulate(context.Background(), Request{Config: cfg})
	require.Error(t, err)
	assert.Nil(t, run)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
	assert.Empty(t, emitter.types())
	assert.Equal(t, 1, metrics.failures)
}

func TestService_ArchiveFailureKeepsResult(t *testing.T) {
	store := &fakeStore{err: errors.New("disk full")}
	service, emitter, _ := newTestService(store)

	run, err := service.Simulate(context.Background(), Request{
		Config:  seeded(DefaultConfig(), 3),
		Archive: true,
	})
	require.NoError(t, err)
	assert.False(t, run.Archived)
	assert.NotNil(t, run.Result)
	assert.Contains(t, emitter.types(), events.ErrorOccurred)
	assert.NotContains(t, emitter.types(), events.RunStored)
}

func TestService_BatchCallerGetsTrialsButNoProgress(t *testing.T) {
	service, emitter, _ := newTestService(nil)

	cfg := seeded(DefaultConfig(), 4)
	var trials []int
	progressCalled := false
	_, err := service.Simulate(context.Background(), Request{
		Config: cfg,
		Options: RunOptions{
			Mode:            ModeBatch,
			OnTrialComplete: func(i int, _ Trajectory) { trials = append(trials, i) },
			OnProgress:      func(Progress) { progressCalled = true },
		},
	})
	require.NoError(t, err)

	assert.Len(t, trials, cfg.Trials)
	assert.False(t, progressCalled)
	assert.Contains(t, emitter.types(), events.SimulationProgress)
}

func TestService_StreamingCallerObserversFire(t *testing.T) {
	service, _, _ := newTestService(nil)

	var progress []Progress
	var trials []int
	cfg := seeded(DefaultConfig(), 5)
	_, err := service.Simulate(context.Background(), Request{
		Config: cfg,
		Options: RunOptions{
			Mode:            ModeStreaming,
			OnTrialComplete: func(i int, _ Trajectory) { trials = append(trials, i) },
			OnProgress:      func(p Progress) { progress = append(progress, p) },
		},
	})
	require.NoError(t, err)

	assert.Len(t, trials, cfg.Trials)
	assert.Len(t, progress, cfg.Trials)
}

func TestService_StoppedRun(t *testing.T) {
	service, _, metrics := newTestService(nil)

	run, err := service.Simulate(context.Background(), Request{
		Config:  seeded(DefaultConfig(), 6),
		Options: RunOptions{ShouldStop: func() bool { return true }},
	})
	require.NoError(t, err)
	assert.True(t, run.Result.Stopped)
	assert.True(t, metrics.stopped)
}

func TestService_StoppedRunReportsFinalProgress(t *testing.T) {
	service, emitter, _ := newTestService(nil)

	cfg := seeded(DefaultConfig(), 7)
	cfg.Trials = 1000

	var stop atomic.Bool
	run, err := service.Simulate(context.Background(), Request{
		Config: cfg,
		Options: RunOptions{
			OnTrialComplete: func(index int, _ Trajectory) {
				if index == 9 {
					stop.Store(true)
				}
			},
			ShouldStop: stop.Load,
		},
	})
	require.NoError(t, err)
	require.True(t, run.Result.Stopped)
	require.Equal(t, 10, run.Result.Completed)

	progress, ok := emitter.last(events.SimulationProgress).(*events.SimulationProgressData)
	require.True(t, ok)
	assert.Equal(t, run.Result.Completed, progress.Completed)
	assert.Equal(t, cfg.Trials, progress.Total)

	types := emitter.types()
	assert.Equal(t, events.SimulationCompleted, types[len(types)-1])
}

func TestProgressReporter_Throttles(t *testing.T) {
	emitter := &fakeEmitter{}
	reporter := newProgressReporter(emitter, "r")

	reporter.report(Progress{Completed: 1, Total: 10})
	reporter.report(Progress{Completed: 2, Total: 10})
	reporter.report(Progress{Completed: 3, Total: 10})
	assert.Len(t, emitter.types(), 1)

	// Completion bypasses the throttle.
	reporter.report(Progress{Completed: 10, Total: 10})
	assert.Len(t, emitter.types(), 2)

	// Nothing is held back after a report that went out.
	reporter.flush()
	assert.Len(t, emitter.types(), 2)
}

func TestProgressReporter_FlushEmitsHeldBackSnapshot(t *testing.T) {
	emitter := &fakeEmitter{}
	reporter := newProgressReporter(emitter, "r")

	reporter.report(Progress{Completed: 1, Total: 10})
	reporter.report(Progress{Completed: 2, Total: 10})
	reporter.report(Progress{Completed: 3, Total: 10})
	require.Len(t, emitter.types(), 1)

	reporter.flush()
	require.Len(t, emitter.types(), 2)
	last, ok := emitter.last(events.SimulationProgress).(*events.SimulationProgressData)
	require.True(t, ok)
	assert.Equal(t, 3, last.Completed)

	reporter.flush()
	assert.Len(t, emitter.types(), 2)
}
