package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aristath/montecarlo/internal/events"
	testingpkg "github.com/aristath/montecarlo/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	mu   sync.Mutex
	runs int
	err  error
}

func (j *countingJob) Run() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.runs++
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.runs
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zerolog.Nop())

	require.NoError(t, s.AddJob("0 0 3 * * *", &countingJob{}))
	require.NoError(t, s.AddJob("@every 1h", &countingJob{}))
	assert.Error(t, s.AddJob("not a schedule", &countingJob{}))
	assert.Equal(t, 2, s.Entries())
}

func TestScheduler_RunsJobs(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{err: errors.New("failing jobs keep their schedule")}

	require.NoError(t, s.AddJob("@every 1s", job))
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return job.count() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zerolog.Nop())
	job := &countingJob{}

	require.NoError(t, s.RunNow(job))
	assert.Equal(t, 1, job.count())
}

type fakePruner struct {
	cutoff  time.Time
	deleted int64
	err     error
	calls   int
}

func (f *fakePruner) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.cutoff = cutoff
	return f.deleted, f.err
}

type fakeEmitter struct {
	types []events.EventType
}

func (f *fakeEmitter) EmitTyped(eventType events.EventType, _ string, _ events.EventData) {
	f.types = append(f.types, eventType)
}

func TestPruneRunsJob(t *testing.T) {
	pruner := &fakePruner{deleted: 3}
	emitter := &fakeEmitter{}
	job := NewPruneRunsJob(pruner, emitter, 30, zerolog.Nop())
	now := time.Date(2026, 5, 31, 3, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run())

	assert.Equal(t, "prune_runs", job.Name())
	assert.Equal(t, time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC), pruner.cutoff)
	assert.Equal(t, []events.EventType{events.RunsPruned}, emitter.types)
}

func TestPruneRunsJob_NothingDeleted(t *testing.T) {
	emitter := &fakeEmitter{}
	job := NewPruneRunsJob(&fakePruner{}, emitter, 30, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Empty(t, emitter.types)
}

func TestPruneRunsJob_RetentionDisabled(t *testing.T) {
	pruner := &fakePruner{}
	job := NewPruneRunsJob(pruner, nil, 0, zerolog.Nop())

	require.NoError(t, job.Run())
	assert.Zero(t, pruner.calls)
}

func TestPruneRunsJob_Error(t *testing.T) {
	job := NewPruneRunsJob(&fakePruner{err: errors.New("locked")}, nil, 7, zerolog.Nop())
	assert.ErrorContains(t, job.Run(), "locked")
}

func TestWALCheckpointJob(t *testing.T) {
	db, cleanup := testingpkg.NewTestDB(t, "runs")
	defer cleanup()

	job := NewWALCheckpointJob(db, zerolog.Nop())
	assert.Equal(t, "wal_checkpoint", job.Name())
	assert.NoError(t, job.Run())
}
