package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
	runs int32
	err  error
}

func (j *stubJob) Name() string        { return j.name }
func (j *stubJob) Description() string { return "stub job" }

func (j *stubJob) Run(context.Context) error {
	atomic.AddInt32(&j.runs, 1)
	return j.err
}

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(6 * time.Hour)
	now := time.Date(2026, 8, 10, 3, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(6*time.Hour), s.Next(now))
	assert.Equal(t, "@every 6h0m0s", s.String())
}

func TestDailySchedule_Next(t *testing.T) {
	s := NewDailySchedule(1, 30)

	before := time.Date(2026, 8, 10, 0, 15, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 10, 1, 30, 0, 0, time.UTC), s.Next(before),
		"before the slot: same day")

	after := time.Date(2026, 8, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 11, 1, 30, 0, 0, time.UTC), s.Next(after),
		"past the slot: next day")

	exact := time.Date(2026, 8, 10, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 8, 11, 1, 30, 0, 0, time.UTC), s.Next(exact),
		"the slot instant itself has already fired")

	assert.Equal(t, "@daily 01:30", s.String())
}

func TestScheduler_RegisterRejectsDuplicates(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	require.NoError(t, s.Register(&stubJob{name: "cleanup"}, NewIntervalSchedule(time.Hour)))

	err := s.Register(&stubJob{name: "cleanup"}, NewIntervalSchedule(time.Hour))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)
}

func TestScheduler_RegisterRejectsNilArguments(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Hour)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&stubJob{name: "x"}, nil), ErrNilSchedule)
}

func TestScheduler_RunNowExecutesImmediately(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	job := &stubJob{name: "verify"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(24*time.Hour)))

	result, err := s.RunNow(context.Background(), "verify")
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&job.runs))
}

func TestScheduler_RunNowPropagatesJobError(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	jobErr := errors.New("broken chain found")
	require.NoError(t, s.Register(&stubJob{name: "verify", err: jobErr}, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "verify")
	require.Error(t, err)
	assert.ErrorIs(t, err, jobErr)
	assert.False(t, result.Success)

	snapshot := s.GetMetrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalFailures)
}

func TestScheduler_RunNowUnknownJob(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	_, err := s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_StartStopLifecycle(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&stubJob{name: "noop"}, NewIntervalSchedule(time.Hour)))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestScheduler_DisabledJobIsListedButNotDue(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())
	require.NoError(t, s.Register(&stubJob{name: "optional"}, NewIntervalSchedule(time.Hour)))
	require.NoError(t, s.DisableJob("optional"))

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.False(t, jobs[0].Enabled)
	assert.Equal(t, "@every 1h0m0s", jobs[0].Schedule)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}
