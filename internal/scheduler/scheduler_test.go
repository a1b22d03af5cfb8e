package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/i474232898/quake-monitor/internal/quake"
)

type countingRunner struct {
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
	err     error
	panics  bool
}

func (r *countingRunner) Run(ctx context.Context) (quake.RunStats, error) {
	r.calls.Add(1)
	n := r.active.Add(1)
	defer r.active.Add(-1)
	for {
		m := r.maxSeen.Load()
		if n <= m || r.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if r.panics {
		panic("boom")
	}
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return quake.RunStats{}, ctx.Err()
	}
	return quake.RunStats{}, r.err
}

func TestScheduler_RunsOnStart(t *testing.T) {
	r := &countingRunner{}
	s := New(r, Options{Interval: time.Hour, RunOnStart: true}, zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_WaitsForScheduleWhenNotRunningOnStart(t *testing.T) {
	r := &countingRunner{}
	s := New(r, Options{Interval: time.Hour, RunOnStart: false}, zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop()

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestScheduler_NeverOverlapsRuns(t *testing.T) {
	r := &countingRunner{delay: 2500 * time.Millisecond}
	s := New(r, Options{Interval: time.Second, RunOnStart: true}, zap.NewNop())
	require.NoError(t, s.Start())

	time.Sleep(3500 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, r.calls.Load(), int32(1))
	assert.Equal(t, int32(1), r.maxSeen.Load())
}

func TestScheduler_SurvivesFailingRuns(t *testing.T) {
	for _, r := range []*countingRunner{
		{err: errors.New("index unreachable")},
		{err: quake.ErrRunInProgress},
		{panics: true},
	} {
		s := New(r, Options{Interval: time.Second, RunOnStart: true}, zap.NewNop())
		require.NoError(t, s.Start())

		assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 3*time.Second, 20*time.Millisecond)
		s.Stop()
	}
}

func TestScheduler_RunTimeoutCancelsRun(t *testing.T) {
	r := &countingRunner{delay: time.Hour}
	s := New(r, Options{Interval: time.Hour, RunTimeout: 50 * time.Millisecond, RunOnStart: true}, zap.NewNop())
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.Eventually(t, func() bool {
		return r.calls.Load() == 1 && r.active.Load() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestScheduler_StopCancelsInFlightRun(t *testing.T) {
	r := &countingRunner{delay: time.Hour}
	s := New(r, Options{Interval: time.Hour, RunTimeout: time.Hour, RunOnStart: true}, zap.NewNop())
	require.NoError(t, s.Start())

	require.Eventually(t, func() bool { return r.active.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a run was in flight")
	}
	// Stop returns only after the run has observed cancellation.
	assert.Equal(t, int32(0), r.active.Load())
	assert.Equal(t, int32(1), r.calls.Load())
}
