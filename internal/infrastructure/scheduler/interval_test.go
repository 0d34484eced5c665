package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIntervalSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(10 * time.Millisecond)
	var runs atomic.Int32

	require.NoError(t, s.Start(context.Background(), func(time.Time) { runs.Add(1) }))
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop(context.Background()))

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, after, runs.Load())
}

func TestIntervalSchedulerDisabled(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(0)
	var runs atomic.Int32
	require.NoError(t, s.Start(context.Background(), func(time.Time) { runs.Add(1) }))
	require.NoError(t, s.Stop(context.Background()))
	require.Zero(t, runs.Load())
}

func TestIntervalSchedulerStopsWithContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewIntervalScheduler(time.Hour)
	started := make(chan struct{}, 1)
	require.NoError(t, s.Start(ctx, func(time.Time) { started <- struct{}{} }))
	<-started
	cancel()
	require.NoError(t, s.Stop(context.Background()))
}
