package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/joeycumines/go-rtps/scheduler"
	"github.com/stretchr/testify/require"
)

func runInBackground(t *testing.T, s *scheduler.Scheduler) func() {
	t.Helper()
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(context.Background())
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = s.Run(ctx)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func TestScheduler_SubmitRunsInFIFOOrder(t *testing.T) {
	s := scheduler.New()
	stop := runInBackground(t, s)
	defer stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		i := i
		require.NoError(t, s.Submit(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}))
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []int{0, 1, 2}, order)
}

func TestScheduler_TimerFires(t *testing.T) {
	s := scheduler.New()
	stop := runInBackground(t, s)
	defer stop()

	done := make(chan struct{})
	_, err := s.ScheduleTimer(10*time.Millisecond, func() { close(done) })
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestScheduler_CancelTimerPreventsExecution(t *testing.T) {
	s := scheduler.New()
	stop := runInBackground(t, s)
	defer stop()

	var fired atomic.Bool
	h, err := s.ScheduleTimer(50*time.Millisecond, func() { fired.Store(true) })
	require.NoError(t, err)
	s.CancelTimer(h)

	time.Sleep(100 * time.Millisecond)
	require.False(t, fired.Load())
}

func TestScheduler_SubmitAfterShutdownFails(t *testing.T) {
	s := scheduler.New()
	stop := runInBackground(t, s)
	stop()

	err := s.Submit(func() {})
	require.ErrorIs(t, err, scheduler.ErrSchedulerTerminated)
}

func TestScheduler_ShutdownIdempotentBeforeRun(t *testing.T) {
	s := scheduler.New()
	require.NoError(t, s.Shutdown(context.Background()))
	require.NoError(t, s.Shutdown(context.Background()))
}
