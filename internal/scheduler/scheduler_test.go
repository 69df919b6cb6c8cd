package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleRecurringFiresRepeatedly(t *testing.T) {
	s := New(nil, time.Second)
	var count atomic.Int32
	s.ScheduleRecurring("tick", 10*time.Millisecond, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(55 * time.Millisecond)
	if got := count.Load(); got < 3 {
		t.Fatalf("expected at least 3 fires in 55ms at 10ms period, got %d", got)
	}
}

func TestSlowHandlerDropsOverlappingTick(t *testing.T) {
	s := New(nil, time.Second)
	var running atomic.Int32
	var maxConcurrent atomic.Int32
	release := make(chan struct{})

	s.ScheduleRecurring("slow", 5*time.Millisecond, func(ctx context.Context) error {
		n := running.Add(1)
		defer running.Add(-1)
		if n > maxConcurrent.Load() {
			maxConcurrent.Store(n)
		}
		<-release
		return nil
	})
	s.Start(context.Background())

	time.Sleep(40 * time.Millisecond)
	close(release)
	s.Stop()

	if got := maxConcurrent.Load(); got > 1 {
		t.Fatalf("expected at most 1 concurrent invocation, saw %d", got)
	}
}

func TestScheduleOnceFiresExactlyOnce(t *testing.T) {
	s := New(nil, time.Second)
	var count atomic.Int32
	s.ScheduleOnce("once", 10*time.Millisecond, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(60 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Fatalf("expected exactly 1 fire, got %d", got)
	}
}

func TestCancelStopsRecurringTask(t *testing.T) {
	s := New(nil, time.Second)
	var count atomic.Int32
	s.ScheduleRecurring("cancel-me", 5*time.Millisecond, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})
	s.Start(context.Background())

	time.Sleep(20 * time.Millisecond)
	s.Cancel("cancel-me")
	afterCancel := count.Load()

	time.Sleep(30 * time.Millisecond)
	s.Stop()

	if count.Load() != afterCancel {
		t.Fatalf("expected no further fires after cancel: before=%d after=%d", afterCancel, count.Load())
	}
}

func TestStopWaitsForInFlightHandlerWithinGrace(t *testing.T) {
	s := New(nil, 200*time.Millisecond)
	var finished atomic.Bool
	var once sync.Once
	started := make(chan struct{})

	s.ScheduleOnce("slow-once", time.Millisecond, func(ctx context.Context) error {
		once.Do(func() { close(started) })
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
		return nil
	})
	s.Start(context.Background())

	<-started
	s.Stop()

	if !finished.Load() {
		t.Fatal("expected Stop to wait for in-flight handler to finish within grace period")
	}
}

func TestTasksRegisteredBeforeStartDoNotFireUntilStart(t *testing.T) {
	s := New(nil, time.Second)
	var count atomic.Int32
	s.ScheduleRecurring("pending", 5*time.Millisecond, func(ctx context.Context) error {
		count.Add(1)
		return nil
	})

	time.Sleep(20 * time.Millisecond)
	if got := count.Load(); got != 0 {
		t.Fatalf("expected no fires before Start, got %d", got)
	}

	s.Start(context.Background())
	defer s.Stop()
	time.Sleep(20 * time.Millisecond)
	if got := count.Load(); got == 0 {
		t.Fatal("expected at least one fire after Start")
	}
}
