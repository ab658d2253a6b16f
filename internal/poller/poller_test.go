package poller

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunReachesReady(t *testing.T) {
	var calls atomic.Int32
	p := New(Config[string]{
		Interval: 5 * time.Millisecond,
		Budget:   time.Second,
		Fetch: func(ctx context.Context) (string, error) {
			if calls.Add(1) >= 3 {
				return "ready", nil
			}
			return "generating", nil
		},
		Done: func(s string) bool { return s == "ready" },
	})

	state := p.Run(context.Background())
	if state != StateReady {
		t.Fatalf("final state=%q, want ready", state)
	}
	if p.State() != StateReady {
		t.Fatalf("State()=%q, want ready", p.State())
	}
	last, err := p.Last()
	if err != nil || last != "ready" {
		t.Fatalf("Last()=%q,%v, want ready,nil", last, err)
	}
}

func TestRunImmediateReady(t *testing.T) {
	var calls atomic.Int32
	p := New(Config[int]{
		Interval: time.Hour, // never ticks; the first check must suffice
		Budget:   time.Hour,
		Fetch: func(ctx context.Context) (int, error) {
			calls.Add(1)
			return 42, nil
		},
		Done: func(int) bool { return true },
	})

	done := make(chan State, 1)
	go func() { done <- p.Run(context.Background()) }()
	select {
	case state := <-done:
		if state != StateReady {
			t.Fatalf("final state=%q, want ready", state)
		}
	case <-time.After(time.Second):
		t.Fatal("poller did not return on an immediately satisfied condition")
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch called %d times, want 1", calls.Load())
	}
}

func TestRunTimesOut(t *testing.T) {
	p := New(Config[string]{
		Interval: 5 * time.Millisecond,
		Budget:   30 * time.Millisecond,
		Fetch: func(ctx context.Context) (string, error) {
			return "generating", nil
		},
		Done: func(string) bool { return false },
	})

	state := p.Run(context.Background())
	if state != StateTimedOut {
		t.Fatalf("final state=%q, want timed_out", state)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := New(Config[string]{
		Interval: 5 * time.Millisecond,
		Budget:   time.Hour,
		Fetch: func(ctx context.Context) (string, error) {
			return "generating", nil
		},
		Done: func(string) bool { return false },
	})

	done := make(chan State, 1)
	go func() { done <- p.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case state := <-done:
		if state != StateIdle {
			t.Fatalf("final state=%q, want idle after cancel", state)
		}
	case <-time.After(time.Second):
		t.Fatal("poller leaked after cancellation")
	}
}

func TestFetchErrorsDoNotStopPolling(t *testing.T) {
	var calls atomic.Int32
	p := New(Config[string]{
		Interval: 5 * time.Millisecond,
		Budget:   time.Second,
		Fetch: func(ctx context.Context) (string, error) {
			n := calls.Add(1)
			if n < 3 {
				return "", context.DeadlineExceeded
			}
			return "ready", nil
		},
		Done: func(s string) bool { return s == "ready" },
	})

	state := p.Run(context.Background())
	if state != StateReady {
		t.Fatalf("final state=%q, want ready despite transient fetch errors", state)
	}
}
