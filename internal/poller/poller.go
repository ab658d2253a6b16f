// Package poller implements the bounded polling loop a client runs while it
// waits for server-side state (plan generation, completion flags) to reach a
// terminal condition. One ticker, one deadline, one cancellation path, no
// ad hoc timer chains to leak on navigation.
package poller

import (
	"context"
	"sync"
	"time"
)

type State string

const (
	StateIdle     State = "idle"
	StatePolling  State = "polling"
	StateReady    State = "ready"
	StateTimedOut State = "timed_out"
)

// Fetch retrieves the current remote snapshot. Done inspects it and reports
// whether the awaited condition holds.
type Config[T any] struct {
	Interval time.Duration
	Budget   time.Duration
	Fetch    func(ctx context.Context) (T, error)
	Done     func(snapshot T) bool
}

type Poller[T any] struct {
	cfg Config[T]

	mu    sync.Mutex
	state State
	last  T
	err   error
}

func New[T any](cfg Config[T]) *Poller[T] {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	if cfg.Budget <= 0 {
		cfg.Budget = 2 * time.Minute
	}
	return &Poller[T]{cfg: cfg, state: StateIdle}
}

func (p *Poller[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Last returns the most recent snapshot and fetch error observed.
func (p *Poller[T]) Last() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.err
}

func (p *Poller[T]) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Poller[T]) record(snapshot T, err error) {
	p.mu.Lock()
	if err == nil {
		p.last = snapshot
	}
	p.err = err
	p.mu.Unlock()
}

// Run polls until the condition holds, the budget is spent, or ctx is
// cancelled. It returns the final state: ready when the condition was
// observed, timed_out when the budget ran out (the caller should offer a
// manual continue), idle when cancelled. Fetch errors do not stop the loop;
// the next tick retries.
func (p *Poller[T]) Run(ctx context.Context) State {
	p.setState(StatePolling)

	deadline := time.NewTimer(p.cfg.Budget)
	defer deadline.Stop()
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	check := func() bool {
		snapshot, err := p.cfg.Fetch(ctx)
		p.record(snapshot, err)
		if err != nil {
			return false
		}
		return p.cfg.Done(snapshot)
	}

	// First check immediately; the common case is that the work already
	// finished before polling began.
	if check() {
		p.setState(StateReady)
		return StateReady
	}

	for {
		select {
		case <-ctx.Done():
			p.setState(StateIdle)
			return StateIdle
		case <-deadline.C:
			p.setState(StateTimedOut)
			return StateTimedOut
		case <-ticker.C:
			if check() {
				p.setState(StateReady)
				return StateReady
			}
		}
	}
}
