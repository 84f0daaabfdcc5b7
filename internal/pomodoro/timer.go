package pomodoro

import (
	"context"
	"sync"
	"time"
)

// Timer guards a State with its own lock, independent of the note cache.
type Timer struct {
	mu       sync.Mutex
	state    State
	onChange func(prev, next State)
}

// NewTimer returns a Timer starting at s.
func NewTimer(s State) *Timer {
	return &Timer{state: s}
}

// OnChange registers fn to be called after every transition, outside
// the lock.
func (t *Timer) OnChange(fn func(prev, next State)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// State returns the current snapshot.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Apply replaces the state with fn(state) and returns the result.
func (t *Timer) Apply(fn func(State) State) State {
	t.mu.Lock()
	prev := t.state
	next := fn(prev)
	t.state = next
	cb := t.onChange
	t.mu.Unlock()

	if cb != nil {
		cb(prev, next)
	}
	return next
}

// Init replaces the state with a fresh work phase.
func (t *Timer) Init(workMin, breakMin int) State {
	return t.Apply(func(State) State { return Init(workMin, breakMin) })
}

// Tick counts down one second and switches phase when it runs out.
func (t *Timer) Tick() State {
	return t.Apply(func(s State) State { return Next(Tick(s)) })
}

// Run ticks every interval until ctx is cancelled.
func (t *Timer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !t.State().IsPaused {
				t.Tick()
			}
		}
	}
}
