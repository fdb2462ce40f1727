package vision

import (
	"context"
	"sync"
)

// State tracks model initialization. Biometric actions are gated on
// StateReady; StateFailed blocks them until the process is restarted with
// a working model setup.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "uninitialized"
	}
}

// Readiness is the process-wide model initialization state machine:
// uninitialized -> loading -> ready | failed. It replaces an ad-hoc
// "models loaded" boolean with a queryable state and an awaitable
// transition.
type Readiness struct {
	mu    sync.RWMutex
	state State
	err   error
	done  chan struct{}
}

func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// SetLoading marks model loading as started. Only valid from
// uninitialized; later calls are ignored.
func (r *Readiness) SetLoading() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateUninitialized {
		r.state = StateLoading
	}
}

// SetReady marks the models as loaded and releases all waiters.
func (r *Readiness) SetReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateReady || r.state == StateFailed {
		return
	}
	r.state = StateReady
	close(r.done)
}

// SetFailed records a terminal initialization failure and releases all
// waiters, who will observe the failed state.
func (r *Readiness) SetFailed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateReady || r.state == StateFailed {
		return
	}
	r.state = StateFailed
	r.err = err
	close(r.done)
}

// State returns the current state and, for StateFailed, the cause.
func (r *Readiness) State() (State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state, r.err
}

// Ready reports whether biometric actions may proceed.
func (r *Readiness) Ready() bool {
	s, _ := r.State()
	return s == StateReady
}

// Await blocks until the state machine reaches ready or failed, or the
// context is cancelled.
func (r *Readiness) Await(ctx context.Context) error {
	select {
	case <-r.done:
		_, err := r.State()
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
