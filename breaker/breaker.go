// Package breaker implements a CLOSED/OPEN/HALF_OPEN circuit breaker. A
// run of consecutive failures opens the circuit; after a timed cool-down a
// bounded trial period admits calls again, and a run of trial successes
// closes it.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrOpen is returned by Call when the breaker short-circuits the
	// request without invoking the callable.
	ErrOpen = errors.New("circuit breaker is open")

	// ErrInvalidThreshold is returned by New for non-positive failure or
	// success thresholds.
	ErrInvalidThreshold = errors.New("breaker thresholds must be > 0")
)

// State enumerates the breaker states.
type State uint8

const (
	// StateClosed is normal operation: calls pass through and failures
	// are counted.
	StateClosed State = iota

	// StateOpen short-circuits every call until the open timeout
	// elapses.
	StateOpen

	// StateHalfOpen admits calls as recovery trials.
	StateHalfOpen
)

// String returns the canonical name of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// transition is a recorded state change, reported to the observer outside
// the lock.
type transition struct {
	prev, next State
}

// Config holds the breaker parameters.
type Config struct {
	// Name identifies the breaker in callbacks and log output.
	Name string

	// FailureThreshold is the number of consecutive failures in CLOSED
	// that opens the circuit. Must be positive.
	FailureThreshold int

	// SuccessThreshold is the number of consecutive trial successes in
	// HALF_OPEN that closes the circuit. Must be positive.
	SuccessThreshold int

	// OpenTimeout is the cool-down after which an OPEN breaker admits
	// trial calls. Zero moves OPEN to HALF_OPEN on the next state
	// refresh.
	OpenTimeout time.Duration

	// OnStateChange, when non-nil, is invoked for every actual state
	// transition with the previous and next states. It runs with no
	// breaker lock held.
	OnStateChange func(prev, next State)
}

// Breaker is a circuit breaker. All methods are safe for concurrent use.
// State-dependent decisions first refresh the state, so an expired OPEN
// cool-down is observable from any accessor.
type Breaker struct {
	mu  sync.Mutex
	cfg Config

	// state is the current breaker state.
	state State

	// failures counts consecutive failures while CLOSED.
	failures int

	// trialSuccesses counts consecutive successes while HALF_OPEN.
	trialSuccesses int

	// openedAt is the instant the breaker last transitioned to OPEN.
	openedAt time.Time
}

// New validates cfg and returns a breaker starting in CLOSED.
func New(cfg Config) (*Breaker, error) {
	if cfg.FailureThreshold <= 0 || cfg.SuccessThreshold <= 0 {
		return nil, fmt.Errorf("%w: failure=%d success=%d",
			ErrInvalidThreshold, cfg.FailureThreshold,
			cfg.SuccessThreshold)
	}
	if cfg.OpenTimeout < 0 {
		return nil, fmt.Errorf("open timeout must be >= 0, got %v",
			cfg.OpenTimeout)
	}

	return &Breaker{cfg: cfg}, nil
}

// refreshLocked moves OPEN to HALF_OPEN once the cool-down has elapsed.
// Callers must hold mu; any resulting transition is appended to trans.
func (b *Breaker) refreshLocked(now time.Time,
	trans []transition) []transition {

	if b.state != StateOpen {
		return trans
	}

	if b.cfg.OpenTimeout == 0 ||
		now.Sub(b.openedAt) >= b.cfg.OpenTimeout {

		trans = append(trans, transition{StateOpen, StateHalfOpen})
		b.state = StateHalfOpen
		b.trialSuccesses = 0
	}

	return trans
}

// notify reports the recorded transitions to the observer, outside the
// lock.
func (b *Breaker) notify(trans []transition) {
	for _, tr := range trans {
		log.DebugS(context.Background(), "Breaker state change",
			"name", b.cfg.Name,
			"prev", tr.prev, "next", tr.next)

		if b.cfg.OnStateChange != nil {
			b.cfg.OnStateChange(tr.prev, tr.next)
		}
	}
}

// Allow refreshes the state and reports whether a call may proceed. OPEN
// rejects; CLOSED and HALF_OPEN admit.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	trans := b.refreshLocked(time.Now(), nil)
	allowed := b.state != StateOpen
	b.mu.Unlock()

	b.notify(trans)

	return allowed
}

// RecordSuccess records a successful call: it clears the failure run in
// CLOSED and advances the trial count in HALF_OPEN, closing the circuit
// once the success threshold is reached.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	trans := b.refreshLocked(time.Now(), nil)

	switch b.state {
	case StateClosed:
		b.failures = 0

	case StateHalfOpen:
		b.trialSuccesses++
		if b.trialSuccesses >= b.cfg.SuccessThreshold {
			trans = append(trans, transition{
				StateHalfOpen, StateClosed,
			})
			b.state = StateClosed
			b.failures = 0
			b.trialSuccesses = 0
		}
	}
	b.mu.Unlock()

	b.notify(trans)
}

// RecordFailure records a failed call: it advances the failure run in
// CLOSED, opening the circuit at the threshold, and re-opens immediately
// from HALF_OPEN.
func (b *Breaker) RecordFailure() {
	now := time.Now()

	b.mu.Lock()
	trans := b.refreshLocked(now, nil)

	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.cfg.FailureThreshold {
			trans = append(trans, transition{
				StateClosed, StateOpen,
			})
			b.state = StateOpen
			b.openedAt = now
			b.failures = 0
			b.trialSuccesses = 0
		}

	case StateHalfOpen:
		trans = append(trans, transition{StateHalfOpen, StateOpen})
		b.state = StateOpen
		b.openedAt = now
		b.failures = 0
		b.trialSuccesses = 0
	}
	b.mu.Unlock()

	b.notify(trans)
}

// Call runs fnc under breaker b. An OPEN breaker short-circuits with
// ErrOpen without invoking fnc; otherwise fnc's outcome is recorded as a
// success or failure and returned unchanged.
func Call[T any](b *Breaker, fnc func() (T, error)) (T, error) {
	if !b.Allow() {
		var zero T
		return zero, ErrOpen
	}

	v, err := fnc()
	if err != nil {
		b.RecordFailure()
	} else {
		b.RecordSuccess()
	}

	return v, err
}

// State refreshes and returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	trans := b.refreshLocked(time.Now(), nil)
	state := b.state
	b.mu.Unlock()

	b.notify(trans)

	return state
}

// FailureCount returns a snapshot of the consecutive failure count in
// CLOSED.
func (b *Breaker) FailureCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.failures
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string {
	return b.cfg.Name
}

// Reset forces the breaker back to CLOSED with all counters cleared,
// regardless of its prior state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	var trans []transition
	if b.state != StateClosed {
		trans = append(trans, transition{b.state, StateClosed})
	}
	b.state = StateClosed
	b.failures = 0
	b.trialSuccesses = 0
	b.mu.Unlock()

	b.notify(trans)
}
