// Package retry implements a configurable retry policy: bounded attempts,
// fixed or exponential backoff with an optional jitter, a predicate to
// filter which failures are worth retrying and an observer hook fired before
// every sleep.
package retry

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff selects how the delay between attempts evolves.
type Backoff uint8

const (
	// BackoffFixed sleeps the initial delay between every attempt.
	BackoffFixed Backoff = iota

	// BackoffExponential doubles the delay after each failed attempt,
	// capped at the policy's max delay.
	BackoffExponential
)

// ErrInvalidAttempts is returned by New when the configured attempt budget
// is below one.
var ErrInvalidAttempts = errors.New("max attempts must be >= 1")

// reasonAttemptFailed is the reason string used by the boolean Do variant,
// which has no error to derive one from.
const reasonAttemptFailed = "attempt failed"

// Config holds the retry policy parameters.
type Config struct {
	// MaxAttempts is the total number of invocations allowed, including
	// the first one. Must be at least 1.
	MaxAttempts int

	// Backoff selects fixed or exponential delay growth.
	Backoff Backoff

	// InitialDelay is the delay after the first failed attempt.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff. Zero means no cap beyond
	// int64 saturation.
	MaxDelay time.Duration

	// Jitter, when set, replaces each computed delay with a uniform
	// sample from [0, delay].
	Jitter bool

	// RetryOn decides whether a failure with the given reason should be
	// retried. Nil retries every failure.
	RetryOn func(reason string) bool

	// OnRetry is invoked before each backoff sleep with the attempt that
	// just failed, its reason and the delay about to be slept. It runs
	// with no policy lock held.
	OnRetry func(attempt int, reason string, delay time.Duration)
}

// DefaultConfig returns a policy configuration of three attempts with a
// fixed 100ms delay.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  3,
		Backoff:      BackoffFixed,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     30 * time.Second,
	}
}

// Policy executes callables under the retry discipline described by its
// Config. A Policy is immutable and safe for concurrent use.
type Policy struct {
	cfg Config
}

// New validates cfg and returns the policy for it.
func New(cfg Config) (*Policy, error) {
	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidAttempts,
			cfg.MaxAttempts)
	}

	return &Policy{cfg: cfg}, nil
}

// Do invokes fn until it returns true or the attempt budget is exhausted,
// reporting whether a call succeeded.
func (p *Policy) Do(fn func() bool) bool {
	for attempt := 1; ; attempt++ {
		if fn() {
			return true
		}

		if !p.backoff(attempt, reasonAttemptFailed) {
			return false
		}
	}
}

// DoErr invokes fn until it returns nil or the attempt budget is
// exhausted, returning the last error. The error's message is the reason
// passed to the RetryOn predicate.
func (p *Policy) DoErr(fn func() error) error {
	for attempt := 1; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		if !p.backoff(attempt, err.Error()) {
			return err
		}
	}
}

// DoValue invokes fn under policy p until it succeeds or the attempt budget
// is exhausted, returning the last outcome.
func DoValue[T any](p *Policy, fn func() (T, error)) (T, error) {
	for attempt := 1; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}

		if !p.backoff(attempt, err.Error()) {
			return v, err
		}
	}
}

// backoff decides whether the failed attempt should be retried and, if so,
// sleeps the computed delay after notifying the observer. It returns false
// when the budget is exhausted or the predicate rejects the reason.
func (p *Policy) backoff(attempt int, reason string) bool {
	if attempt >= p.cfg.MaxAttempts {
		return false
	}
	if p.cfg.RetryOn != nil && !p.cfg.RetryOn(reason) {
		return false
	}

	delay := p.delayFor(attempt)
	if p.cfg.Jitter && delay > 0 {
		// Sample uniformly from [0, delay], guarding the +1 against
		// overflow at the saturation ceiling.
		bound := int64(delay)
		if bound < math.MaxInt64 {
			bound++
		}
		delay = time.Duration(rand.Int64N(bound))
	}

	if p.cfg.OnRetry != nil {
		p.cfg.OnRetry(attempt, reason, delay)
	}

	time.Sleep(delay)

	return true
}

// delayFor computes the backoff delay after the given failed attempt,
// doubling per attempt in exponential mode with saturation at the int64
// ceiling and the configured cap.
func (p *Policy) delayFor(attempt int) time.Duration {
	if p.cfg.Backoff == BackoffFixed {
		return p.cfg.InitialDelay
	}

	delay := p.cfg.InitialDelay
	for i := 1; i < attempt; i++ {
		if delay > math.MaxInt64/2 {
			delay = math.MaxInt64
			break
		}
		delay *= 2
	}

	if p.cfg.MaxDelay > 0 && delay > p.cfg.MaxDelay {
		delay = p.cfg.MaxDelay
	}

	return delay
}
