package syncutil

import (
	"context"
	"fmt"
	"sync"
)

// Semaphore is a counting semaphore. It starts with a fixed number of
// permits; Acquire blocks until a permit is available and Release returns
// one. Releasing more permits than were initially configured is permitted
// and grows the pool, matching classic counting semaphore semantics.
type Semaphore struct {
	mu      sync.Mutex
	cond    *sync.Cond
	permits int
}

// NewSemaphore creates a semaphore with the given number of initial permits.
// It panics if permits is negative.
func NewSemaphore(permits int) *Semaphore {
	if permits < 0 {
		panic(fmt.Sprintf("semaphore permits must be >= 0, got %d",
			permits))
	}

	s := &Semaphore{permits: permits}
	s.cond = sync.NewCond(&s.mu)

	return s
}

// Acquire blocks until a permit is available, then takes it.
func (s *Semaphore) Acquire() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.permits == 0 {
		s.cond.Wait()
	}
	s.permits--
}

// AcquireCtx blocks until a permit is available or the context is done. It
// returns the context's error without taking a permit when the context
// expires first.
func (s *Semaphore) AcquireCtx(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Wake all waiters when the context fires so the wait loop below can
	// observe the context error. The watcher exits once the acquire
	// attempt resolves either way.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			// Take the lock before broadcasting so the wakeup
			// cannot slip in between a waiter's context check and
			// its call to Wait.
			s.mu.Lock()
			s.cond.Broadcast()
			s.mu.Unlock()
		case <-stop:
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	for s.permits == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.cond.Wait()
	}
	s.permits--

	return nil
}

// TryAcquire takes a permit without blocking and reports whether one was
// available.
func (s *Semaphore) TryAcquire() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.permits == 0 {
		return false
	}
	s.permits--

	return true
}

// Release returns one permit to the semaphore, waking a blocked Acquire if
// any.
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.permits++
	s.cond.Signal()
}

// AvailablePermits returns a snapshot of the number of free permits.
func (s *Semaphore) AvailablePermits() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.permits
}
