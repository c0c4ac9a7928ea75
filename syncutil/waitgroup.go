package syncutil

import (
	"sync"
	"time"
)

// WaitGroup wraps sync.WaitGroup with a bounded wait. Driving the internal
// counter negative is a contract violation and faults the process, exactly
// as with sync.WaitGroup.
type WaitGroup struct {
	wg sync.WaitGroup
}

// Add adds delta, which may be negative, to the counter.
func (w *WaitGroup) Add(delta int) {
	w.wg.Add(delta)
}

// Done decrements the counter by one.
func (w *WaitGroup) Done() {
	w.wg.Done()
}

// Wait blocks until the counter reaches zero.
func (w *WaitGroup) Wait() {
	w.wg.Wait()
}

// WaitTimeout blocks until the counter reaches zero or the timeout elapses,
// reporting whether the counter reached zero in time. The underlying wait
// keeps running after a timeout; callers may invoke WaitTimeout again.
func (w *WaitGroup) WaitTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
