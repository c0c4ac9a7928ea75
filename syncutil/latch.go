package syncutil

import (
	"fmt"
	"sync"
	"time"
)

// ErrNegativeCount is returned by NewCountDownLatch for a negative initial
// count.
var ErrNegativeCount = fmt.Errorf("latch count must be >= 0")

// CountDownLatch blocks waiters until its counter reaches zero. The counter
// only decreases; a latch whose count has reached zero stays open forever.
type CountDownLatch struct {
	mu    sync.Mutex
	count int
	done  chan struct{}
}

// NewCountDownLatch creates a latch with the given initial count. A count of
// zero yields an already-open latch.
func NewCountDownLatch(count int) (*CountDownLatch, error) {
	if count < 0 {
		return nil, ErrNegativeCount
	}

	l := &CountDownLatch{
		count: count,
		done:  make(chan struct{}),
	}
	if count == 0 {
		close(l.done)
	}

	return l, nil
}

// CountDown decrements the counter by one. The decrement that reaches zero
// releases all current and future waiters. Calls after the counter has
// reached zero are no-ops.
func (l *CountDownLatch) CountDown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return
	}

	l.count--
	if l.count == 0 {
		close(l.done)
	}
}

// Await blocks until the counter reaches zero.
func (l *CountDownLatch) Await() {
	<-l.done
}

// AwaitTimeout blocks until the counter reaches zero or the timeout
// elapses. It reports whether the latch opened in time.
func (l *CountDownLatch) AwaitTimeout(timeout time.Duration) bool {
	select {
	case <-l.done:
		return true
	case <-time.After(timeout):
		// Resolve the race where the latch opened at the same instant
		// the timer fired.
		select {
		case <-l.done:
			return true
		default:
			return false
		}
	}
}

// Count returns a snapshot of the remaining count.
func (l *CountDownLatch) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.count
}
