package syncutil

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestMutexWithLockReleasesOnPanic tests that WithLock releases the lock
// even when the guarded function panics.
func TestMutexWithLockReleasesOnPanic(t *testing.T) {
	t.Parallel()

	var m Mutex

	require.Panics(t, func() {
		m.WithLock(func() {
			panic("boom")
		})
	})

	// The lock must be free again.
	require.True(t, m.TryLock())
	m.Unlock()
}

// TestRWMutexReadersShareWriterExcludes tests the basic reader/writer
// exclusion rules.
func TestRWMutexReadersShareWriterExcludes(t *testing.T) {
	t.Parallel()

	var m RWMutex

	m.RLock()
	require.True(t, m.TryRLock(), "readers share")
	require.False(t, m.TryLock(), "writer excluded by readers")
	m.RUnlock()
	m.RUnlock()

	require.True(t, m.TryLock())
	require.False(t, m.TryRLock(), "reader excluded by writer")
	m.Unlock()
}

// TestOnceRunsExactlyOnce tests that concurrent Do calls run the function
// exactly once and that Done flips afterwards.
func TestOnceRunsExactlyOnce(t *testing.T) {
	t.Parallel()

	var (
		once  Once
		calls atomic.Int32
		wg    sync.WaitGroup
	)

	require.False(t, once.Done())

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			once.Do(func() {
				calls.Add(1)
			})
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), calls.Load())
	require.True(t, once.Done())
}

// TestSemaphoreAcquireRelease tests permit accounting across acquire,
// try-acquire and release.
func TestSemaphoreAcquireRelease(t *testing.T) {
	t.Parallel()

	s := NewSemaphore(2)
	require.Equal(t, 2, s.AvailablePermits())

	s.Acquire()
	require.True(t, s.TryAcquire())
	require.Equal(t, 0, s.AvailablePermits())
	require.False(t, s.TryAcquire())

	s.Release()
	require.Equal(t, 1, s.AvailablePermits())
}

// TestSemaphoreBlocksUntilRelease tests that Acquire blocks while no
// permit is available and wakes on Release.
func TestSemaphoreBlocksUntilRelease(t *testing.T) {
	t.Parallel()

	s := NewSemaphore(0)

	acquired := make(chan struct{})
	go func() {
		s.Acquire()
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("acquire succeeded with zero permits")
	case <-time.After(50 * time.Millisecond):
	}

	s.Release()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire did not wake on release")
	}
}

// TestSemaphoreAcquireCtx tests that a context expiry aborts a blocked
// acquire without consuming a permit.
func TestSemaphoreAcquireCtx(t *testing.T) {
	t.Parallel()

	s := NewSemaphore(0)

	ctx, cancel := context.WithTimeout(
		context.Background(), 50*time.Millisecond,
	)
	defer cancel()

	err := s.AcquireCtx(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	// A later release must leave exactly one permit: the aborted
	// acquire consumed nothing.
	s.Release()
	require.Equal(t, 1, s.AvailablePermits())
}

// TestLatchOpensAtZero tests that exactly k count-downs open a latch
// created with count k.
func TestLatchOpensAtZero(t *testing.T) {
	t.Parallel()

	const k = 5

	l, err := NewCountDownLatch(k)
	require.NoError(t, err)

	for i := 0; i < k-1; i++ {
		l.CountDown()
	}
	require.False(t, l.AwaitTimeout(20*time.Millisecond))
	require.Equal(t, 1, l.Count())

	l.CountDown()

	// Any await now returns immediately.
	l.Await()
	require.True(t, l.AwaitTimeout(0))
	require.Equal(t, 0, l.Count())

	// Extra count-downs are no-ops.
	l.CountDown()
	require.Equal(t, 0, l.Count())
}

// TestLatchZeroCountStartsOpen tests that a zero-count latch never blocks.
func TestLatchZeroCountStartsOpen(t *testing.T) {
	t.Parallel()

	l, err := NewCountDownLatch(0)
	require.NoError(t, err)

	l.Await()
}

// TestLatchNegativeCount tests that a negative count is rejected with a
// typed error.
func TestLatchNegativeCount(t *testing.T) {
	t.Parallel()

	_, err := NewCountDownLatch(-1)
	require.ErrorIs(t, err, ErrNegativeCount)
}

// TestWaitGroupWaitTimeout tests the bounded wait on the wait group
// wrapper.
func TestWaitGroupWaitTimeout(t *testing.T) {
	t.Parallel()

	var wg WaitGroup
	wg.Add(1)

	require.False(t, wg.WaitTimeout(30*time.Millisecond))

	wg.Done()
	require.True(t, wg.WaitTimeout(time.Second))

	// The plain wait returns immediately as well.
	wg.Wait()
}

// TestSemaphoreNegativePermits tests that a negative permit count is
// rejected.
func TestSemaphoreNegativePermits(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() {
		NewSemaphore(-1)
	})
}
