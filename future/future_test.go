package future

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// requireSuccess unwraps a result that must be successful.
func requireSuccess[T any](t *testing.T, res fn.Result[T]) T {
	t.Helper()

	v, err := res.Unpack()
	require.NoError(t, err)

	return v
}

// TestCompletedAndFailed tests the pre-terminal constructors and their
// snapshot accessors.
func TestCompletedAndFailed(t *testing.T) {
	t.Parallel()

	ok := Completed(42)
	require.True(t, ok.IsDone())
	require.True(t, ok.IsSuccess())
	require.False(t, ok.IsFailed())
	require.NoError(t, ok.Err())
	require.Equal(t, 42, requireSuccess(t, ok.Await()))

	boom := errors.New("boom")
	bad := Failed[int](boom)
	require.True(t, bad.IsDone())
	require.True(t, bad.IsFailed())
	require.ErrorIs(t, bad.Err(), boom)
}

// TestRunCompletesOnce tests that Run resolves the future with the task's
// outcome and that the terminal state is set exactly once.
func TestRunCompletesOnce(t *testing.T) {
	t.Parallel()

	f := Run(func() (string, error) {
		return "done", nil
	})

	require.Equal(t, "done", requireSuccess(t, f.Await()))
	require.Equal(t, StateSuccess, f.State())

	// Later transitions must be rejected.
	require.False(t, f.Cancel())
	require.Equal(t, StateSuccess, f.State())
}

// TestRunContainsPanic tests that a panicking task fails the future
// instead of crashing the process.
func TestRunContainsPanic(t *testing.T) {
	t.Parallel()

	f := Run(func() (int, error) {
		panic("kaboom")
	})

	res := f.Await()
	require.True(t, res.IsErr())
	require.True(t, f.IsFailed())
	require.Contains(t, f.Err().Error(), "kaboom")
}

// TestCancelPendingFuture tests the Pending -> Cancelled transition and
// that waiters observe ErrCancelled.
func TestCancelPendingFuture(t *testing.T) {
	t.Parallel()

	p := NewPromise[int]()
	f := p.Future()

	require.True(t, f.Cancel())
	require.True(t, f.IsCancelled())
	require.ErrorIs(t, f.Err(), ErrCancelled)

	// The producer lost the race; its completion is discarded.
	require.False(t, p.Complete(fn.Ok(1)))
	require.True(t, f.IsCancelled())
}

// TestAwaitTimeout tests that AwaitTimeout reports expiry without
// affecting the underlying future.
func TestAwaitTimeout(t *testing.T) {
	t.Parallel()

	p := NewPromise[int]()
	f := p.Future()

	res, ok := f.AwaitTimeout(30 * time.Millisecond)
	require.False(t, ok)
	require.True(t, res.IsErr())

	// The future is still pending and completable.
	require.False(t, f.IsDone())
	require.True(t, p.Complete(fn.Ok(7)))
	require.Equal(t, 7, requireSuccess(t, f.Await()))
}

// TestMapIdentity tests Completed(v).Map(fn).Await() == fn(v).
func TestMapIdentity(t *testing.T) {
	t.Parallel()

	f := Map(Completed(21), func(v int) int { return v * 2 })
	require.Equal(t, 42, requireSuccess(t, f.Await()))
}

// TestMapPropagatesFailureAndCancellation tests that Map passes both
// non-success modes through unchanged.
func TestMapPropagatesFailureAndCancellation(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	failed := Map(Failed[int](boom), func(v int) int { return v })
	failed.Await()
	require.ErrorIs(t, failed.Err(), boom)
	require.True(t, failed.IsFailed())

	p := NewPromise[int]()
	p.Future().Cancel()
	cancelled := Map(p.Future(), func(v int) int { return v })
	cancelled.Await()
	require.True(t, cancelled.IsCancelled())
}

// TestFlatMapIdentity tests the flat-map round trip through an inner
// future.
func TestFlatMapIdentity(t *testing.T) {
	t.Parallel()

	f := FlatMap(Completed(6), func(v int) *Future[int] {
		return Completed(v * 7)
	})
	require.Equal(t, 42, requireSuccess(t, f.Await()))
}

// TestFlatMapNilInner tests that a nil inner future fails the composed
// future.
func TestFlatMapNilInner(t *testing.T) {
	t.Parallel()

	f := FlatMap(Completed(1), func(v int) *Future[int] {
		return nil
	})
	f.Await()
	require.ErrorIs(t, f.Err(), ErrNilInnerFuture)
}

// TestRecoverTurnsFailureIntoSuccess tests Failed(r).Recover(fn).Await()
// == fn(r) and that success and cancellation pass through.
func TestRecoverTurnsFailureIntoSuccess(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	f := Failed[string](boom).Recover(func(err error) string {
		return "recovered: " + err.Error()
	})
	require.Equal(t, "recovered: boom", requireSuccess(t, f.Await()))

	passthrough := Completed("fine").Recover(func(error) string {
		return "unused"
	})
	require.Equal(t, "fine", requireSuccess(t, passthrough.Await()))

	p := NewPromise[string]()
	p.Future().Cancel()
	cancelled := p.Future().Recover(func(error) string {
		return "unused"
	})
	cancelled.Await()
	require.True(t, cancelled.IsCancelled())
}

// TestWithTimeoutExpiry tests that the wrapper fails with ErrTimeout while
// the source stays pending and completable.
func TestWithTimeoutExpiry(t *testing.T) {
	t.Parallel()

	p := NewPromise[int]()
	src := p.Future()

	wrapped := src.WithTimeout(30 * time.Millisecond)
	wrapped.Await()
	require.ErrorIs(t, wrapped.Err(), ErrTimeout)

	// The source is independent of the wrapper's expiry.
	require.False(t, src.IsDone())
	require.True(t, p.Complete(fn.Ok(5)))
	require.Equal(t, 5, requireSuccess(t, src.Await()))
}

// TestWithTimeoutCompletesInTime tests that a timely source passes through
// the wrapper unchanged.
func TestWithTimeoutCompletesInTime(t *testing.T) {
	t.Parallel()

	f := Completed(3).WithTimeout(time.Second)
	require.Equal(t, 3, requireSuccess(t, f.Await()))
}

// TestAllCollectsInOrder tests that All succeeds with every value in input
// order.
func TestAllCollectsInOrder(t *testing.T) {
	t.Parallel()

	futures := []*Future[int]{
		Completed(1),
		Run(func() (int, error) {
			time.Sleep(20 * time.Millisecond)
			return 2, nil
		}),
		Completed(3),
	}

	values := requireSuccess(t, All(futures).Await())
	require.Equal(t, []int{1, 2, 3}, values)
}

// TestAllFailsFast tests that the first non-success source settles the
// composed future immediately.
func TestAllFailsFast(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	pending := NewPromise[int]()

	start := time.Now()
	f := All([]*Future[int]{
		pending.Future(),
		Failed[int](boom),
	})
	f.Await()
	require.ErrorIs(t, f.Err(), boom)
	require.Less(t, time.Since(start), time.Second)

	pending.Complete(fn.Ok(1))
}

// TestAllEmptyInput tests that All of no futures succeeds with an empty
// slice.
func TestAllEmptyInput(t *testing.T) {
	t.Parallel()

	values := requireSuccess(t, All[int](nil).Await())
	require.Empty(t, values)
}

// TestAnyFirstSettles tests that Any mirrors the first source to reach a
// terminal state.
func TestAnyFirstSettles(t *testing.T) {
	t.Parallel()

	slow := Run(func() (int, error) {
		time.Sleep(200 * time.Millisecond)
		return 1, nil
	})
	fast := Run(func() (int, error) {
		return 2, nil
	})

	v := requireSuccess(t, Any([]*Future[int]{slow, fast}).Await())
	require.Equal(t, 2, v)
}

// TestAnyEmptyInput tests the mandated failure for an empty input.
func TestAnyEmptyInput(t *testing.T) {
	t.Parallel()

	f := Any[int](nil)
	f.Await()
	require.ErrorIs(t, f.Err(), ErrEmptyInput)

	raced := Race[int](nil)
	raced.Await()
	require.ErrorIs(t, raced.Err(), ErrEmptyInput)
}

// TestAllSettledWaitsForEveryOutcome tests that AllSettled succeeds once
// all sources are terminal, whatever their states.
func TestAllSettledWaitsForEveryOutcome(t *testing.T) {
	t.Parallel()

	cancelled := NewPromise[int]().Future()
	cancelled.Cancel()

	futures := []*Future[int]{
		Completed(1),
		Failed[int](errors.New("boom")),
		cancelled,
	}

	settled := requireSuccess(t, AllSettled(futures).Await())
	require.Len(t, settled, 3)
	require.True(t, settled[0].IsSuccess())
	require.True(t, settled[1].IsFailed())
	require.True(t, settled[2].IsCancelled())
}

// TestDelayedRunsAfterDelay tests that Delayed defers the task and that
// cancelling during the delay suppresses it entirely.
func TestDelayedRunsAfterDelay(t *testing.T) {
	t.Parallel()

	var ran atomic.Bool

	start := time.Now()
	f := Delayed(50*time.Millisecond, func() (int, error) {
		ran.Store(true)
		return 9, nil
	})

	require.Equal(t, 9, requireSuccess(t, f.Await()))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.True(t, ran.Load())

	var skipped atomic.Bool
	g := Delayed(time.Hour, func() (int, error) {
		skipped.Store(true)
		return 0, nil
	})
	require.True(t, g.Cancel())
	g.Await()
	require.True(t, g.IsCancelled())
	require.False(t, skipped.Load())
}

// TestOnCompleteFires tests that completion callbacks run for both
// already-terminal and late-completing futures.
func TestOnCompleteFires(t *testing.T) {
	t.Parallel()

	fired := make(chan int, 2)

	Completed(1).OnComplete(func(res fn.Result[int]) {
		v, _ := res.Unpack()
		fired <- v
	})

	p := NewPromise[int]()
	p.Future().OnComplete(func(res fn.Result[int]) {
		v, _ := res.Unpack()
		fired <- v
	})
	p.Complete(fn.Ok(2))

	got := map[int]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-fired:
			got[v] = true
		case <-time.After(time.Second):
			t.Fatal("callback did not fire")
		}
	}
	require.True(t, got[1])
	require.True(t, got[2])
}

// TestOrElseFallback tests the blocking value-or-fallback accessor.
func TestOrElseFallback(t *testing.T) {
	t.Parallel()

	require.Equal(t, 7, Completed(7).OrElse(0))
	require.Equal(t, -1, Failed[int](errors.New("x")).OrElse(-1))
}
