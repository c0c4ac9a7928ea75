package future

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// Combinators never block the caller: each returns a new pending future
// whose completion is driven by a short-lived goroutine watching the
// source(s). Failure and cancellation propagate verbatim; only Recover turns
// a failure into a success, and nothing turns a cancellation into one.

// Map returns a future that completes with mapFn applied to the source's
// success value. Failure and cancellation of the source propagate unchanged.
// A panic inside mapFn fails the returned future.
func Map[T, U any](src *Future[T], mapFn func(T) U) *Future[U] {
	out := newPending[U]()

	go func() {
		res := src.Await()

		switch src.State() {
		case StateCancelled:
			out.Cancel()

		case StateFailure:
			_, err := res.Unpack()
			out.complete(StateFailure, fn.Err[U](err))

		default:
			v, _ := res.Unpack()
			out.runTask(func() (U, error) {
				return mapFn(v), nil
			})
		}
	}()

	return out
}

// FlatMap returns a future that completes with the outcome of the future
// produced by mapFn from the source's success value. A nil inner future is
// a failure. Failure and cancellation, of either the source or the inner
// future, propagate unchanged.
func FlatMap[T, U any](src *Future[T],
	mapFn func(T) *Future[U]) *Future[U] {

	out := newPending[U]()

	go func() {
		res := src.Await()

		switch src.State() {
		case StateCancelled:
			out.Cancel()

		case StateFailure:
			_, err := res.Unpack()
			out.complete(StateFailure, fn.Err[U](err))

		default:
			v, _ := res.Unpack()

			inner := mapFn(v)
			if inner == nil {
				out.complete(StateFailure, fn.Err[U](
					ErrNilInnerFuture,
				))

				return
			}

			innerRes := inner.Await()
			switch inner.State() {
			case StateCancelled:
				out.Cancel()

			case StateFailure:
				_, err := innerRes.Unpack()
				out.complete(StateFailure, fn.Err[U](err))

			default:
				out.complete(StateSuccess, innerRes)
			}
		}
	}()

	return out
}

// Recover returns a future that completes successfully with recoverFn
// applied to the source's failure reason. A successful source passes
// through untouched and a cancelled source stays cancelled.
func (f *Future[T]) Recover(recoverFn func(error) T) *Future[T] {
	out := newPending[T]()

	go func() {
		res := f.Await()

		switch f.State() {
		case StateCancelled:
			out.Cancel()

		case StateFailure:
			_, err := res.Unpack()
			out.runTask(func() (T, error) {
				return recoverFn(err), nil
			})

		default:
			out.complete(StateSuccess, res)
		}
	}()

	return out
}

// WithTimeout returns a future that mirrors the source unless the source is
// still pending when the timeout elapses, in which case the returned future
// fails with ErrTimeout. The source future is unaffected either way;
// callers who want the timeout to propagate must wire it through a context
// themselves.
func (f *Future[T]) WithTimeout(timeout time.Duration) *Future[T] {
	out := newPending[T]()

	go func() {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-f.done:
			res := f.Await()
			switch f.State() {
			case StateCancelled:
				out.Cancel()
			case StateFailure:
				out.complete(StateFailure, res)
			default:
				out.complete(StateSuccess, res)
			}

		case <-timer.C:
			out.complete(StateFailure, fn.Err[T](ErrTimeout))
		}
	}()

	return out
}

// All returns a future that completes successfully with every source's
// value, in input order, once all sources have succeeded. The first source
// to complete without success determines the outcome: its failure reason or
// cancellation propagates immediately. An empty input succeeds with an
// empty slice.
func All[T any](futures []*Future[T]) *Future[[]T] {
	out := newPending[[]T]()

	if len(futures) == 0 {
		out.complete(StateSuccess, fn.Ok([]T{}))
		return out
	}

	var remaining atomic.Int64
	remaining.Store(int64(len(futures)))

	for _, f := range futures {
		go func() {
			res := f.Await()

			switch f.State() {
			case StateCancelled:
				out.Cancel()

			case StateFailure:
				_, err := res.Unpack()
				out.complete(StateFailure, fn.Err[[]T](err))

			default:
				if remaining.Add(-1) != 0 {
					return
				}

				// Every source succeeded; gather the values
				// in input order. The Awaits below return
				// immediately.
				values := make([]T, len(futures))
				for i, src := range futures {
					v, _ := src.Await().Unpack()
					values[i] = v
				}

				out.complete(StateSuccess, fn.Ok(values))
			}
		}()
	}

	return out
}

// Any returns a future that mirrors the first source to reach any terminal
// state, whether success, failure or cancellation. An empty input fails
// with ErrEmptyInput.
func Any[T any](futures []*Future[T]) *Future[T] {
	out := newPending[T]()

	if len(futures) == 0 {
		out.complete(StateFailure, fn.Err[T](ErrEmptyInput))
		return out
	}

	for _, f := range futures {
		go func() {
			res := f.Await()

			switch f.State() {
			case StateCancelled:
				out.Cancel()

			case StateFailure:
				out.complete(StateFailure, res)

			default:
				out.complete(StateSuccess, res)
			}
		}()
	}

	return out
}

// Race is an alias for Any, completing with the first source to settle.
func Race[T any](futures []*Future[T]) *Future[T] {
	return Any(futures)
}

// AllSettled returns a future that completes successfully with the input
// slice itself once every source has reached a terminal state, regardless
// of which states those are. An empty input settles immediately.
func AllSettled[T any](futures []*Future[T]) *Future[[]*Future[T]] {
	out := newPending[[]*Future[T]]()

	go func() {
		var wg sync.WaitGroup
		wg.Add(len(futures))
		for _, f := range futures {
			go func() {
				defer wg.Done()
				f.Await()
			}()
		}
		wg.Wait()

		out.complete(StateSuccess, fn.Ok(futures))
	}()

	return out
}
