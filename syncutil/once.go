package syncutil

import (
	"sync"
	"sync/atomic"
)

// Once runs a function at most once across all callers. Unlike sync.Once it
// also exposes whether the function has already run. The zero value is ready
// to use.
type Once struct {
	once sync.Once
	done atomic.Bool
}

// Do runs fn if and only if no Do call on this Once has run before. All
// other callers return without running their function, blocking until the
// winning call has returned.
func (o *Once) Do(fn func()) {
	o.once.Do(func() {
		// Mark done after fn completes so Done only reports true once
		// the winning call has finished.
		defer o.done.Store(true)

		fn()
	})
}

// Done reports whether the guarded function has already run to completion.
func (o *Once) Done() bool {
	return o.done.Load()
}
