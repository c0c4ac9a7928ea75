// Package chans provides a typed channel primitive with explicit close
// semantics, plus the fan-in/fan-out/pipeline/select helpers commonly layered
// on top of it.
//
// A Channel wraps a native Go channel with a close protocol that makes
// misuse observable instead of fatal: sending on a closed Channel returns
// false (and logs a warning) rather than panicking, close is idempotent, and
// receives drain any buffered items before reporting closure through a
// two-valued receive.
package chans

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Channel is a typed FIFO with an optional bounded buffer. A capacity of
// zero yields a rendezvous channel: Send does not return until a receiver
// has taken the value.
//
// Thread safety: all methods may be called concurrently from any number of
// goroutines. Close may race with blocked senders and receivers; it wakes
// all of them.
type Channel[T any] struct {
	// ch carries the items. It is never closed directly; closure is
	// signalled through closeCh so that blocked senders can never trip a
	// send-on-closed-channel panic.
	ch chan T

	// closeCh is closed exactly once by Close to wake every blocked
	// sender and receiver.
	closeCh chan struct{}

	// closed indicates whether Close has been called. Uses atomic
	// operations for lock-free reads.
	closed atomic.Bool

	// closeOnce ensures the close signal fires exactly once.
	closeOnce sync.Once

	// capacity is the buffer size the channel was created with.
	capacity int
}

// New creates a channel with the given buffer capacity. A capacity of zero
// creates a rendezvous channel. It panics if capacity is negative.
func New[T any](capacity int) *Channel[T] {
	if capacity < 0 {
		panic(fmt.Sprintf("channel capacity must be >= 0, got %d",
			capacity))
	}

	return &Channel[T]{
		ch:       make(chan T, capacity),
		closeCh:  make(chan struct{}),
		capacity: capacity,
	}
}

// Send delivers v, blocking until the channel can accept it: buffer space
// for a buffered channel, a waiting receiver for a rendezvous channel. It
// returns false without delivering if the channel is closed before the value
// is accepted. Sending on an already closed channel logs a warning and
// returns false.
func (c *Channel[T]) Send(v T) bool {
	return c.SendCtx(context.Background(), v)
}

// SendCtx is Send with a context bound on the wait. It returns false when
// the context is done before the value is accepted.
func (c *Channel[T]) SendCtx(ctx context.Context, v T) bool {
	if c.closed.Load() {
		log.WarnS(ctx, "Send on closed channel, dropping value", nil,
			"capacity", c.capacity)

		return false
	}
	if ctx.Err() != nil {
		return false
	}

	select {
	case c.ch <- v:
		return true

	case <-c.closeCh:
		log.WarnS(ctx, "Channel closed while send was blocked, "+
			"dropping value", nil, "capacity", c.capacity)

		return false

	case <-ctx.Done():
		return false
	}
}

// TrySend delivers v only if doing so would not block. It returns false when
// the channel is closed or full (or, for a rendezvous channel, when no
// receiver is ready).
func (c *Channel[T]) TrySend(v T) bool {
	if c.closed.Load() {
		return false
	}

	select {
	case c.ch <- v:
		return true
	default:
		return false
	}
}

// Receive blocks until an item is available or the channel is closed and
// drained. The second return value is false exactly when the channel is
// closed and no buffered items remain, mirroring the native receive idiom.
func (c *Channel[T]) Receive() (T, bool) {
	return c.ReceiveCtx(context.Background())
}

// ReceiveCtx is Receive with a context bound on the wait. The second return
// value is also false when the context is done before an item arrives.
func (c *Channel[T]) ReceiveCtx(ctx context.Context) (T, bool) {
	var zero T

	if ctx.Err() != nil {
		return zero, false
	}

	select {
	case v := <-c.ch:
		return v, true

	case <-c.closeCh:
		// The channel is closed, but items enqueued before the close
		// are still drainable. Prefer them over reporting closure.
		select {
		case v := <-c.ch:
			return v, true
		default:
			return zero, false
		}

	case <-ctx.Done():
		return zero, false
	}
}

// TryReceive returns an item if one is immediately available. The second
// return value is false when the receive would block or the channel is
// closed and empty.
func (c *Channel[T]) TryReceive() (T, bool) {
	var zero T

	select {
	case v := <-c.ch:
		return v, true
	default:
		return zero, false
	}
}

// Close marks the channel closed and wakes every blocked sender and
// receiver. Items already buffered remain receivable. Close is idempotent;
// calls after the first are no-ops.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)

		log.DebugS(context.Background(), "Channel closing",
			"remaining_items", len(c.ch),
			"capacity", c.capacity)

		close(c.closeCh)
	})
}

// Len returns a snapshot of the number of buffered items. For a rendezvous
// channel this is always zero; the value only exists inside the handoff.
func (c *Channel[T]) Len() int {
	return len(c.ch)
}

// Cap returns the buffer capacity the channel was created with. Zero means
// rendezvous.
func (c *Channel[T]) Cap() int {
	return c.capacity
}

// IsClosed reports whether Close has been called.
func (c *Channel[T]) IsClosed() bool {
	return c.closed.Load()
}

// Done returns a channel that is closed once this Channel has been closed.
// It allows callers to select on closure alongside other events.
func (c *Channel[T]) Done() <-chan struct{} {
	return c.closeCh
}
