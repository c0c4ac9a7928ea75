// Package singleflight coalesces concurrent calls for the same key into a
// single execution whose result every caller shares.
//
// A Group is generic over its result type, so two callers racing on one key
// always expect the same type; mixing result types for a key is rejected at
// compile time rather than at run time.
package singleflight

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/roasbeef/baselib/future"
)

// call tracks one in-flight execution and the waiters piled up behind it.
type call[V any] struct {
	// id identifies the execution in log output.
	id string

	// done is closed once val and err are populated.
	done chan struct{}

	// val and err hold the shared outcome. They are written exactly once
	// before done is closed and only read after it.
	val V
	err error

	// dups counts the callers that attached to this execution instead of
	// starting their own.
	dups int
}

// Group deduplicates function calls by key: for every key, at most one
// tracked execution runs at a time, and all concurrent callers for that key
// receive the same result. An execution dropped by Forget or Clear keeps
// running alongside any fresh one. The zero value is ready to use.
type Group[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

// Do runs fnc and returns its result, unless a call for the same key is
// already in flight, in which case it blocks until that call completes and
// returns the shared result instead. A panic inside fnc is contained and
// surfaced to every waiter as an error.
func (g *Group[V]) Do(key string, fnc func() (V, error)) (V, error) {
	g.mu.Lock()
	if g.calls == nil {
		g.calls = make(map[string]*call[V])
	}

	if c, ok := g.calls[key]; ok {
		c.dups++
		g.mu.Unlock()

		log.TraceS(context.Background(),
			"Joining in-flight call",
			"key", key, "call_id", c.id)

		<-c.done

		return c.val, c.err
	}

	c := &call[V]{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
	g.calls[key] = c
	g.mu.Unlock()

	log.TraceS(context.Background(), "Starting call",
		"key", key, "call_id", c.id)

	c.val, c.err = runContained(fnc)

	g.mu.Lock()
	// Only remove the entry if it still belongs to this call; Forget may
	// have dropped it already, and a successor call may own the key now.
	if cur, ok := g.calls[key]; ok && cur == c {
		delete(g.calls, key)
	}
	close(c.done)
	g.mu.Unlock()

	log.TraceS(context.Background(), "Call finished",
		"key", key, "call_id", c.id, "dups", c.dups)

	return c.val, c.err
}

// DoFuture is the asynchronous variant of Do: it returns immediately with a
// future that resolves with the (possibly shared) result.
func (g *Group[V]) DoFuture(key string,
	fnc func() (V, error)) *future.Future[V] {

	return future.Run(func() (V, error) {
		return g.Do(key, fnc)
	})
}

// runContained invokes fnc, converting a panic into an error so a panicking
// callee cannot strand the waiters attached to its call.
func runContained[V any](fnc func() (V, error)) (_ V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("singleflight call panic: %v", r)
		}
	}()

	return fnc()
}

// Forget drops the in-flight tracking for key. The running call, if any,
// keeps executing and delivers its result to the waiters already attached,
// but subsequent Do calls for the key start a fresh execution.
func (g *Group[V]) Forget(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.calls, key)
}

// InFlightCount returns a snapshot of the number of keys with a tracked
// in-flight call.
func (g *Group[V]) InFlightCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.calls)
}

// HasInFlight reports whether a call for key is currently tracked.
func (g *Group[V]) HasInFlight(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.calls[key]

	return ok
}

// Clear drops the tracking for every key, as if Forget had been called on
// each of them.
func (g *Group[V]) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	clear(g.calls)
}
