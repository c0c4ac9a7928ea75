// Package syncutil provides small synchronization primitives layered on top
// of the standard runtime: scoped mutex helpers, a one-shot Once with an
// observable done flag, a counting semaphore, a count-down latch and a
// wait group with a bounded wait.
package syncutil

import (
	"sync"
)

// Mutex is a mutual exclusion lock with a scoped locking helper. The zero
// value is an unlocked mutex.
type Mutex struct {
	mu sync.Mutex
}

// Lock acquires the lock, blocking until it is available.
func (m *Mutex) Lock() {
	m.mu.Lock()
}

// Unlock releases the lock. Unlocking an unheld mutex is a fatal runtime
// error.
func (m *Mutex) Unlock() {
	m.mu.Unlock()
}

// TryLock attempts to acquire the lock without blocking and reports whether
// it succeeded.
func (m *Mutex) TryLock() bool {
	return m.mu.TryLock()
}

// WithLock runs fn while holding the lock. The lock is released on every
// exit path, including a panic inside fn.
func (m *Mutex) WithLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn()
}

// RWMutex is a reader/writer mutual exclusion lock with scoped locking
// helpers. Any number of readers may hold the lock concurrently; a writer is
// exclusive. The zero value is an unlocked mutex.
type RWMutex struct {
	mu sync.RWMutex
}

// Lock acquires the write lock, blocking until no readers or writers hold
// the lock.
func (m *RWMutex) Lock() {
	m.mu.Lock()
}

// Unlock releases the write lock.
func (m *RWMutex) Unlock() {
	m.mu.Unlock()
}

// TryLock attempts to acquire the write lock without blocking.
func (m *RWMutex) TryLock() bool {
	return m.mu.TryLock()
}

// RLock acquires a read lock, blocking while a writer holds the lock.
func (m *RWMutex) RLock() {
	m.mu.RLock()
}

// RUnlock releases a read lock.
func (m *RWMutex) RUnlock() {
	m.mu.RUnlock()
}

// TryRLock attempts to acquire a read lock without blocking.
func (m *RWMutex) TryRLock() bool {
	return m.mu.TryRLock()
}

// WithLock runs fn while holding the write lock, releasing it on all exit
// paths.
func (m *RWMutex) WithLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fn()
}

// WithRLock runs fn while holding a read lock, releasing it on all exit
// paths.
func (m *RWMutex) WithRLock(fn func()) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	fn()
}
