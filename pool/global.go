package pool

import (
	"sync"
)

var (
	// globalMu guards the lazy construction of the process-wide pool.
	globalMu sync.Mutex

	// globalPool is the process-wide pool. Nil until first use.
	globalPool *Pool
)

// Global returns the process-wide worker pool, creating it on first use
// with the default CPU-count sizing. If the previous global pool was shut
// down, a fresh one is constructed in its place.
func Global() *Pool {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalPool == nil || globalPool.IsShutdown() {
		globalPool = WithDefault()
	}

	return globalPool
}
