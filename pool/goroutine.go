package pool

import (
	"bytes"
	"runtime"
	"strconv"
)

// curGoroutineID extracts the id of the calling goroutine from its stack
// header. It is used only to let Shutdown detect whether it is running on a
// pool worker, never for scheduling decisions.
func curGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)

	// The header has the fixed form "goroutine 123 [running]:".
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}

	id, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}

	return id
}
