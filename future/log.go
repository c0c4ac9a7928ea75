package future

import (
	"github.com/btcsuite/btclog/v2"
)

// Subsystem is the logging subsystem tag for this package.
const Subsystem = "FUTR"

// log is a logger that is initialized as disabled. This means the package
// will not perform any logging by default until a logger is set by the
// caller.
var log = btclog.Disabled

// UseLogger uses a specified Logger to output package logging info.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// DisableLog disables all package log output.
func DisableLog() {
	UseLogger(btclog.Disabled)
}
