// Package build provides the logging backend plumbing shared by the rest of
// the library: fan-out of log records to multiple handlers, per-subsystem
// sub-loggers, and size-bounded log file rotation.
//
// The library packages themselves never construct loggers. Each one exposes a
// UseLogger hook and stays silent (btclog.Disabled) until the embedding
// program wires a logger in, typically via SetupLoggers below.
package build

import (
	"io"
	"os"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
)

// LogConfig describes where log output should go. Console output is always
// enabled; file output is enabled when LogDir is non-empty.
type LogConfig struct {
	// LogDir is the directory log files are written to. Empty disables
	// file logging.
	LogDir string

	// Level is the verbosity applied to all handlers.
	Level btclogv1.Level

	// ConsoleOut overrides the console destination. Defaults to stderr.
	ConsoleOut io.Writer

	// Rotator holds the file rotation parameters. Zero values fall back
	// to the Default* constants, applied by RotatingLogWriter.Init.
	Rotator RotatorConfig
}

// SetupLoggers builds the combined handler described by cfg and returns the
// root logger along with the rotating writer (nil when file logging is
// disabled). The caller owns the writer and should Close it on shutdown.
func SetupLoggers(cfg LogConfig) (btclog.Logger, *RotatingLogWriter, error) {
	consoleOut := cfg.ConsoleOut
	if consoleOut == nil {
		consoleOut = os.Stderr
	}

	handlers := []btclog.Handler{
		btclog.NewDefaultHandler(consoleOut),
	}

	var writer *RotatingLogWriter
	if cfg.LogDir != "" {
		writer = NewRotatingLogWriter()

		rotCfg := cfg.Rotator
		rotCfg.LogDir = cfg.LogDir
		if err := writer.Init(&rotCfg); err != nil {
			return nil, nil, err
		}

		handlers = append(handlers, btclog.NewDefaultHandler(writer))
	}

	set := NewHandlerSet(handlers...)
	set.SetLevel(cfg.Level)

	return btclog.NewSLogger(set), writer, nil
}

// NewSubLogger derives a logger for a single library subsystem from the given
// root logger, tagging every record with the subsystem prefix. Passing the
// result to the subsystem's UseLogger enables its output:
//
//	root, _, _ := build.SetupLoggers(cfg)
//	chans.UseLogger(build.NewSubLogger(root, "CHAN"))
func NewSubLogger(root btclog.Logger, subsystem string) btclog.Logger {
	return root.WithPrefix(subsystem)
}
