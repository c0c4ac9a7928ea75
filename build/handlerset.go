package build

import (
	"context"
	"log/slog"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
)

// HandlerSet is a btclog.Handler that fans every record out to a set of
// underlying handlers. This is what enables dual-stream logging: one handler
// writing to the console and another to a rotating log file, both fed from a
// single logger.
type HandlerSet struct {
	level btclogv1.Level
	set   []btclog.Handler
}

// A compile time check to ensure HandlerSet implements the btclog.Handler
// interface.
var _ btclog.Handler = (*HandlerSet)(nil)

// NewHandlerSet constructs a HandlerSet from the given handlers. The set
// starts at the Info level; use SetLevel to change it.
func NewHandlerSet(handlers ...btclog.Handler) *HandlerSet {
	h := &HandlerSet{
		set:   handlers,
		level: btclogv1.LevelInfo,
	}
	h.SetLevel(h.level)

	return h
}

// Enabled reports whether any record at the given level would be handled. A
// record is only considered enabled if every member handler enables it.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to all member handlers, stopping at the first
// error.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.set {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new handler set whose members carry the additional
// attributes.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &slogSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithAttrs(attrs)
	}

	return newSet
}

// WithGroup returns a new handler set whose members have the given group
// appended to their existing groups.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	newSet := &slogSet{set: make([]slog.Handler, len(h.set))}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithGroup(name)
	}

	return newSet
}

// SubSystem returns a copy of the set tagged with the given sub-system.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclog.Handler {
	newSet := &HandlerSet{
		level: h.level,
		set:   make([]btclog.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.SubSystem(tag)
	}

	return newSet
}

// SetLevel changes the logging level on all member handlers.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclogv1.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level returns the current logging level of the set.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclogv1.Level {
	return h.level
}

// WithPrefix returns a copy of the set with the given string prefixed to
// each log message.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclog.Handler {
	newSet := &HandlerSet{
		level: h.level,
		set:   make([]btclog.Handler, len(h.set)),
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithPrefix(prefix)
	}

	return newSet
}

// slogSet is a plain slog.Handler fan-out. It backs HandlerSet's WithGroup
// and WithAttrs methods, which produce slog.Handlers rather than
// btclog.Handlers.
type slogSet struct {
	set []slog.Handler
}

// Enabled reports whether every member handler enables the given level.
//
// NOTE: this is part of the slog.Handler interface.
func (r *slogSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range r.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to all member handlers.
//
// NOTE: this is part of the slog.Handler interface.
func (r *slogSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range r.set {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new set whose members carry the additional attributes.
//
// NOTE: this is part of the slog.Handler interface.
func (r *slogSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &slogSet{set: make([]slog.Handler, len(r.set))}
	for i, handler := range r.set {
		newSet.set[i] = handler.WithAttrs(attrs)
	}

	return newSet
}

// WithGroup returns a new set whose members have the given group appended.
//
// NOTE: this is part of the slog.Handler interface.
func (r *slogSet) WithGroup(name string) slog.Handler {
	newSet := &slogSet{set: make([]slog.Handler, len(r.set))}
	for i, handler := range r.set {
		newSet.set[i] = handler.WithGroup(name)
	}

	return newSet
}
