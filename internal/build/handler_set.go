// Package build assembles the daemon's logging backends. Console output, an
// optional log file, and the backend log forwarder all hang off a single
// fan-out handler so every subsystem logger writes to all sinks at once.
package build

import (
	"context"
	"errors"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// multiHandler fans every log record out to a set of underlying
// btclog handlers. It satisfies btclog.Handler itself, so subsystem
// tags and level changes propagate to every sink.
type multiHandler struct {
	level btclog.Level
	sinks []btclogv2.Handler
}

// newMultiHandler groups the given sinks behind a single handler. The
// initial level is Info until SetLevel is called.
func newMultiHandler(sinks ...btclogv2.Handler) *multiHandler {
	m := &multiHandler{sinks: sinks}
	m.SetLevel(btclog.LevelInfo)

	return m
}

// Enabled reports whether every sink handles records at the given level.
func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range m.sinks {
		if !s.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle dispatches the record to every sink. All sinks see the record
// even if an earlier one fails.
func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Handle(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// WithAttrs returns a handler whose sinks all carry the extra attributes.
func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.sinks))
	for i, s := range m.sinks {
		next[i] = s.WithAttrs(attrs)
	}

	return &slogFanOut{sinks: next}
}

// WithGroup returns a handler whose sinks all carry the extra group.
func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.sinks))
	for i, s := range m.sinks {
		next[i] = s.WithGroup(name)
	}

	return &slogFanOut{sinks: next}
}

// SubSystem returns a copy of the handler tagged with the given
// subsystem on every sink.
func (m *multiHandler) SubSystem(tag string) btclogv2.Handler {
	next := &multiHandler{
		level: m.level,
		sinks: make([]btclogv2.Handler, len(m.sinks)),
	}
	for i, s := range m.sinks {
		next.sinks[i] = s.SubSystem(tag)
	}

	return next
}

// WithPrefix returns a copy of the handler that prefixes every message
// on every sink.
func (m *multiHandler) WithPrefix(prefix string) btclogv2.Handler {
	next := &multiHandler{
		level: m.level,
		sinks: make([]btclogv2.Handler, len(m.sinks)),
	}
	for i, s := range m.sinks {
		next.sinks[i] = s.WithPrefix(prefix)
	}

	return next
}

// SetLevel changes the logging level on every sink.
func (m *multiHandler) SetLevel(level btclog.Level) {
	for _, s := range m.sinks {
		s.SetLevel(level)
	}
	m.level = level
}

// Level returns the current logging level.
func (m *multiHandler) Level() btclog.Level {
	return m.level
}

var _ btclogv2.Handler = (*multiHandler)(nil)

// slogFanOut is the plain slog counterpart of multiHandler. WithAttrs and
// WithGroup on the sinks return slog.Handlers, which lose the btclog
// surface, so the fan-out continues at the slog level from there on.
type slogFanOut struct {
	sinks []slog.Handler
}

func (f *slogFanOut) Enabled(ctx context.Context, level slog.Level) bool {
	for _, s := range f.sinks {
		if !s.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

func (f *slogFanOut) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Handle(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (f *slogFanOut) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.sinks))
	for i, s := range f.sinks {
		next[i] = s.WithAttrs(attrs)
	}

	return &slogFanOut{sinks: next}
}

func (f *slogFanOut) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.sinks))
	for i, s := range f.sinks {
		next[i] = s.WithGroup(name)
	}

	return &slogFanOut{sinks: next}
}

var _ slog.Handler = (*slogFanOut)(nil)
