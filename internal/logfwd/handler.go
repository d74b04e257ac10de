// Package logfwd ships client-side warnings to the backend. A btclog
// handler captures records at Warn and above, suppresses repeats through a
// sliding dedup window, and forwards the survivors asynchronously. Forwarding
// is best effort: a failed or dropped record only ever costs observability.
package logfwd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/dedup"
)

// DefaultWindow is the repeat-suppression window.
const DefaultWindow = time.Minute

// defaultQueueSize bounds the records waiting to be forwarded. Overflow is
// dropped rather than blocking the logging call site.
const defaultQueueSize = 64

// forwardTimeout bounds each backend call.
const forwardTimeout = 10 * time.Second

// Forwarder posts one log record to the backend. Satisfied by api.Client.
type Forwarder interface {
	ForwardLog(ctx context.Context, entry api.LogEntry) error
}

// Config parameterizes a Handler.
type Config struct {
	Backend Forwarder

	// Window overrides DefaultWindow when positive.
	Window time.Duration

	// Cache overrides the internal dedup cache; tests inject a clocked
	// one.
	Cache *dedup.Cache

	// QueueSize overrides defaultQueueSize when positive.
	QueueSize int
}

// core is the state shared by a handler and all its SubSystem/WithPrefix
// clones: one cache, one queue, one forwarding goroutine.
type core struct {
	backend Forwarder
	cache   *dedup.Cache
	queue   chan api.LogEntry

	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Handler is a btclog handler that forwards Warn+ records. Clones produced
// by SubSystem and WithPrefix share the underlying queue and dedup cache.
type Handler struct {
	c *core

	subsystem string
	prefix    string
	level     btclog.Level
}

// NewHandler creates a forwarding handler and starts its worker goroutine.
// Call Close to stop it.
func NewHandler(cfg Config) *Handler {
	window := cfg.Window
	if window <= 0 {
		window = DefaultWindow
	}
	cache := cfg.Cache
	if cache == nil {
		cache = dedup.New(window)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	c := &core{
		backend: cfg.Backend,
		cache:   cache,
		queue:   make(chan api.LogEntry, queueSize),
		quit:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()

	return &Handler{c: c, level: btclog.LevelInfo}
}

// Close stops the forwarding goroutine. Records still queued are dropped.
func (h *Handler) Close() {
	h.c.closeOnce.Do(func() {
		close(h.c.quit)
	})
	h.c.wg.Wait()
}

func (c *core) run() {
	defer c.wg.Done()

	for {
		select {
		case entry := <-c.queue:
			ctx, cancel := context.WithTimeout(
				context.Background(), forwardTimeout,
			)
			// Failures are swallowed: there is nowhere sane to
			// log a log-forwarding error to.
			_ = c.backend.ForwardLog(ctx, entry)
			cancel()

		case <-c.quit:
			return
		}
	}
}

// Enabled reports whether the handler cares about the level. Only Warn and
// above are ever forwarded, regardless of the configured level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelWarn
}

// Handle captures one record, suppressing repeats of the same subsystem and
// message within the dedup window. The enqueue never blocks; when the queue
// is full the record is dropped.
//
// NOTE: this is part of the slog.Handler interface.
func (h *Handler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < slog.LevelWarn {
		return nil
	}

	key := h.subsystem + "|" + record.Message
	if h.c.cache.Seen(key) {
		return nil
	}

	entry := api.LogEntry{
		Level:     levelName(record.Level),
		Message:   h.prefix + record.Message,
		Subsystem: h.subsystem,
		LoggedAt:  record.Time,
	}

	select {
	case h.c.queue <- entry:
	default:
	}

	return nil
}

// WithAttrs returns the handler unchanged; forwarded records carry only the
// message, not structured attributes.
//
// NOTE: this is part of the slog.Handler interface.
func (h *Handler) WithAttrs([]slog.Attr) slog.Handler { return h }

// WithGroup returns the handler unchanged.
//
// NOTE: this is part of the slog.Handler interface.
func (h *Handler) WithGroup(string) slog.Handler { return h }

// SubSystem returns a clone tagged with the given subsystem, sharing the
// queue and dedup cache.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *Handler) SubSystem(tag string) btclogv2.Handler {
	clone := *h
	clone.subsystem = tag

	return &clone
}

// WithPrefix returns a clone that prefixes forwarded messages.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *Handler) WithPrefix(prefix string) btclogv2.Handler {
	clone := *h
	clone.prefix = h.prefix + prefix

	return &clone
}

// SetLevel records the level for the btclog contract. The capture floor
// stays at Warn either way.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *Handler) SetLevel(level btclog.Level) {
	h.level = level
}

// Level returns the recorded level.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *Handler) Level() btclog.Level {
	return h.level
}

var _ btclogv2.Handler = (*Handler)(nil)

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}
