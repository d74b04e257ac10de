package build

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// Subsystem tags used across the daemon and the CLI. Each package owning a
// logger registers under one of these so log levels can be tuned per
// subsystem at runtime.
const (
	// TagNTFR is the push delivery router.
	TagNTFR = "NTFR"

	// TagSTRM is the backend event stream consumer.
	TagSTRM = "STRM"

	// TagINBX is the reminder inbox service.
	TagINBX = "INBX"

	// TagACTR is the actor runtime.
	TagACTR = "ACTR"

	// TagWSRV is the websocket surface transport.
	TagWSRV = "WSRV"

	// TagODB is the local delivery database.
	TagODB = "ODB"

	// TagMAIN is the daemon entrypoint and its wiring.
	TagMAIN = "MAIN"
)

// LogManager owns the root fan-out handler and hands out tagged subsystem
// loggers. All loggers share the sinks passed at construction, so adding a
// file writer or the backend forwarder covers every subsystem at once.
type LogManager struct {
	root *multiHandler

	mu   sync.Mutex
	subs map[string]btclogv2.Handler
}

// NewLogManager creates a manager writing human-readable output to console,
// plus any extra sinks (rotating file writer, backend forwarder).
func NewLogManager(console io.Writer, extras ...btclogv2.Handler) *LogManager {
	sinks := make([]btclogv2.Handler, 0, len(extras)+1)
	sinks = append(sinks, btclogv2.NewDefaultHandler(console))
	sinks = append(sinks, extras...)

	return &LogManager{
		root: newMultiHandler(sinks...),
		subs: make(map[string]btclogv2.Handler),
	}
}

// GenSubLogger returns a logger tagged with the given subsystem. Calling it
// twice with the same tag reuses the underlying handler, so level changes
// stick across calls.
func (m *LogManager) GenSubLogger(tag string) btclogv2.Logger {
	m.mu.Lock()
	defer m.mu.Unlock()

	handler, ok := m.subs[tag]
	if !ok {
		handler = m.root.SubSystem(tag)
		m.subs[tag] = handler
	}

	return btclogv2.NewSLogger(handler)
}

// SetLogLevel sets the level for a single subsystem. The subsystem must have
// been created through GenSubLogger first.
func (m *LogManager) SetLogLevel(tag, levelStr string) error {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("unknown log level %q", levelStr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	handler, exists := m.subs[tag]
	if !exists {
		return fmt.Errorf("unknown log subsystem %q", tag)
	}
	handler.SetLevel(level)

	return nil
}

// SetLogLevels applies the same level to every registered subsystem.
func (m *LogManager) SetLogLevels(levelStr string) error {
	level, ok := btclog.LevelFromString(levelStr)
	if !ok {
		return fmt.Errorf("unknown log level %q", levelStr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.root.SetLevel(level)
	for _, handler := range m.subs {
		handler.SetLevel(level)
	}

	return nil
}

// Subsystems returns the sorted tags of all registered subsystems.
func (m *LogManager) Subsystems() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	tags := make([]string, 0, len(m.subs))
	for tag := range m.subs {
		tags = append(tags, tag)
	}
	sort.Strings(tags)

	return tags
}
