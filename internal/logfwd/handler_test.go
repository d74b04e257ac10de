package logfwd

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	btclogv2 "github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"

	"github.com/iltoga/BusinessSuite-sub003/internal/api"
	"github.com/iltoga/BusinessSuite-sub003/internal/dedup"
)

type fakeForwarder struct {
	mu      sync.Mutex
	entries []api.LogEntry
}

func (f *fakeForwarder) ForwardLog(_ context.Context,
	entry api.LogEntry) error {

	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)

	return nil
}

func (f *fakeForwarder) all() []api.LogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]api.LogEntry(nil), f.entries...)
}

// TestHandlerForwardsWarnAndAbove asserts warnings and errors are shipped
// while info and below never leave the process.
func TestHandlerForwardsWarnAndAbove(t *testing.T) {
	t.Parallel()

	backend := &fakeForwarder{}
	h := NewHandler(Config{Backend: backend})
	defer h.Close()

	log := btclogv2.NewSLogger(h.SubSystem("STRM"))
	ctx := context.Background()

	log.InfoS(ctx, "connected")
	log.WarnS(ctx, "stream flapping", nil)
	log.ErrorS(ctx, "stream lost", nil)

	require.Eventually(t, func() bool {
		return len(backend.all()) == 2
	}, time.Second, 10*time.Millisecond)

	entries := backend.all()
	require.Equal(t, "warn", entries[0].Level)
	require.Contains(t, entries[0].Message, "stream flapping")
	require.Equal(t, "STRM", entries[0].Subsystem)
	require.Equal(t, "error", entries[1].Level)

	// Nothing else trickles in.
	time.Sleep(50 * time.Millisecond)
	require.Len(t, backend.all(), 2)
}

// TestHandlerSuppressesRepeats asserts the dedup window drops repeats and
// reopens after it slides past.
func TestHandlerSuppressesRepeats(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	clock := func() time.Time { return now }

	backend := &fakeForwarder{}
	h := NewHandler(Config{
		Backend: backend,
		Cache:   dedup.NewWithClock(time.Minute, clock),
	})
	defer h.Close()

	log := btclogv2.NewSLogger(h.SubSystem("NTFR"))
	ctx := context.Background()

	log.WarnS(ctx, "ack failed", nil)
	log.WarnS(ctx, "ack failed", nil)
	log.WarnS(ctx, "ack failed", nil)

	require.Eventually(t, func() bool {
		return len(backend.all()) == 1
	}, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Len(t, backend.all(), 1)

	// Once the window has fully slid past, the message goes out again.
	now = now.Add(2 * time.Minute)
	log.WarnS(ctx, "ack failed", nil)

	require.Eventually(t, func() bool {
		return len(backend.all()) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHandlerSubsystemsDedupIndependently asserts the same message from two
// subsystems is two distinct records.
func TestHandlerSubsystemsDedupIndependently(t *testing.T) {
	t.Parallel()

	backend := &fakeForwarder{}
	h := NewHandler(Config{Backend: backend})
	defer h.Close()

	ctx := context.Background()
	btclogv2.NewSLogger(h.SubSystem("STRM")).WarnS(ctx, "timeout", nil)
	btclogv2.NewSLogger(h.SubSystem("INBX")).WarnS(ctx, "timeout", nil)

	require.Eventually(t, func() bool {
		return len(backend.all()) == 2
	}, time.Second, 10*time.Millisecond)
}

// TestHandlerQueueOverflowDrops asserts a full queue drops records instead
// of blocking the logging call site.
func TestHandlerQueueOverflowDrops(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	backend := &blockingForwarder{release: block}
	h := NewHandler(Config{Backend: backend, QueueSize: 1})
	defer h.Close()

	log := btclogv2.NewSLogger(h.SubSystem("ODB"))
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			log.WarnS(ctx, fmt.Sprintf("outbox stall %d", i),
				nil)
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("logging blocked on full forward queue")
	}
	close(block)
}

type blockingForwarder struct {
	release chan struct{}
}

func (b *blockingForwarder) ForwardLog(ctx context.Context,
	_ api.LogEntry) error {

	select {
	case <-b.release:
	case <-ctx.Done():
	}

	return nil
}
