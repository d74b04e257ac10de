package actor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// newTestEnvelope wraps an echoRequest in a tell envelope.
func newTestEnvelope(value string) envelope[echoRequest, string] {
	return envelope[echoRequest, string]{
		message:   echoRequest{Value: value},
		callerCtx: context.Background(),
	}
}

// TestMailboxSendReceive verifies basic FIFO operation of the channel
// mailbox.
func TestMailboxSendReceive(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := NewChannelMailbox[echoRequest, string](ctx, 8)

	for _, v := range []string{"one", "two", "three"} {
		require.True(t, mb.Send(ctx, newTestEnvelope(v)))
	}

	var got []string
	recvCtx, recvCancel := context.WithTimeout(ctx, time.Second)
	defer recvCancel()

	for env := range mb.Receive(recvCtx) {
		got = append(got, env.message.Value)
		if len(got) == 3 {
			break
		}
	}

	require.Equal(t, []string{"one", "two", "three"}, got)
}

// TestMailboxTrySendFull verifies that TrySend does not block when the
// mailbox is at capacity.
func TestMailboxTrySendFull(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := NewChannelMailbox[echoRequest, string](ctx, 1)

	require.True(t, mb.TrySend(newTestEnvelope("fits")))
	require.False(t, mb.TrySend(newTestEnvelope("overflow")))
}

// TestMailboxSendAfterClose verifies that sends fail after Close and that
// Drain yields the messages that were already enqueued.
func TestMailboxSendAfterClose(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := NewChannelMailbox[echoRequest, string](ctx, 4)
	require.True(t, mb.Send(ctx, newTestEnvelope("queued")))

	mb.Close()
	require.True(t, mb.IsClosed())
	require.False(t, mb.Send(ctx, newTestEnvelope("rejected")))
	require.False(t, mb.TrySend(newTestEnvelope("rejected")))

	// Close is idempotent.
	mb.Close()

	var drained []string
	for env := range mb.Drain() {
		drained = append(drained, env.message.Value)
	}
	require.Equal(t, []string{"queued"}, drained)
}

// TestMailboxSendActorContextCancelled verifies that sends fail once the
// actor's lifecycle context is cancelled.
func TestMailboxSendActorContextCancelled(t *testing.T) {
	t.Parallel()

	actorCtx, actorCancel := context.WithCancel(context.Background())
	mb := NewChannelMailbox[echoRequest, string](actorCtx, 4)

	actorCancel()

	require.False(t, mb.Send(context.Background(), newTestEnvelope("late")))
}

// TestMailboxReceiveStopsOnCancel verifies that the receive iterator
// terminates when the receive context is cancelled.
func TestMailboxReceiveStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := NewChannelMailbox[echoRequest, string](ctx, 4)

	recvCtx, recvCancel := context.WithCancel(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range mb.Receive(recvCtx) {
		}
	}()

	recvCancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receive iterator did not stop on cancellation")
	}
}
