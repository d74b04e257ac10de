package actor

import (
	"context"
	"iter"
	"sync"
	"sync/atomic"
)

// ChannelMailbox is a Mailbox implementation backed by a Go channel. It
// provides thread-safe send and receive operations with support for context
// cancellation.
type ChannelMailbox[M Message, R any] struct {
	// ch is the underlying channel used to store envelopes.
	ch chan envelope[M, R]

	// closed indicates whether the mailbox has been closed. Uses atomic
	// operations for lock-free reads.
	closed atomic.Bool

	// mu protects send operations to prevent sending to a closed channel.
	mu sync.RWMutex

	// closeOnce ensures Close() is executed exactly once.
	closeOnce sync.Once

	// actorCtx is the context governing the actor's lifecycle. When this
	// context is cancelled, receive operations will terminate.
	actorCtx context.Context
}

// NewChannelMailbox creates a new channel-based mailbox with the given
// capacity and actor context. If capacity is 0 or negative, it defaults to 1
// to ensure the mailbox is buffered.
func NewChannelMailbox[M Message, R any](
	actorCtx context.Context, capacity int,
) *ChannelMailbox[M, R] {
	if capacity <= 0 {
		capacity = 1
	}

	return &ChannelMailbox[M, R]{
		ch:       make(chan envelope[M, R], capacity),
		actorCtx: actorCtx,
	}
}

// Send attempts to send an envelope to the mailbox. It blocks until either
// the envelope is accepted, the caller's context is cancelled, or the actor's
// context is cancelled. Returns true if the envelope was successfully sent.
func (m *ChannelMailbox[M, R]) Send(ctx context.Context,
	env envelope[M, R],
) bool {
	// Fast-path rejection when either context is already cancelled. The
	// select below still handles cancellation after this check.
	if ctx.Err() != nil {
		return false
	}
	if m.actorCtx.Err() != nil {
		return false
	}

	// Hold the read lock for the entire send to prevent a
	// send-on-closed-channel panic: Close() must acquire the write lock
	// before closing the channel, and cannot do so while any read lock is
	// held.
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		log.TraceS(ctx, "Mailbox send succeeded",
			"msg_type", env.message.MessageType(),
			"queue_len", len(m.ch))

		return true

	case <-ctx.Done():
		return false

	case <-m.actorCtx.Done():
		return false
	}
}

// TrySend attempts to send an envelope to the mailbox without blocking. It
// returns true if the envelope was successfully sent, false if the mailbox is
// full, closed, or the actor has been terminated.
func (m *ChannelMailbox[M, R]) TrySend(env envelope[M, R]) bool {
	if m.actorCtx.Err() != nil {
		return false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed.Load() {
		return false
	}

	select {
	case m.ch <- env:
		return true
	default:
		return false
	}
}

// Receive returns an iterator over envelopes in the mailbox. The iterator
// will yield envelopes as they arrive and will stop when the provided context
// is cancelled or when the mailbox is closed and drained.
//
// Context cancellation is checked before each receive attempt so shutdown is
// deterministic rather than racing the select between a ready channel and a
// cancelled context.
func (m *ChannelMailbox[M, R]) Receive(
	ctx context.Context,
) iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		for {
			if ctx.Err() != nil {
				return
			}

			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}

				if !yield(env) {
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}
}

// Close closes the mailbox, preventing any further sends. This method is safe
// to call multiple times; only the first call will have an effect.
func (m *ChannelMailbox[M, R]) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		log.DebugS(m.actorCtx, "Mailbox closing",
			"remaining_messages", len(m.ch))

		m.closed.Store(true)
		close(m.ch)
	})
}

// IsClosed returns true if the mailbox has been closed.
func (m *ChannelMailbox[M, R]) IsClosed() bool {
	return m.closed.Load()
}

// Drain returns an iterator over any remaining envelopes in the mailbox. This
// should only be called after Close() has been invoked; if the mailbox is not
// closed the iterator returns immediately.
func (m *ChannelMailbox[M, R]) Drain() iter.Seq[envelope[M, R]] {
	return func(yield func(envelope[M, R]) bool) {
		if !m.IsClosed() {
			return
		}

		// Non-blocking receives so draining an empty channel cannot
		// hang.
		for {
			select {
			case env, ok := <-m.ch:
				if !ok {
					return
				}

				if !yield(env) {
					return
				}

			default:
				return
			}
		}
	}
}
