package actor

import (
	"context"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// defaultCleanupTimeout bounds how long an actor's OnStop hook may run during
// shutdown before the system gives up waiting on it.
const defaultCleanupTimeout = 5 * time.Second

// mergeContexts creates a new context that cancels when either parent context
// cancels, enabling actors to respect both system shutdown and caller
// deadlines simultaneously. The shortest deadline between the two contexts is
// preserved. Callers must call the returned cancel function to release the
// monitoring goroutine once message processing completes.
func mergeContexts(ctx1, ctx2 context.Context) (context.Context,
	context.CancelFunc) {

	deadline1, hasDeadline1 := ctx1.Deadline()
	deadline2, hasDeadline2 := ctx2.Deadline()

	// Base the merged context on whichever parent carries the earliest
	// deadline.
	baseCtx := ctx1
	if hasDeadline2 {
		if !hasDeadline1 || deadline2.Before(deadline1) {
			baseCtx = ctx2
		}
	}

	mergedCtx, cancel := context.WithCancel(baseCtx)

	// Watch both parents and cancel the merged context when either one
	// cancels. The goroutine exits as soon as any cancellation is
	// detected.
	go func() {
		select {
		case <-ctx1.Done():
			cancel()
		case <-ctx2.Done():
			cancel()
		case <-mergedCtx.Done():
		}
	}()

	return mergedCtx, cancel
}

// ActorConfig holds the configuration parameters for creating a new Actor.
type ActorConfig[M Message, R any] struct {
	// ID is the unique identifier for the actor.
	ID string

	// Behavior defines how the actor responds to messages.
	Behavior ActorBehavior[M, R]

	// DLO is a reference to the dead letter office for this actor system.
	// If nil, undeliverable messages during shutdown are dropped.
	DLO ActorRef[Message, any]

	// MailboxSize defines the buffer capacity of the actor's mailbox.
	MailboxSize int

	// Wg is an optional WaitGroup for tracking actor lifecycle. If
	// non-nil, the actor will call Add(1) when starting and Done() when
	// its process loop exits. This enables deterministic shutdown.
	Wg *sync.WaitGroup

	// CleanupTimeout specifies the maximum duration for OnStop cleanup.
	// If None, defaultCleanupTimeout is used.
	CleanupTimeout fn.Option[time.Duration]
}

// envelope wraps a message with its associated promise and caller context. If
// the promise is nil, it signifies a "tell" operation (fire-and-forget). The
// callerCtx allows actors to respect request-scoped deadlines and
// cancellation.
type envelope[M Message, R any] struct {
	message   M
	promise   Promise[R]
	callerCtx context.Context
}

// Actor represents a concrete actor implementation. It encapsulates a
// behavior, manages its internal state implicitly through that behavior, and
// processes messages from its mailbox sequentially in its own goroutine.
type Actor[M Message, R any] struct {
	// id is the unique identifier for the actor.
	id string

	// behavior defines how the actor responds to messages.
	behavior ActorBehavior[M, R]

	// mailbox is the incoming message queue for the actor.
	mailbox Mailbox[M, R]

	// ctx is the context governing the actor's lifecycle.
	ctx context.Context

	// cancel is the function to cancel the actor's context.
	cancel context.CancelFunc

	// dlo is a reference to the dead letter office for this actor system.
	dlo ActorRef[Message, any]

	// wg is an optional WaitGroup for tracking this actor's lifecycle.
	wg *sync.WaitGroup

	// cleanupTimeout is the maximum duration for OnStop cleanup.
	cleanupTimeout time.Duration

	// startOnce ensures the actor's processing loop is started only once.
	startOnce sync.Once

	// stopOnce ensures the actor's processing loop is stopped only once.
	stopOnce sync.Once

	// ref is the cached ActorRef for this actor.
	ref ActorRef[M, R]
}

// NewActor creates a new actor instance with the given configuration. It
// initializes the actor's internal structures but does not start its message
// processing goroutine; Start must be called to begin processing messages.
func NewActor[M Message, R any](cfg ActorConfig[M, R]) *Actor[M, R] {
	ctx, cancel := context.WithCancel(context.Background())

	mailboxCapacity := cfg.MailboxSize
	if mailboxCapacity <= 0 {
		mailboxCapacity = 1
	}

	a := &Actor[M, R]{
		id:             cfg.ID,
		behavior:       cfg.Behavior,
		mailbox:        NewChannelMailbox[M, R](ctx, mailboxCapacity),
		ctx:            ctx,
		cancel:         cancel,
		dlo:            cfg.DLO,
		wg:             cfg.Wg,
		cleanupTimeout: cfg.CleanupTimeout.UnwrapOr(defaultCleanupTimeout),
	}

	// Create and cache the actor's own reference.
	a.ref = &actorRefImpl[M, R]{actor: a}

	return a
}

// Start initiates the actor's message processing loop in a new goroutine.
// Repeated calls are safe but have no effect. When a WaitGroup is configured,
// it is incremented here so the system can block on wg.Wait() to ensure all
// actor goroutines have fully exited before proceeding with cleanup.
func (a *Actor[M, R]) Start() {
	a.startOnce.Do(func() {
		log.DebugS(a.ctx, "Starting actor", "actor_id", a.id)

		if a.wg != nil {
			a.wg.Add(1)
		}
		go a.process()
	})
}

// process is the main event loop that drives actor message handling. The
// receive iterator stops automatically when the actor's context is cancelled
// during shutdown; remaining messages are drained to the DLO.
func (a *Actor[M, R]) process() {
	// The deferred Done runs even if the behavior panics, so the system
	// can still detect when all actors have terminated.
	if a.wg != nil {
		defer a.wg.Done()
	}

	for env := range a.mailbox.Receive(a.ctx) {
		// For Ask messages, merge the actor's context with the
		// caller's context so the behavior can detect both actor
		// shutdown and caller deadline expiration. Tell messages use
		// only the actor's context: once enqueued, a tell should not
		// be cancelled by the caller.
		var processCtx context.Context
		var cancel context.CancelFunc
		if env.promise != nil {
			processCtx, cancel = mergeContexts(a.ctx, env.callerCtx)
		} else {
			processCtx = a.ctx
			cancel = func() {}
		}

		log.TraceS(processCtx, "Actor processing message",
			"actor_id", a.id,
			"msg_type", env.message.MessageType(),
			"is_ask", env.promise != nil)

		result := a.behavior.Receive(processCtx, env.message)

		cancel()

		if env.promise != nil {
			env.promise.Complete(result)
		}
	}

	// The actor's context has been cancelled. Close the mailbox to
	// prevent new messages from being enqueued, then drain any remaining
	// messages to the DLO.
	a.mailbox.Close()

	drainedCount := 0
	for env := range a.mailbox.Drain() {
		drainedCount++

		if a.dlo != nil {
			a.dlo.Tell(context.Background(), env.message)
		}

		if env.promise != nil {
			env.promise.Complete(fn.Err[R](ErrActorTerminated))
		}
	}

	// Give the behavior a bounded chance to release external resources.
	if stoppable, ok := a.behavior.(Stoppable); ok {
		cleanupCtx, cancel := context.WithTimeout(
			context.Background(), a.cleanupTimeout,
		)
		defer cancel()

		if err := stoppable.OnStop(cleanupCtx); err != nil {
			log.WarnS(a.ctx, "Actor cleanup error during shutdown",
				err, "actor_id", a.id)
		}
	}

	log.DebugS(a.ctx, "Actor terminated",
		"actor_id", a.id,
		"drained_messages", drainedCount)
}

// Stop signals the actor to terminate its processing loop and shut down. The
// actor's goroutine will exit once it detects the context cancellation, then
// close the mailbox and drain remaining messages to the DLO.
func (a *Actor[M, R]) Stop() {
	a.stopOnce.Do(func() {
		a.cancel()
	})
}

// Ref returns an ActorRef for this actor. This allows clients to interact
// with the actor without direct access to the Actor struct itself.
func (a *Actor[M, R]) Ref() ActorRef[M, R] {
	return a.ref
}

// TellRef returns a TellOnlyRef for this actor, restricting callers to
// fire-and-forget message passing.
func (a *Actor[M, R]) TellRef() TellOnlyRef[M] {
	return a.ref
}

// actorRefImpl provides a concrete implementation of the ActorRef interface.
type actorRefImpl[M Message, R any] struct {
	actor *Actor[M, R]
}

// Tell sends a message without waiting for a response. If the context is
// cancelled before the message can be sent to the actor's mailbox, the
// message may be dropped.
func (ref *actorRefImpl[M, R]) Tell(ctx context.Context, msg M) {
	env := envelope[M, R]{
		message:   msg,
		promise:   nil,
		callerCtx: ctx,
	}
	ok := ref.actor.mailbox.Send(ctx, env)

	// Only route to the DLO when the failure was actor-side (termination
	// or mailbox closure). If the caller's context was cancelled, the
	// message is intentionally dropped.
	if !ok {
		if ctx.Err() == nil || ref.actor.ctx.Err() != nil {
			log.DebugS(ctx, "Tell failed, routing to DLO",
				"actor_id", ref.actor.id,
				"msg_type", msg.MessageType())

			ref.trySendToDLO(msg)
		}
	}
}

// Ask sends a message and returns a Future for the response. The Future will
// be completed with the actor's reply or an error if the operation fails.
func (ref *actorRefImpl[M, R]) Ask(ctx context.Context, msg M) Future[R] {
	promise := NewPromise[R]()

	// Primary guard against sending to a stopped actor.
	if ref.actor.ctx.Err() != nil {
		promise.Complete(fn.Err[R](ErrActorTerminated))
		return promise.Future()
	}

	env := envelope[M, R]{
		message:   msg,
		promise:   promise,
		callerCtx: ctx,
	}
	ok := ref.actor.mailbox.Send(ctx, env)

	if !ok {
		// Actor termination takes precedence over caller context
		// cancellation when picking the error.
		if ref.actor.ctx.Err() != nil {
			promise.Complete(fn.Err[R](ErrActorTerminated))
		} else {
			err := ctx.Err()
			if err == nil {
				// Send failed but neither context is done;
				// the mailbox must have been closed directly.
				err = ErrActorTerminated
			}

			promise.Complete(fn.Err[R](err))
		}
	}

	return promise.Future()
}

// trySendToDLO attempts to send the message to the actor's DLO if configured.
func (ref *actorRefImpl[M, R]) trySendToDLO(msg M) {
	if ref.actor.dlo != nil {
		// The original context might be done, so the DLO tell uses a
		// fresh background context.
		ref.actor.dlo.Tell(context.Background(), msg)
	}
}

// ID returns the unique identifier for this actor.
func (ref *actorRefImpl[M, R]) ID() string {
	return ref.actor.id
}
