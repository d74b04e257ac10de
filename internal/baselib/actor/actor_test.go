package actor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

// echoRequest is a simple request message used by the tests below.
type echoRequest struct {
	BaseMessage

	Value string
}

// MessageType implements Message.
func (echoRequest) MessageType() string { return "echoRequest" }

// echoBehavior responds with the request value and counts invocations.
type echoBehavior struct {
	calls atomic.Int64
}

// Receive implements ActorBehavior.
func (b *echoBehavior) Receive(_ context.Context,
	msg echoRequest) fn.Result[string] {

	b.calls.Add(1)
	return fn.Ok(msg.Value)
}

// TestActorAskRoundTrip verifies that an Ask delivers the message to the
// behavior and completes the future with its response.
func TestActorAskRoundTrip(t *testing.T) {
	t.Parallel()

	behavior := &echoBehavior{}
	a := NewActor(ActorConfig[echoRequest, string]{
		ID:          "echo",
		Behavior:    behavior,
		MailboxSize: 4,
	})
	a.Start()
	defer a.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	result := a.Ref().Ask(ctx, echoRequest{Value: "ping"}).Await(ctx)
	value, err := result.Unpack()
	require.NoError(t, err)
	require.Equal(t, "ping", value)
	require.EqualValues(t, 1, behavior.calls.Load())
}

// TestActorTellFireAndForget verifies that Tell delivers asynchronously
// without a response.
func TestActorTellFireAndForget(t *testing.T) {
	t.Parallel()

	behavior := &echoBehavior{}
	a := NewActor(ActorConfig[echoRequest, string]{
		ID:          "echo-tell",
		Behavior:    behavior,
		MailboxSize: 4,
	})
	a.Start()
	defer a.Stop()

	a.TellRef().Tell(context.Background(), echoRequest{Value: "fire"})

	require.Eventually(t, func() bool {
		return behavior.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}

// TestActorAskAfterStop verifies that asking a stopped actor fails with
// ErrActorTerminated instead of blocking or panicking.
func TestActorAskAfterStop(t *testing.T) {
	t.Parallel()

	a := NewActor(ActorConfig[echoRequest, string]{
		ID:       "stopped",
		Behavior: &echoBehavior{},
	})
	a.Start()
	a.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	// The stop is asynchronous; eventually every ask must fail
	// terminally.
	require.Eventually(t, func() bool {
		_, err := a.Ref().Ask(
			ctx, echoRequest{Value: "late"},
		).Await(ctx).Unpack()
		return errors.Is(err, ErrActorTerminated)
	}, time.Second, 10*time.Millisecond)
}

// TestSystemSpawnAndDiscover verifies service key registration and discovery
// through the receptionist.
func TestSystemSpawnAndDiscover(t *testing.T) {
	t.Parallel()

	system := NewActorSystem()
	defer system.Shutdown(context.Background())

	key := NewServiceKey[echoRequest, string]("echo-service")
	spawned := key.Spawn(system, "echo-1", &echoBehavior{})
	require.NotNil(t, spawned)

	refs := FindInReceptionist(system.Receptionist(), key)
	require.Len(t, refs, 1)
	require.Equal(t, "echo-1", refs[0].ID())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	value, err := refs[0].Ask(
		ctx, echoRequest{Value: "found"},
	).Await(ctx).Unpack()
	require.NoError(t, err)
	require.Equal(t, "found", value)
}

// TestSystemShutdownCompletes verifies that shutdown terminates all actor
// goroutines within the context deadline.
func TestSystemShutdownCompletes(t *testing.T) {
	t.Parallel()

	system := NewActorSystem()

	key := NewServiceKey[echoRequest, string]("shutdown-echo")
	for _, id := range []string{"a", "b", "c"} {
		key.Spawn(system, id, &echoBehavior{})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, system.Shutdown(ctx))
}

// TestReceptionistTypeMismatch verifies that re-registering a service key
// name with different types is rejected.
func TestReceptionistTypeMismatch(t *testing.T) {
	t.Parallel()

	r := newReceptionist()

	stringKey := NewServiceKey[echoRequest, string]("conflicting")
	intKey := NewServiceKey[echoRequest, int]("conflicting")

	a := NewActor(ActorConfig[echoRequest, string]{
		ID: "first", Behavior: &echoBehavior{},
	})
	defer a.Stop()

	require.NoError(t, RegisterWithReceptionist(r, stringKey, a.Ref()))

	b := NewActor(ActorConfig[echoRequest, int]{
		ID: "second",
		Behavior: NewFunctionBehavior(
			func(context.Context, echoRequest) fn.Result[int] {
				return fn.Ok(0)
			},
		),
	})
	defer b.Stop()

	err := RegisterWithReceptionist(r, intKey, b.Ref())
	require.ErrorIs(t, err, ErrServiceKeyTypeMismatch)
}

// TestPromiseThenApply verifies transformation chaining on futures.
func TestPromiseThenApply(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	p := NewPromise[string]()
	doubled := p.Future().ThenApply(ctx, func(s string) string {
		return s + s
	})

	require.True(t, p.Complete(fn.Ok("ab")))
	require.False(t, p.Complete(fn.Ok("ignored")))

	value, err := doubled.Await(ctx).Unpack()
	require.NoError(t, err)
	require.Equal(t, "abab", value)
}

// TestPromiseAwaitCancellation verifies that awaiting an incomplete promise
// respects context cancellation.
func TestPromiseAwaitCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(
		context.Background(), 20*time.Millisecond,
	)
	defer cancel()

	p := NewPromise[string]()
	_, err := p.Future().Await(ctx).Unpack()
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

// TestMapInputRefTransforms verifies that MapInputRef forwards transformed
// messages to the target actor.
func TestMapInputRefTransforms(t *testing.T) {
	t.Parallel()

	behavior := &echoBehavior{}
	a := NewActor(ActorConfig[echoRequest, string]{
		ID:          "mapped",
		Behavior:    behavior,
		MailboxSize: 4,
	})
	a.Start()
	defer a.Stop()

	mapped := NewMapInputRef(
		a.TellRef(),
		func(in echoRequest) echoRequest {
			return echoRequest{Value: "mapped:" + in.Value}
		},
	)
	require.Contains(t, mapped.ID(), "mapped")

	mapped.Tell(context.Background(), echoRequest{Value: "x"})

	require.Eventually(t, func() bool {
		return behavior.calls.Load() == 1
	}, time.Second, 10*time.Millisecond)
}
