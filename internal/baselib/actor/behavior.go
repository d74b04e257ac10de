package actor

import (
	"context"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// FunctionBehavior adapts a plain function to the ActorBehavior interface.
// This is useful for small, stateless actors such as the dead letter office.
type FunctionBehavior[M Message, R any] struct {
	receive func(ctx context.Context, msg M) fn.Result[R]
}

// NewFunctionBehavior wraps the given function as an ActorBehavior.
func NewFunctionBehavior[M Message, R any](
	receive func(ctx context.Context, msg M) fn.Result[R],
) *FunctionBehavior[M, R] {

	return &FunctionBehavior[M, R]{receive: receive}
}

// Receive implements ActorBehavior by delegating to the wrapped function.
func (b *FunctionBehavior[M, R]) Receive(ctx context.Context,
	msg M) fn.Result[R] {

	return b.receive(ctx, msg)
}

// Compile-time interface check.
var _ ActorBehavior[Message, any] = (*FunctionBehavior[Message, any])(nil)
