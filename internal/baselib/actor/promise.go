package actor

import (
	"context"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// promise is the concrete Promise/Future implementation. Completion is
// signalled by closing the done channel; the result is written exactly once
// before the channel is closed, so readers that observe the close may read
// the result without further synchronization.
type promise[T any] struct {
	// done is closed once the result has been set.
	done chan struct{}

	// result holds the outcome of the computation. Only valid after done
	// has been closed.
	result fn.Result[T]

	// completeOnce guards the single write to result.
	completeOnce sync.Once
}

// NewPromise creates a new, incomplete promise.
func NewPromise[T any]() Promise[T] {
	return &promise[T]{
		done: make(chan struct{}),
	}
}

// Complete attempts to set the result of the future. It returns true if this
// call was the first to complete it, false otherwise.
func (p *promise[T]) Complete(result fn.Result[T]) bool {
	completed := false
	p.completeOnce.Do(func() {
		p.result = result
		close(p.done)
		completed = true
	})

	return completed
}

// Future returns the Future view of this promise.
func (p *promise[T]) Future() Future[T] {
	return p
}

// Await blocks until the result is available or the context is cancelled.
func (p *promise[T]) Await(ctx context.Context) fn.Result[T] {
	select {
	case <-p.done:
		return p.result

	case <-ctx.Done():
		return fn.Err[T](ctx.Err())
	}
}

// ThenApply returns a new future that completes with the transformed result
// of this future. Errors (including context cancellation while waiting) pass
// through untransformed.
func (p *promise[T]) ThenApply(ctx context.Context,
	apply func(T) T) Future[T] {

	next := NewPromise[T]()
	go func() {
		value, err := p.Await(ctx).Unpack()
		if err != nil {
			next.Complete(fn.Err[T](err))
			return
		}

		next.Complete(fn.Ok(apply(value)))
	}()

	return next.Future()
}

// OnComplete registers a callback invoked with the result once it is ready,
// or with the context's error if the context is cancelled first.
func (p *promise[T]) OnComplete(ctx context.Context,
	callback func(fn.Result[T])) {

	go func() {
		callback(p.Await(ctx))
	}()
}

// Compile-time interface checks.
var (
	_ Promise[any] = (*promise[any])(nil)
	_ Future[any]  = (*promise[any])(nil)
)
