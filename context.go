package worker

import (
	"context"
	"sync"
)

// Waiter is anything whose completion can be observed. *Promise[T] of any
// T satisfies it.
type Waiter interface {
	Done() <-chan struct{}
}

// Ctx is the per-invocation execution context. It extends the invocation's
// lifetime past the handler's return for background work registered with
// WaitUntil, and carries the abort signal the host raises when the client
// disconnects.
type Ctx struct {
	base   context.Context
	cancel context.CancelCauseFunc
	wg     sync.WaitGroup
}

// NewCtx builds an execution context derived from parent.
func NewCtx(parent context.Context) *Ctx {
	if parent == nil {
		parent = context.Background()
	}
	base, cancel := context.WithCancelCause(parent)
	return &Ctx{base: base, cancel: cancel}
}

// Context returns the invocation's context for use with blocking calls.
func (c *Ctx) Context() context.Context { return c.base }

// Done returns a channel closed when the invocation is aborted.
func (c *Ctx) Done() <-chan struct{} { return c.base.Done() }

// Aborted reports whether the invocation has been aborted.
func (c *Ctx) Aborted() bool {
	return c.base.Err() != nil
}

// Abort cancels the invocation. cause may be nil.
func (c *Ctx) Abort(cause error) {
	c.cancel(cause)
}

// WaitUntil keeps the invocation alive until w settles. The result, if any,
// is not observed here; pair with Promise.Discard when the outcome should
// still be logged.
func (c *Ctx) WaitUntil(w Waiter) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-w.Done()
	}()
}

// Wait blocks until every registered background task has settled or ctx is
// done. The host calls this after the handler returns, before tearing the
// invocation down.
func (c *Ctx) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
