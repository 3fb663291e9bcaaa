package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Void is the result type of promises that settle without a value.
type Void = struct{}

type promiseState int32

const (
	statePending promiseState = iota
	stateResolved
	stateRejected
)

// Promise adapts a host single-shot completion to an awaitable value.
//
// The host contract is that exactly one of the two callback slots is invoked
// exactly once, asynchronously, from the host's own event loop turn. The
// bridge tolerates hosts that misbehave: the first callback wins, and any
// later invocation is discarded with a logged anomaly rather than delivered
// twice. A resolution arriving after every waiter has given up is stored and
// silently dropped; the completion stays allocated until the host calls
// back, since the host offers no way to cancel a pending callback.
type Promise[T any] struct {
	mu    sync.Mutex
	state promiseState
	value T
	err   error
	done  chan struct{}
}

// NewPromise invokes register once, eagerly, with the bridge's resolve and
// reject slots. register typically schedules a host call whose completion
// fires one of the slots from the host loop.
func NewPromise[T any](register func(resolve func(T), reject func(error))) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{})}
	register(p.resolve, p.reject)
	return p
}

// Resolved returns a promise already settled with v.
func Resolved[T any](v T) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{})}
	p.resolve(v)
	return p
}

// Rejected returns a promise already settled with err.
func Rejected[T any](err error) *Promise[T] {
	p := &Promise[T]{done: make(chan struct{})}
	p.reject(err)
	return p
}

func (p *Promise[T]) resolve(v T) {
	p.mu.Lock()
	if p.state != statePending {
		p.mu.Unlock()
		logger().Warn("promise settled twice, second resolution discarded",
			zap.Int32("state", int32(p.state)))
		return
	}
	p.state = stateResolved
	p.value = v
	close(p.done)
	p.mu.Unlock()
}

func (p *Promise[T]) reject(err error) {
	p.mu.Lock()
	if p.state != statePending {
		p.mu.Unlock()
		logger().Warn("promise settled twice, second rejection discarded",
			zap.Int32("state", int32(p.state)), zap.Error(err))
		return
	}
	p.state = stateRejected
	p.err = err
	close(p.done)
	p.mu.Unlock()
}

// Await blocks until the promise settles or ctx is done. Abandoning the wait
// does not cancel the underlying host operation; a late settlement is simply
// never observed.
func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the promise settles. It lets a
// Promise of any result type satisfy non-generic interfaces such as the
// one Ctx.WaitUntil accepts.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

// TryGet polls the promise without blocking. ok is false while pending.
func (p *Promise[T]) TryGet() (v T, err error, ok bool) {
	select {
	case <-p.done:
		return p.value, p.err, true
	default:
		var zero T
		return zero, nil, false
	}
}

// Settled reports whether the promise has resolved or rejected.
func (p *Promise[T]) Settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Discard explicitly abandons the promise. The eventual outcome is consumed
// in the background so that a write error does not vanish unlogged. Use this
// for fire-until-awaited operations whose result the caller chooses not to
// observe.
func (p *Promise[T]) Discard() {
	go func() {
		<-p.done
		if p.err != nil {
			logger().Warn("discarded promise settled with error", zap.Error(p.err))
		}
	}()
}
