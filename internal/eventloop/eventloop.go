// Package eventloop runs the host's single-threaded event loop.
//
// Every foreign handle the host hands to a worker is owned by exactly one
// loop goroutine, and every host call, callback and completion is delivered
// as a job on that goroutine. Jobs run strictly in submission order, which
// is what gives promise bridges their relative-ordering guarantee.
package eventloop

import (
	"errors"
	"sync"

	"github.com/edgebind/worker/internal/gid"
)

// ErrClosed is returned by Push, Schedule and Do when the loop has shut
// down.
var ErrClosed = errors.New("eventloop: loop closed")

// Loop executes submitted jobs one at a time on a dedicated goroutine.
type Loop struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []func()
	closed bool

	started chan struct{}
	stopped chan struct{}
	goid    uint64
}

// New creates a Loop and starts its goroutine.
func New() *Loop {
	l := &Loop{
		started: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)
	go l.run()
	<-l.started
	return l
}

func (l *Loop) run() {
	l.goid = gid.ID()
	close(l.started)
	for {
		l.mu.Lock()
		for len(l.queue) == 0 && !l.closed {
			l.cond.Wait()
		}
		if len(l.queue) == 0 && l.closed {
			l.mu.Unlock()
			close(l.stopped)
			return
		}
		job := l.queue[0]
		l.queue = l.queue[1:]
		l.mu.Unlock()

		job()
	}
}

// Push enqueues a job. Jobs run in FIFO order. Pushing to a closed loop
// returns ErrClosed without running the job.
func (l *Loop) Push(job func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, job)
	l.cond.Signal()
	l.mu.Unlock()
	return nil
}

// Do runs a job on the loop and waits for it to finish. When called from the
// loop goroutine itself the job runs inline, so loop jobs can call Do without
// deadlocking.
func (l *Loop) Do(job func()) error {
	if l.OnLoop() {
		job()
		return nil
	}
	done := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrClosed
	}
	l.queue = append(l.queue, func() {
		job()
		close(done)
	})
	l.cond.Signal()
	l.mu.Unlock()
	<-done
	return nil
}

// Schedule runs job on the loop, inline when the caller already is the
// loop goroutine. This is the scheduler shape binding layers want: safe to
// call from anywhere without self-deadlock, and ErrClosed instead of a
// silent drop once the loop has shut down.
func (l *Loop) Schedule(job func()) error {
	if l.OnLoop() {
		job()
		return nil
	}
	return l.Push(job)
}

// OnLoop reports whether the caller is the loop goroutine.
func (l *Loop) OnLoop() bool {
	return gid.ID() == l.goid
}

// Close stops the loop after all queued jobs have run.
func (l *Loop) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.cond.Signal()
	l.mu.Unlock()
	<-l.stopped
}
