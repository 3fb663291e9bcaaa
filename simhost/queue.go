package simhost

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgebind/worker"
)

type queuedMessage struct {
	id        string
	body      []byte
	timestamp time.Time
	attempts  int
}

// memQueue is both the producer backend and the host-side delivery buffer
// for one queue. Sends append; Deliver on the host drains pending messages
// into a consumer batch and requeues whatever the consumer retried.
type memQueue struct {
	name string
	now  func() time.Time

	mu      sync.Mutex
	pending []*queuedMessage
}

func newMemQueue(name string) *memQueue {
	return &memQueue{name: name, now: time.Now}
}

func (q *memQueue) Send(msgs []worker.QueueMessageInput) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range msgs {
		q.pending = append(q.pending, &queuedMessage{
			id:        uuid.NewString(),
			body:      m.Body,
			timestamp: q.now(),
			attempts:  1,
		})
	}
	return nil
}

// take drains up to limit pending messages. limit <= 0 takes everything.
func (q *memQueue) take(limit int) []*queuedMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	if limit > 0 && limit < n {
		n = limit
	}
	taken := q.pending[:n]
	q.pending = q.pending[n:]
	return taken
}

// requeue puts retried messages back with their attempt count bumped.
func (q *memQueue) requeue(msgs []*queuedMessage) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, m := range msgs {
		m.attempts++
		q.pending = append(q.pending, m)
	}
}

func (q *memQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
