package worker

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Queue is the producer handle for a queue binding.
type Queue struct {
	name    string
	backend *Guard[QueueBackend]
	sched   Scheduler
}

// Name returns the binding name the handle was resolved from.
func (q *Queue) Name() string { return q.name }

// Send enqueues v as a JSON message. The returned promise settles when the
// host accepts the message.
func (q *Queue) Send(v any) *Promise[Void] {
	data, err := json.Marshal(v)
	if err != nil {
		return Rejected[Void](fmt.Errorf("encoding queue message: %w", err))
	}
	return q.sendRaw([]QueueMessageInput{{Body: data, ContentType: "application/json"}})
}

// SendBytes enqueues a raw byte message.
func (q *Queue) SendBytes(body []byte) *Promise[Void] {
	return q.sendRaw([]QueueMessageInput{{Body: body, ContentType: "application/octet-stream"}})
}

// SendBatch enqueues every value in vs as one batch. All-or-nothing at the
// host boundary.
func (q *Queue) SendBatch(vs []any) *Promise[Void] {
	msgs := make([]QueueMessageInput, len(vs))
	for i, v := range vs {
		data, err := json.Marshal(v)
		if err != nil {
			return Rejected[Void](fmt.Errorf("encoding queue message %d: %w", i, err))
		}
		msgs[i] = QueueMessageInput{Body: data, ContentType: "application/json"}
	}
	return q.sendRaw(msgs)
}

func (q *Queue) sendRaw(msgs []QueueMessageInput) *Promise[Void] {
	return runOnLoop(q.sched, func() (Void, error) {
		b, err := q.backend.Get()
		if err != nil {
			return Void{}, err
		}
		return Void{}, b.Send(msgs)
	})
}

// queueMark is a message's acknowledgement state. The first explicit mark
// wins; later marks are no-ops.
type queueMark int

const (
	markNone queueMark = iota
	markAcked
	markRetried
)

// QueueMessage is one delivered message in a consumer batch.
type QueueMessage struct {
	ID        string
	Body      []byte
	Timestamp time.Time
	Attempts  int

	batch *MessageBatch
	index int
}

// JSON decodes the message body into out.
func (m *QueueMessage) JSON(out any) error {
	if err := json.Unmarshal(m.Body, out); err != nil {
		return &DeserializationError{Shape: fmt.Sprintf("%T", out), Size: len(m.Body), Err: err}
	}
	return nil
}

// Ack marks the message successfully processed. Idempotent; a message
// already marked for retry stays retried.
func (m *QueueMessage) Ack() { m.batch.mark(m.index, markAcked) }

// Retry marks the message for redelivery. Idempotent; a message already
// acknowledged stays acknowledged.
func (m *QueueMessage) Retry() { m.batch.mark(m.index, markRetried) }

// MessageBatch is one delivery of queued messages to a consumer. Messages
// left unmarked when the handler returns follow the handler's outcome: all
// acknowledged on success, all retried on error.
type MessageBatch struct {
	queue    string
	messages []*QueueMessage

	mu    sync.Mutex
	marks []queueMark
}

// NewMessageBatch assembles a consumer batch. Used by hosts delivering to a
// registered queue handler.
func NewMessageBatch(queue string, msgs []*QueueMessage) *MessageBatch {
	b := &MessageBatch{
		queue:    queue,
		messages: msgs,
		marks:    make([]queueMark, len(msgs)),
	}
	for i, m := range msgs {
		m.batch = b
		m.index = i
	}
	return b
}

// Queue returns the name of the queue the batch was delivered from.
func (b *MessageBatch) Queue() string { return b.queue }

// Messages returns the delivered messages in order.
func (b *MessageBatch) Messages() []*QueueMessage { return b.messages }

func (b *MessageBatch) mark(i int, m queueMark) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.marks[i] == markNone {
		b.marks[i] = m
	}
}

// AckAll acknowledges every message not yet explicitly marked.
func (b *MessageBatch) AckAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.marks {
		if m == markNone {
			b.marks[i] = markAcked
		}
	}
}

// RetryAll marks every message not yet explicitly marked for redelivery.
func (b *MessageBatch) RetryAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, m := range b.marks {
		if m == markNone {
			b.marks[i] = markRetried
		}
	}
}

// RetrySet resolves the batch's final disposition once the handler has
// returned: the ids to redeliver, with unmarked messages defaulting to
// retry when handlerFailed and to ack otherwise.
func (b *MessageBatch) RetrySet(handlerFailed bool) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var retry []string
	for i, m := range b.marks {
		if m == markRetried || (m == markNone && handlerFailed) {
			retry = append(retry, b.messages[i].ID)
		}
	}
	return retry
}
