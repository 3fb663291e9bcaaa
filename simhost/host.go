// Package simhost is a complete in-process host for worker code: an event
// loop that owns every foreign handle, in-memory key-value and queue
// backends, SQLite-backed relational databases, lazily instantiated
// durable actors with alarms, cron triggers and outbound HTTP. It exists
// for tests and local development; the binding semantics match what worker
// code sees in production.
package simhost

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/edgebind/worker"
	"github.com/edgebind/worker/internal/eventloop"
)

const queueBatchLimit = 100

// Host runs a worker against simulated bindings.
type Host struct {
	loop     *eventloop.Loop
	worker   *worker.Worker
	bindings *worker.Bindings
	env      *worker.Env
	log      *zap.Logger

	queues   map[string]*memQueue
	durables map[string]*durableNamespace
	d1s      []*sqliteD1
	crons    []string
}

// Option configures a Host before its environment is built.
type Option func(*Host) error

// WithKV adds an in-memory key-value namespace under name.
func WithKV(name string) Option {
	return func(h *Host) error {
		h.bindings.KV[name] = newMemKV()
		return nil
	}
}

// WithQueue adds a queue under name: worker sends land in the host buffer
// and DeliverQueues hands them to the registered consumer.
func WithQueue(name string) Option {
	return func(h *Host) error {
		q := newMemQueue(name)
		h.queues[name] = q
		h.bindings.Queues[name] = q
		return nil
	}
}

// WithD1 adds a file-backed SQLite database under binding, stored beneath
// dataDir and keyed by databaseID.
func WithD1(binding, dataDir, databaseID string) Option {
	return func(h *Host) error {
		d, err := openD1(dataDir, databaseID)
		if err != nil {
			return err
		}
		h.d1s = append(h.d1s, d)
		h.bindings.D1[binding] = d
		return nil
	}
}

// WithD1Memory adds an in-memory SQLite database under binding.
func WithD1Memory(binding, databaseID string) Option {
	return func(h *Host) error {
		d, err := openD1Memory(databaseID)
		if err != nil {
			return err
		}
		h.d1s = append(h.d1s, d)
		h.bindings.D1[binding] = d
		return nil
	}
}

// WithBucket adds an in-memory object-store bucket under name.
func WithBucket(name string) Option {
	return func(h *Host) error {
		h.bindings.Buckets[name] = newMemBucket()
		return nil
	}
}

// WithFetch replaces the outbound fetch backend. The default performs real
// HTTP exchanges; pass a fake to keep tests off the network.
func WithFetch(backend worker.FetchBackend) Option {
	return func(h *Host) error {
		h.bindings.Fetch = backend
		return nil
	}
}

// WithDurable adds a durable-actor namespace under binding, backed by the
// worker's registered class.
func WithDurable(binding, class string) Option {
	return func(h *Host) error {
		ns := newDurableNamespace(h, class)
		h.durables[binding] = ns
		h.bindings.Durable[binding] = ns
		return nil
	}
}

// WithSecret adds a secret binding.
func WithSecret(name, value string) Option {
	return func(h *Host) error {
		h.bindings.Secrets[name] = value
		return nil
	}
}

// WithVar adds a plain-text variable binding.
func WithVar(name, value string) Option {
	return func(h *Host) error {
		h.bindings.Vars[name] = value
		return nil
	}
}

// WithService adds a service binding backed by the given fetch backend.
func WithService(name string, backend worker.FetchBackend) Option {
	return func(h *Host) error {
		h.bindings.Services[name] = backend
		return nil
	}
}

// WithHTTPService adds a service binding that performs real HTTP exchanges
// through client (nil means http.DefaultClient).
func WithHTTPService(name string, client *http.Client) Option {
	return func(h *Host) error {
		h.bindings.Services[name] = newNetFetch(client)
		return nil
	}
}

// WithCron registers a cron trigger delivered by RunScheduled.
func WithCron(expr string) Option {
	return func(h *Host) error {
		if err := validateCron(expr); err != nil {
			return err
		}
		h.crons = append(h.crons, expr)
		return nil
	}
}

// WithLogger sets the host's logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(h *Host) error {
		h.log = l
		return nil
	}
}

// New builds a host for w, starts its event loop and constructs the
// environment on it.
func New(w *worker.Worker, opts ...Option) (*Host, error) {
	h := &Host{
		worker: w,
		log:    zap.NewNop(),
		bindings: &worker.Bindings{
			KV:       make(map[string]worker.KVBackend),
			Queues:   make(map[string]worker.QueueBackend),
			D1:       make(map[string]worker.D1Backend),
			Durable:  make(map[string]worker.DurableBackend),
			Buckets:  make(map[string]worker.ObjectBackend),
			Secrets:  make(map[string]string),
			Vars:     make(map[string]string),
			Services: make(map[string]worker.FetchBackend),
			Fetch:    newNetFetch(nil),
		},
		queues:   make(map[string]*memQueue),
		durables: make(map[string]*durableNamespace),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}

	h.loop = eventloop.New()
	if err := h.loop.Do(func() {
		h.env = worker.NewEnv(h.bindings, h.loop.Schedule)
	}); err != nil {
		h.loop.Close()
		return nil, err
	}
	return h, nil
}

// Env returns the host's environment. Useful for tests that poke bindings
// directly; remember that accessors only work on the loop goroutine.
func (h *Host) Env() *worker.Env { return h.env }

// Fetch delivers req to the worker's fetch handler and returns its
// response, after waiting out any background work the handler registered.
func (h *Host) Fetch(ctx context.Context, req *worker.Request) (*worker.Response, error) {
	nr, err := worker.FromRequest(req)
	if err != nil {
		return nil, err
	}
	out, err := h.FetchNative(ctx, nr)
	if err != nil {
		return nil, err
	}
	return worker.ToResponse(out), nil
}

// FetchNative is Fetch at the host-native boundary.
func (h *Host) FetchNative(ctx context.Context, nr *worker.NativeRequest) (*worker.NativeResponse, error) {
	wctx := worker.NewCtx(ctx)
	resp, err := h.worker.DispatchFetch(ctx, nr, h.env, wctx)
	if werr := wctx.Wait(ctx); werr != nil {
		h.log.Warn("abandoning background work", zap.Error(werr))
	}
	return resp, err
}

// RunScheduled fires every registered cron trigger that matches now.
func (h *Host) RunScheduled(ctx context.Context, now time.Time) error {
	for _, expr := range h.crons {
		if !cronMatches(expr, now) {
			continue
		}
		wctx := worker.NewCtx(ctx)
		ev := &worker.ScheduledEvent{Cron: expr, ScheduledTime: now}
		if err := h.worker.DispatchScheduled(ctx, ev, h.env, wctx); err != nil {
			return err
		}
		if err := wctx.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// DeliverQueues drains pending messages from every queue into consumer
// batches. Retried messages go back into the queue with their attempt
// count bumped; call again to redeliver them.
func (h *Host) DeliverQueues(ctx context.Context) error {
	for name, q := range h.queues {
		for {
			taken := q.take(queueBatchLimit)
			if len(taken) == 0 {
				break
			}
			byID := make(map[string]*queuedMessage, len(taken))
			msgs := make([]*worker.QueueMessage, len(taken))
			for i, m := range taken {
				byID[m.id] = m
				msgs[i] = &worker.QueueMessage{
					ID:        m.id,
					Body:      m.body,
					Timestamp: m.timestamp,
					Attempts:  m.attempts,
				}
			}
			batch := worker.NewMessageBatch(name, msgs)

			wctx := worker.NewCtx(ctx)
			retry, err := h.worker.DispatchQueue(ctx, batch, h.env, wctx)
			if err != nil {
				// The retry set still applies: unmarked messages come back.
				h.log.Warn("queue batch failed", zap.String("queue", name), zap.Error(err))
			}
			var back []*queuedMessage
			for _, id := range retry {
				if m := byID[id]; m != nil {
					back = append(back, m)
				}
			}
			q.requeue(back)
			if werr := wctx.Wait(ctx); werr != nil {
				return werr
			}
			if len(back) == len(taken) {
				// Everything bounced; stop instead of spinning on the
				// same poison batch.
				break
			}
		}
	}
	return nil
}

// QueueDepth reports how many messages are waiting in the named queue.
func (h *Host) QueueDepth(name string) (int, error) {
	q, ok := h.queues[name]
	if !ok {
		return 0, fmt.Errorf("no queue %q", name)
	}
	return q.depth(), nil
}

// FireAlarms runs the alarm handler of every durable instance whose alarm
// is due at now.
func (h *Host) FireAlarms(ctx context.Context, now time.Time) error {
	for _, ns := range h.durables {
		if err := ns.fireDueAlarms(ctx, now); err != nil {
			return err
		}
	}
	return nil
}

// Close stops the event loop and releases database handles.
func (h *Host) Close() error {
	h.loop.Close()
	var first error
	for _, d := range h.d1s {
		if err := d.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
