package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// FetchHandler handles one HTTP invocation.
type FetchHandler func(ctx context.Context, req *Request, env *Env, wctx *Ctx) (*Response, error)

// ScheduledHandler handles one cron invocation.
type ScheduledHandler func(ctx context.Context, ev *ScheduledEvent, env *Env, wctx *Ctx) error

// QueueHandler handles one delivered message batch.
type QueueHandler func(ctx context.Context, batch *MessageBatch, env *Env, wctx *Ctx) error

// DurableObjectCtor constructs an actor instance when the host first
// addresses its id.
type DurableObjectCtor func(state *ObjectState, env *Env) DurableObject

// ScheduledEvent describes a cron trigger firing.
type ScheduledEvent struct {
	Cron          string
	ScheduledTime time.Time
}

// Worker is the registration table tying event sources to handlers. Hosts
// deliver events through the Dispatch methods; registration happens once,
// before the first dispatch.
type Worker struct {
	fetch     FetchHandler
	scheduled ScheduledHandler
	queues    map[string]QueueHandler
	durables  map[string]DurableObjectCtor

	respondWithErrors bool
}

// Option configures a Worker.
type Option func(*Worker)

// RespondWithErrors makes fetch dispatch turn handler errors into 500
// responses carrying the error text, instead of failing the invocation.
func RespondWithErrors() Option {
	return func(w *Worker) { w.respondWithErrors = true }
}

// New returns a worker with no handlers registered.
func New(opts ...Option) *Worker {
	w := &Worker{
		queues:   make(map[string]QueueHandler),
		durables: make(map[string]DurableObjectCtor),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// HandleFetch registers the HTTP handler.
func (w *Worker) HandleFetch(h FetchHandler) *Worker {
	w.fetch = h
	return w
}

// HandleScheduled registers the cron handler.
func (w *Worker) HandleScheduled(h ScheduledHandler) *Worker {
	w.scheduled = h
	return w
}

// HandleQueue registers the consumer for the named queue. The empty name
// is the fallback for queues with no dedicated consumer.
func (w *Worker) HandleQueue(queue string, h QueueHandler) *Worker {
	w.queues[queue] = h
	return w
}

// RegisterDurableObject registers the constructor for a durable-actor
// class.
func (w *Worker) RegisterDurableObject(class string, ctor DurableObjectCtor) *Worker {
	w.durables[class] = ctor
	return w
}

// DurableObjectCtor returns the registered constructor for class.
func (w *Worker) DurableObjectCtor(class string) (DurableObjectCtor, bool) {
	ctor, ok := w.durables[class]
	return ctor, ok
}

// DispatchFetch delivers a host-native request to the fetch handler and
// returns the host-native response. ErrRouteNotFound becomes a 404; other
// handler errors fail the invocation unless RespondWithErrors is set.
func (w *Worker) DispatchFetch(ctx context.Context, nr *NativeRequest, env *Env, wctx *Ctx) (*NativeResponse, error) {
	if w.fetch == nil {
		return nil, errors.New("fetch dispatch: no handler registered")
	}
	req := ToRequest(nr)
	resp, err := w.fetch(ctx, req, env, wctx)
	if err != nil {
		switch {
		case errors.Is(err, ErrRouteNotFound):
			resp = ErrorResponse(http.StatusNotFound, "not found")
		case w.respondWithErrors:
			logger().Error("fetch handler failed", zap.String("url", req.URL), zap.Error(err))
			resp = ErrorResponse(http.StatusInternalServerError, err.Error())
		default:
			return nil, fmt.Errorf("fetch dispatch: %w", err)
		}
	}
	out, err := FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("fetch dispatch: converting response: %w", err)
	}
	return out, nil
}

// DispatchScheduled delivers a cron trigger to the scheduled handler.
func (w *Worker) DispatchScheduled(ctx context.Context, ev *ScheduledEvent, env *Env, wctx *Ctx) error {
	if w.scheduled == nil {
		return errors.New("scheduled dispatch: no handler registered")
	}
	if err := w.scheduled(ctx, ev, env, wctx); err != nil {
		return fmt.Errorf("scheduled dispatch: %w", err)
	}
	return nil
}

// DispatchQueue delivers a batch to the consumer registered for its queue,
// falling back to the default consumer. The returned retry set names the
// messages to redeliver; unmarked messages follow the handler outcome.
func (w *Worker) DispatchQueue(ctx context.Context, batch *MessageBatch, env *Env, wctx *Ctx) (retry []string, err error) {
	h, ok := w.queues[batch.Queue()]
	if !ok {
		h, ok = w.queues[""]
	}
	if !ok {
		return nil, fmt.Errorf("queue dispatch: no consumer for queue %q", batch.Queue())
	}
	err = h(ctx, batch, env, wctx)
	if err != nil {
		err = fmt.Errorf("queue dispatch: %w", err)
	}
	return batch.RetrySet(err != nil), err
}

// DispatchAlarm delivers a due alarm to a live actor instance of the
// given class. The class must be registered and its implementation must
// handle alarms.
func (w *Worker) DispatchAlarm(ctx context.Context, class string, obj DurableObject) error {
	if _, ok := w.durables[class]; !ok {
		return fmt.Errorf("alarm dispatch: no durable object class %q", class)
	}
	ah, ok := obj.(AlarmHandler)
	if !ok {
		return fmt.Errorf("alarm dispatch: class %q does not handle alarms", class)
	}
	if err := ah.Alarm(ctx); err != nil {
		return fmt.Errorf("alarm dispatch: %w", err)
	}
	return nil
}
