package worker

import (
	"context"
	"time"
)

// BindingKind identifies what a configured binding name resolves to.
type BindingKind int

const (
	KindNone BindingKind = iota
	KindKV
	KindQueue
	KindD1
	KindDurableObject
	KindBucket
	KindSecret
	KindVar
	KindService
)

func (k BindingKind) String() string {
	switch k {
	case KindKV:
		return "kv"
	case KindQueue:
		return "queue"
	case KindD1:
		return "d1"
	case KindDurableObject:
		return "durable_object"
	case KindBucket:
		return "bucket"
	case KindSecret:
		return "secret"
	case KindVar:
		return "var"
	case KindService:
		return "service"
	default:
		return "none"
	}
}

// Scheduler runs a job on the host's event-loop goroutine. Jobs submitted
// from the loop itself run inline; jobs submitted from elsewhere are
// queued and run in submission order. A scheduler that can no longer run
// jobs (the loop has shut down) returns an error instead of dropping them.
type Scheduler func(job func()) error

// KVEntry is a value fetched from a key-value namespace together with its
// stored metadata, when any.
type KVEntry struct {
	Value    []byte
	Metadata []byte
}

// KVKey is one key in a list page.
type KVKey struct {
	Name       string
	Expiration time.Time
	Metadata   []byte
}

// KVListPage is one page of a key listing.
type KVListPage struct {
	Keys     []KVKey
	Cursor   string
	Complete bool
}

// KVPutConfig carries optional write parameters to the backend.
type KVPutConfig struct {
	Expiration    time.Time
	ExpirationTTL time.Duration
	Metadata      []byte
}

// KVListConfig carries listing parameters to the backend.
type KVListConfig struct {
	Prefix string
	Limit  int
	Cursor string
}

// KVBackend is the host side of a key-value namespace. Methods are invoked
// on the event-loop goroutine only.
type KVBackend interface {
	Get(key string) (*KVEntry, error)
	Put(key string, value []byte, cfg KVPutConfig) error
	Delete(key string) error
	List(cfg KVListConfig) (*KVListPage, error)
}

// QueueMessageInput is one message handed to a queue backend for delivery.
type QueueMessageInput struct {
	Body        []byte
	ContentType string
}

// QueueBackend is the host side of a queue producer. Invoked on the
// event-loop goroutine only.
type QueueBackend interface {
	Send(msgs []QueueMessageInput) error
}

// D1Row is one result row keyed by column name.
type D1Row map[string]any

// D1Meta describes the execution of one statement.
type D1Meta struct {
	Duration    time.Duration
	RowsRead    int64
	RowsWritten int64
	LastRowID   int64
	ChangedRows int64
}

// D1Result is the outcome of one statement: rows for reads, counters for
// writes.
type D1Result struct {
	Rows    []D1Row
	Columns []string
	Meta    D1Meta
}

// D1Backend is the host side of a relational database binding. Invoked on
// the event-loop goroutine only.
type D1Backend interface {
	Query(sql string, args []any) (*D1Result, error)
	Exec(sql string) (*D1Result, error)
}

// FetchBackend performs an outbound HTTP exchange. Slow by nature, so the
// call is asynchronous: the backend must invoke done exactly once, from any
// goroutine, when the exchange settles.
type FetchBackend interface {
	Fetch(req *NativeRequest, done func(*NativeResponse, error))
}

// DurableBackend is the host side of a durable-actor namespace: it turns an
// actor identifier plus request into a response produced by that actor's
// single live instance.
type DurableBackend interface {
	FetchObject(id string, req *NativeRequest, done func(*NativeResponse, error))
}

// Bindings is the full set of named resources configured for a worker.
// Nil maps are treated as empty. Fetch is the unnamed outbound network
// channel; nil means the host offers none.
type Bindings struct {
	KV       map[string]KVBackend
	Queues   map[string]QueueBackend
	D1       map[string]D1Backend
	Durable  map[string]DurableBackend
	Buckets  map[string]ObjectBackend
	Secrets  map[string]string
	Vars     map[string]string
	Services map[string]FetchBackend
	Fetch    FetchBackend
}

// Env resolves binding names into typed handles. The binding table is a
// foreign handle owned by the event-loop goroutine, so every lookup is
// marshalled onto that goroutine; handles may then be resolved and used
// from anywhere. An environment whose scheduler is mis-wired — jobs not
// running on the goroutine that built it — fails every lookup with
// ErrAffinityViolation.
type Env struct {
	guard *Guard[*Bindings]
	sched Scheduler
}

// NewEnv builds an environment over the given bindings. Call it on the
// event-loop goroutine; sched must route jobs onto that same goroutine.
func NewEnv(b *Bindings, sched Scheduler) *Env {
	if b == nil {
		b = &Bindings{}
	}
	return &Env{guard: Wrap(b), sched: sched}
}

// kind reports what a name is bound to, or KindNone.
func (b *Bindings) kind(name string) BindingKind {
	switch {
	case b.KV[name] != nil:
		return KindKV
	case b.Queues[name] != nil:
		return KindQueue
	case b.D1[name] != nil:
		return KindD1
	case b.Durable[name] != nil:
		return KindDurableObject
	case b.Buckets[name] != nil:
		return KindBucket
	case b.Services[name] != nil:
		return KindService
	default:
		if _, ok := b.Secrets[name]; ok {
			return KindSecret
		}
		if _, ok := b.Vars[name]; ok {
			return KindVar
		}
		return KindNone
	}
}

// Kind reports what name is bound to, or KindNone when unbound.
func (e *Env) Kind(name string) (BindingKind, error) {
	return awaitOnLoop(context.Background(), e.sched, func() (BindingKind, error) {
		b, err := e.guard.Get()
		if err != nil {
			return KindNone, err
		}
		return b.kind(name), nil
	})
}

// resolve looks name up on the loop goroutine and wraps the backend there,
// so the returned guard's origin is the loop. A missing name and a name
// bound to a different kind are distinguished in the error.
func resolve[T any](e *Env, name string, want BindingKind, pick func(*Bindings) map[string]T) (*Guard[T], error) {
	return awaitOnLoop(context.Background(), e.sched, func() (*Guard[T], error) {
		b, err := e.guard.Get()
		if err != nil {
			return nil, err
		}
		if v, ok := pick(b)[name]; ok {
			return Wrap(v), nil
		}
		return nil, &BindingError{Name: name, Want: want, Got: b.kind(name)}
	})
}

// KV returns the key-value namespace bound to name.
func (e *Env) KV(name string) (*KvStore, error) {
	g, err := resolve(e, name, KindKV, func(b *Bindings) map[string]KVBackend { return b.KV })
	if err != nil {
		return nil, err
	}
	return &KvStore{name: name, backend: g, sched: e.sched}, nil
}

// Queue returns the queue producer bound to name.
func (e *Env) Queue(name string) (*Queue, error) {
	g, err := resolve(e, name, KindQueue, func(b *Bindings) map[string]QueueBackend { return b.Queues })
	if err != nil {
		return nil, err
	}
	return &Queue{name: name, backend: g, sched: e.sched}, nil
}

// D1 returns the relational database bound to name.
func (e *Env) D1(name string) (*Database, error) {
	g, err := resolve(e, name, KindD1, func(b *Bindings) map[string]D1Backend { return b.D1 })
	if err != nil {
		return nil, err
	}
	return &Database{name: name, backend: g, sched: e.sched}, nil
}

// DurableObject returns the durable-actor namespace bound to name.
func (e *Env) DurableObject(name string) (*ObjectNamespace, error) {
	g, err := resolve(e, name, KindDurableObject, func(b *Bindings) map[string]DurableBackend { return b.Durable })
	if err != nil {
		return nil, err
	}
	return &ObjectNamespace{name: name, backend: g, sched: e.sched}, nil
}

// Bucket returns the object store bound to name.
func (e *Env) Bucket(name string) (*Bucket, error) {
	g, err := resolve(e, name, KindBucket, func(b *Bindings) map[string]ObjectBackend { return b.Buckets })
	if err != nil {
		return nil, err
	}
	return &Bucket{name: name, backend: g, sched: e.sched}, nil
}

// Fetch returns the outbound network fetcher, the unnamed channel every
// production host provides. Hosts that offer none fail with
// ErrFetchNotConfigured.
func (e *Env) Fetch() (*Fetcher, error) {
	g, err := awaitOnLoop(context.Background(), e.sched, func() (*Guard[FetchBackend], error) {
		b, err := e.guard.Get()
		if err != nil {
			return nil, err
		}
		if b.Fetch == nil {
			return nil, ErrFetchNotConfigured
		}
		return Wrap(b.Fetch), nil
	})
	if err != nil {
		return nil, err
	}
	return &Fetcher{backend: g, sched: e.sched}, nil
}

// Service returns the service binding (worker-to-worker fetcher) for name.
func (e *Env) Service(name string) (*Fetcher, error) {
	g, err := resolve(e, name, KindService, func(b *Bindings) map[string]FetchBackend { return b.Services })
	if err != nil {
		return nil, err
	}
	return &Fetcher{backend: g, sched: e.sched}, nil
}

// Secret returns the secret text bound to name.
func (e *Env) Secret(name string) (string, error) {
	return awaitOnLoop(context.Background(), e.sched, func() (string, error) {
		b, err := e.guard.Get()
		if err != nil {
			return "", err
		}
		if v, ok := b.Secrets[name]; ok {
			return v, nil
		}
		return "", &BindingError{Name: name, Want: KindSecret, Got: b.kind(name)}
	})
}

// Var returns the plain-text variable bound to name.
func (e *Env) Var(name string) (string, error) {
	return awaitOnLoop(context.Background(), e.sched, func() (string, error) {
		b, err := e.guard.Get()
		if err != nil {
			return "", err
		}
		if v, ok := b.Vars[name]; ok {
			return v, nil
		}
		return "", &BindingError{Name: name, Want: KindVar, Got: b.kind(name)}
	})
}

// runOnLoop schedules job onto the loop goroutine and settles the promise
// with its outcome. Shared by every binding handle wrapping a synchronous
// backend call. A scheduler refusal (loop shut down) rejects the promise
// so callers never block on a job that will not run.
func runOnLoop[T any](sched Scheduler, job func() (T, error)) *Promise[T] {
	return NewPromise(func(resolve func(T), reject func(error)) {
		err := sched(func() {
			v, err := job()
			if err != nil {
				reject(err)
				return
			}
			resolve(v)
		})
		if err != nil {
			reject(err)
		}
	})
}

// awaitOnLoop runs job on the loop and blocks for its result, honoring ctx.
func awaitOnLoop[T any](ctx context.Context, sched Scheduler, job func() (T, error)) (T, error) {
	return runOnLoop(sched, job).Await(ctx)
}
