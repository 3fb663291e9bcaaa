package worker

import (
	"context"
	"time"
)

// BucketObject describes one stored object. Body is populated by Get and
// empty on Head and List results.
type BucketObject struct {
	Key      string
	Size     int64
	ETag     string
	Uploaded time.Time
	Metadata map[string]string
	Body     []byte
}

// BucketPutOptions carries optional write parameters.
type BucketPutOptions struct {
	Metadata map[string]string
}

// BucketListOptions narrows a bucket listing.
type BucketListOptions struct {
	Prefix string
	Cursor string
	Limit  int
}

// BucketListing is one page of object descriptions, bodies omitted.
type BucketListing struct {
	Objects  []BucketObject
	Cursor   string
	Complete bool
}

// ObjectBackend is the host side of an object-store bucket. Invoked on the
// event-loop goroutine only. Head and Get return nil for absent keys.
type ObjectBackend interface {
	Head(key string) (*BucketObject, error)
	Get(key string) (*BucketObject, error)
	Put(key string, value []byte, opts BucketPutOptions) (*BucketObject, error)
	Delete(keys []string) error
	List(opts BucketListOptions) (*BucketListing, error)
}

// Bucket is a typed handle over an object-store binding.
type Bucket struct {
	name    string
	backend *Guard[ObjectBackend]
	sched   Scheduler
}

// Name returns the binding name the handle was resolved from.
func (b *Bucket) Name() string { return b.name }

// Head returns the description of key without its body, or nil when the
// object does not exist.
func (b *Bucket) Head(ctx context.Context, key string) (*BucketObject, error) {
	return awaitOnLoop(ctx, b.sched, func() (*BucketObject, error) {
		be, err := b.backend.Get()
		if err != nil {
			return nil, err
		}
		return be.Head(key)
	})
}

// Get returns the object stored under key, body included, or nil when it
// does not exist.
func (b *Bucket) Get(ctx context.Context, key string) (*BucketObject, error) {
	return awaitOnLoop(ctx, b.sched, func() (*BucketObject, error) {
		be, err := b.backend.Get()
		if err != nil {
			return nil, err
		}
		return be.Get(key)
	})
}

// Put stores value under key, replacing any existing object, and returns
// the stored object's description.
func (b *Bucket) Put(key string, value []byte, opts BucketPutOptions) *Promise[*BucketObject] {
	return runOnLoop(b.sched, func() (*BucketObject, error) {
		be, err := b.backend.Get()
		if err != nil {
			return nil, err
		}
		return be.Put(key, value, opts)
	})
}

// Delete removes the given keys. Absent keys are not an error.
func (b *Bucket) Delete(ctx context.Context, keys ...string) error {
	_, err := awaitOnLoop(ctx, b.sched, func() (Void, error) {
		be, err := b.backend.Get()
		if err != nil {
			return Void{}, err
		}
		return Void{}, be.Delete(keys)
	})
	return err
}

// List returns one page of object descriptions in key order.
func (b *Bucket) List(ctx context.Context, opts BucketListOptions) (*BucketListing, error) {
	return awaitOnLoop(ctx, b.sched, func() (*BucketListing, error) {
		be, err := b.backend.Get()
		if err != nil {
			return nil, err
		}
		return be.List(opts)
	})
}
