package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// KvStore is a typed handle over a key-value namespace binding. The handle
// itself may cross goroutines freely; every operation is marshalled onto
// the event-loop goroutine that owns the underlying foreign handle.
type KvStore struct {
	name    string
	backend *Guard[KVBackend]
	sched   Scheduler
}

// Name returns the binding name the handle was resolved from.
func (s *KvStore) Name() string { return s.name }

// KVValue is a fetched value with optional stored metadata.
type KVValue struct {
	key      string
	value    []byte
	metadata []byte
}

// Key returns the key the value was fetched under.
func (v *KVValue) Key() string { return v.key }

// Bytes returns the raw value.
func (v *KVValue) Bytes() []byte { return v.value }

// Text returns the value as a string.
func (v *KVValue) Text() string { return string(v.value) }

// JSON decodes the value into out.
func (v *KVValue) JSON(out any) error {
	if err := json.Unmarshal(v.value, out); err != nil {
		return &DeserializationError{Shape: fmt.Sprintf("%T", out), Size: len(v.value), Err: err}
	}
	return nil
}

// Metadata decodes the stored metadata into out. Returns false when the
// value has none.
func (v *KVValue) Metadata(out any) (bool, error) {
	if v.metadata == nil {
		return false, nil
	}
	if err := json.Unmarshal(v.metadata, out); err != nil {
		return false, &DeserializationError{Shape: fmt.Sprintf("%T", out), Size: len(v.metadata), Err: err}
	}
	return true, nil
}

// PutOptions are optional write parameters. Zero values are omitted.
type PutOptions struct {
	// Expiration is an absolute expiry time.
	Expiration time.Time
	// ExpirationTTL is a relative expiry from write time.
	ExpirationTTL time.Duration
	// Metadata is stored alongside the value as JSON.
	Metadata any
}

// ListOptions control a key listing.
type ListOptions struct {
	Prefix string
	Limit  int
	Cursor string
}

// KVListResult is one page of keys. When Complete is false, Cursor resumes
// the listing.
type KVListResult struct {
	Keys     []KVKey
	Cursor   string
	Complete bool
}

// Get fetches the value for key, or nil when absent.
func (s *KvStore) Get(ctx context.Context, key string) (*KVValue, error) {
	return awaitOnLoop(ctx, s.sched, func() (*KVValue, error) {
		b, err := s.backend.Get()
		if err != nil {
			return nil, err
		}
		entry, err := b.Get(key)
		if err != nil || entry == nil {
			return nil, err
		}
		return &KVValue{key: key, value: entry.Value, metadata: entry.Metadata}, nil
	})
}

// GetText fetches the value for key as a string. ok is false when absent.
func (s *KvStore) GetText(ctx context.Context, key string) (string, bool, error) {
	v, err := s.Get(ctx, key)
	if err != nil || v == nil {
		return "", false, err
	}
	return v.Text(), true, nil
}

// Put writes value under key. The returned promise settles when the write
// lands; callers that do not await it should Discard it so a failure is
// still logged.
func (s *KvStore) Put(key string, value []byte, opts *PutOptions) *Promise[Void] {
	cfg, err := putConfig(opts)
	if err != nil {
		return Rejected[Void](err)
	}
	return runOnLoop(s.sched, func() (Void, error) {
		b, err := s.backend.Get()
		if err != nil {
			return Void{}, err
		}
		return Void{}, b.Put(key, value, cfg)
	})
}

// PutText writes a string value.
func (s *KvStore) PutText(key, value string, opts *PutOptions) *Promise[Void] {
	return s.Put(key, []byte(value), opts)
}

// PutJSON marshals v and writes it under key.
func (s *KvStore) PutJSON(key string, v any, opts *PutOptions) *Promise[Void] {
	data, err := json.Marshal(v)
	if err != nil {
		return Rejected[Void](fmt.Errorf("encoding value for %q: %w", key, err))
	}
	return s.Put(key, data, opts)
}

// Delete removes key. Deleting an absent key succeeds.
func (s *KvStore) Delete(key string) *Promise[Void] {
	return runOnLoop(s.sched, func() (Void, error) {
		b, err := s.backend.Get()
		if err != nil {
			return Void{}, err
		}
		return Void{}, b.Delete(key)
	})
}

// List returns one page of keys. opts may be nil.
func (s *KvStore) List(ctx context.Context, opts *ListOptions) (*KVListResult, error) {
	var cfg KVListConfig
	if opts != nil {
		cfg = KVListConfig{Prefix: opts.Prefix, Limit: opts.Limit, Cursor: opts.Cursor}
	}
	return awaitOnLoop(ctx, s.sched, func() (*KVListResult, error) {
		b, err := s.backend.Get()
		if err != nil {
			return nil, err
		}
		page, err := b.List(cfg)
		if err != nil {
			return nil, err
		}
		return &KVListResult{Keys: page.Keys, Cursor: page.Cursor, Complete: page.Complete}, nil
	})
}

func putConfig(opts *PutOptions) (KVPutConfig, error) {
	var cfg KVPutConfig
	if opts == nil {
		return cfg, nil
	}
	cfg.Expiration = opts.Expiration
	cfg.ExpirationTTL = opts.ExpirationTTL
	if opts.Metadata != nil {
		data, err := json.Marshal(opts.Metadata)
		if err != nil {
			return cfg, fmt.Errorf("encoding metadata: %w", err)
		}
		cfg.Metadata = data
	}
	return cfg, nil
}
