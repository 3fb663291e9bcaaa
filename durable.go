package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ObjectID identifies one actor instance within a namespace. The hex form
// is stable: the same namespace and name always derive the same id.
type ObjectID struct {
	hexID string
	name  string
}

// String returns the 64-character hex form.
func (id ObjectID) String() string { return id.hexID }

// Name returns the name the id was derived from, or "" for unique and
// parsed ids.
func (id ObjectID) Name() string { return id.name }

// ObjectNamespace is a typed handle over a durable-actor namespace binding.
type ObjectNamespace struct {
	name    string
	backend *Guard[DurableBackend]
	sched   Scheduler
}

// Name returns the binding name the handle was resolved from.
func (ns *ObjectNamespace) Name() string { return ns.name }

// IDFromName derives the stable id for name within this namespace.
func (ns *ObjectNamespace) IDFromName(name string) ObjectID {
	sum := sha256.Sum256([]byte(ns.name + ":" + name))
	return ObjectID{hexID: hex.EncodeToString(sum[:]), name: name}
}

// IDFromString parses a previously derived hex id.
func (ns *ObjectNamespace) IDFromString(s string) (ObjectID, error) {
	return ObjectIDFromHex(s)
}

// ObjectIDFromHex reconstructs an id from its 64-character hex form. Hosts
// use it when an id arrives over the wire.
func ObjectIDFromHex(s string) (ObjectID, error) {
	if len(s) != 64 {
		return ObjectID{}, fmt.Errorf("object id must be 64 hex characters, got %d", len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		return ObjectID{}, fmt.Errorf("object id is not hex: %w", err)
	}
	return ObjectID{hexID: s}, nil
}

// UniqueID derives a fresh id not tied to any name.
func (ns *ObjectNamespace) UniqueID() ObjectID {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:unique:%d", ns.name, time.Now().UnixNano())))
	return ObjectID{hexID: hex.EncodeToString(sum[:])}
}

// Get returns a stub addressing the instance for id.
func (ns *ObjectNamespace) Get(id ObjectID) *Stub {
	return &Stub{id: id, backend: ns.backend, sched: ns.sched}
}

// Stub addresses one actor instance. Requests sent through the same stub,
// or any stub for the same id, are processed by that instance one at a
// time.
type Stub struct {
	id      ObjectID
	backend *Guard[DurableBackend]
	sched   Scheduler
}

// ID returns the addressed instance's id.
func (s *Stub) ID() ObjectID { return s.id }

// Fetch delivers req to the instance and returns a promise for its
// response.
func (s *Stub) Fetch(req *Request) *Promise[*Response] {
	native, err := FromRequest(req)
	if err != nil {
		return Rejected[*Response](err)
	}
	return NewPromise(func(resolve func(*Response), reject func(error)) {
		err := s.sched(func() {
			b, err := s.backend.Get()
			if err != nil {
				reject(err)
				return
			}
			b.FetchObject(s.id.hexID, native, func(nr *NativeResponse, err error) {
				if err != nil {
					reject(err)
					return
				}
				resolve(ToResponse(nr))
			})
		})
		if err != nil {
			reject(err)
		}
	})
}

// DurableObject is the interface an actor implementation provides. One
// live instance exists per id; the host serializes its invocations.
type DurableObject interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// AlarmHandler is implemented by actors that schedule alarms. The host
// invokes Alarm when a previously set alarm time arrives.
type AlarmHandler interface {
	Alarm(ctx context.Context) error
}

// DurableStorageBackend is the host side of an instance's private storage.
// Invoked on the event-loop goroutine only.
type DurableStorageBackend interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) (bool, error)
	Keys() ([]string, error)
	GetAlarm() (time.Time, bool, error)
	SetAlarm(t time.Time) error
	DeleteAlarm() error
}

// ObjectState is what the host hands an actor constructor: its identity
// and private storage.
type ObjectState struct {
	id      ObjectID
	storage *Storage
}

// NewObjectState builds actor state over a storage backend. Call on the
// event-loop goroutine.
func NewObjectState(id ObjectID, backend DurableStorageBackend, sched Scheduler) *ObjectState {
	return &ObjectState{
		id:      id,
		storage: &Storage{backend: Wrap(backend), sched: sched},
	}
}

// ID returns the instance's id.
func (s *ObjectState) ID() ObjectID { return s.id }

// Storage returns the instance's private storage.
func (s *ObjectState) Storage() *Storage { return s.storage }

// Storage is an actor instance's private key-value storage, including its
// alarm slot.
type Storage struct {
	backend *Guard[DurableStorageBackend]
	sched   Scheduler
}

// Get fetches the value for key into out. ok is false when absent.
func (s *Storage) Get(ctx context.Context, key string, out any) (bool, error) {
	type hit struct {
		data []byte
		ok   bool
	}
	h, err := awaitOnLoop(ctx, s.sched, func() (hit, error) {
		b, err := s.backend.Get()
		if err != nil {
			return hit{}, err
		}
		data, ok, err := b.Get(key)
		return hit{data: data, ok: ok}, err
	})
	if err != nil || !h.ok {
		return false, err
	}
	if err := json.Unmarshal(h.data, out); err != nil {
		return false, &DeserializationError{Shape: fmt.Sprintf("%T", out), Size: len(h.data), Err: err}
	}
	return true, nil
}

// Put stores v under key as JSON.
func (s *Storage) Put(key string, v any) *Promise[Void] {
	data, err := json.Marshal(v)
	if err != nil {
		return Rejected[Void](fmt.Errorf("encoding storage value for %q: %w", key, err))
	}
	return runOnLoop(s.sched, func() (Void, error) {
		b, err := s.backend.Get()
		if err != nil {
			return Void{}, err
		}
		return Void{}, b.Put(key, data)
	})
}

// Delete removes key, reporting whether it existed.
func (s *Storage) Delete(ctx context.Context, key string) (bool, error) {
	return awaitOnLoop(ctx, s.sched, func() (bool, error) {
		b, err := s.backend.Get()
		if err != nil {
			return false, err
		}
		return b.Delete(key)
	})
}

// Keys lists every stored key.
func (s *Storage) Keys(ctx context.Context) ([]string, error) {
	return awaitOnLoop(ctx, s.sched, func() ([]string, error) {
		b, err := s.backend.Get()
		if err != nil {
			return nil, err
		}
		return b.Keys()
	})
}

// GetMultiple fetches the raw values for keys in one pass. Absent keys are
// omitted from the result. The reads happen in a single loop job, so the
// snapshot is consistent.
func (s *Storage) GetMultiple(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	return awaitOnLoop(ctx, s.sched, func() (map[string]json.RawMessage, error) {
		b, err := s.backend.Get()
		if err != nil {
			return nil, err
		}
		out := make(map[string]json.RawMessage, len(keys))
		for _, key := range keys {
			data, ok, err := b.Get(key)
			if err != nil {
				return nil, err
			}
			if ok {
				out[key] = json.RawMessage(data)
			}
		}
		return out, nil
	})
}

// PutMultiple stores every entry as JSON in one pass. Encoding failures
// reject before anything is written.
func (s *Storage) PutMultiple(entries map[string]any) *Promise[Void] {
	encoded := make(map[string][]byte, len(entries))
	for key, v := range entries {
		data, err := json.Marshal(v)
		if err != nil {
			return Rejected[Void](fmt.Errorf("encoding storage value for %q: %w", key, err))
		}
		encoded[key] = data
	}
	return runOnLoop(s.sched, func() (Void, error) {
		b, err := s.backend.Get()
		if err != nil {
			return Void{}, err
		}
		for key, data := range encoded {
			if err := b.Put(key, data); err != nil {
				return Void{}, err
			}
		}
		return Void{}, nil
	})
}

// DeleteMultiple removes the given keys, reporting how many existed.
func (s *Storage) DeleteMultiple(ctx context.Context, keys []string) (int, error) {
	return awaitOnLoop(ctx, s.sched, func() (int, error) {
		b, err := s.backend.Get()
		if err != nil {
			return 0, err
		}
		deleted := 0
		for _, key := range keys {
			existed, err := b.Delete(key)
			if err != nil {
				return deleted, err
			}
			if existed {
				deleted++
			}
		}
		return deleted, nil
	})
}

// DeleteAll removes every stored key. The alarm slot is untouched.
func (s *Storage) DeleteAll() *Promise[Void] {
	return runOnLoop(s.sched, func() (Void, error) {
		b, err := s.backend.Get()
		if err != nil {
			return Void{}, err
		}
		keys, err := b.Keys()
		if err != nil {
			return Void{}, err
		}
		for _, key := range keys {
			if _, err := b.Delete(key); err != nil {
				return Void{}, err
			}
		}
		return Void{}, nil
	})
}

// StorageListOptions narrows and orders a List call. Start is inclusive
// and End exclusive, both optional; Limit zero means unbounded.
type StorageListOptions struct {
	Prefix  string
	Start   string
	End     string
	Limit   int
	Reverse bool
}

// StorageEntry is one stored key with its raw value.
type StorageEntry struct {
	Key   string
	Value json.RawMessage
}

// List returns matching entries in key order, reversed when opts.Reverse.
func (s *Storage) List(ctx context.Context, opts StorageListOptions) ([]StorageEntry, error) {
	return awaitOnLoop(ctx, s.sched, func() ([]StorageEntry, error) {
		b, err := s.backend.Get()
		if err != nil {
			return nil, err
		}
		keys, err := b.Keys()
		if err != nil {
			return nil, err
		}
		matched := keys[:0]
		for _, key := range keys {
			if opts.Prefix != "" && !strings.HasPrefix(key, opts.Prefix) {
				continue
			}
			if opts.Start != "" && key < opts.Start {
				continue
			}
			if opts.End != "" && key >= opts.End {
				continue
			}
			matched = append(matched, key)
		}
		sort.Strings(matched)
		if opts.Reverse {
			for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
				matched[i], matched[j] = matched[j], matched[i]
			}
		}
		if opts.Limit > 0 && len(matched) > opts.Limit {
			matched = matched[:opts.Limit]
		}
		out := make([]StorageEntry, 0, len(matched))
		for _, key := range matched {
			data, ok, err := b.Get(key)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, StorageEntry{Key: key, Value: json.RawMessage(data)})
			}
		}
		return out, nil
	})
}

// GetAlarm returns the pending alarm time. ok is false when none is set.
func (s *Storage) GetAlarm(ctx context.Context) (time.Time, bool, error) {
	type alarm struct {
		t  time.Time
		ok bool
	}
	a, err := awaitOnLoop(ctx, s.sched, func() (alarm, error) {
		b, err := s.backend.Get()
		if err != nil {
			return alarm{}, err
		}
		t, ok, err := b.GetAlarm()
		return alarm{t: t, ok: ok}, err
	})
	return a.t, a.ok, err
}

// SetAlarm schedules the instance's alarm, replacing any pending one.
func (s *Storage) SetAlarm(t time.Time) *Promise[Void] {
	return runOnLoop(s.sched, func() (Void, error) {
		b, err := s.backend.Get()
		if err != nil {
			return Void{}, err
		}
		return Void{}, b.SetAlarm(t)
	})
}

// DeleteAlarm cancels any pending alarm.
func (s *Storage) DeleteAlarm() *Promise[Void] {
	return runOnLoop(s.sched, func() (Void, error) {
		b, err := s.backend.Get()
		if err != nil {
			return Void{}, err
		}
		return Void{}, b.DeleteAlarm()
	})
}
