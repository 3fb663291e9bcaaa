package simhost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgebind/worker"
)

// memStorage is one actor instance's private storage plus its alarm slot.
type memStorage struct {
	mu       sync.Mutex
	data     map[string][]byte
	alarm    time.Time
	hasAlarm bool
}

func newMemStorage() *memStorage {
	return &memStorage{data: make(map[string][]byte)}
}

func (s *memStorage) Get(key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memStorage) Put(key string, value []byte) error {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()
	return nil
}

func (s *memStorage) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok, nil
}

func (s *memStorage) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func (s *memStorage) GetAlarm() (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alarm, s.hasAlarm, nil
}

func (s *memStorage) SetAlarm(t time.Time) error {
	s.mu.Lock()
	s.alarm, s.hasAlarm = t, true
	s.mu.Unlock()
	return nil
}

func (s *memStorage) DeleteAlarm() error {
	s.mu.Lock()
	s.hasAlarm = false
	s.mu.Unlock()
	return nil
}

// dueAlarm atomically claims the alarm if it is due at now.
func (s *memStorage) dueAlarm(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasAlarm || s.alarm.After(now) {
		return false
	}
	s.hasAlarm = false
	return true
}

type durableInstance struct {
	// gate serializes invocations: one live instance per id, one request
	// at a time.
	gate    sync.Mutex
	obj     worker.DurableObject
	storage *memStorage
}

// durableNamespace hosts the instances of one actor class. It implements
// worker.DurableBackend; instances are created lazily on first address.
type durableNamespace struct {
	host  *Host
	class string

	mu        sync.Mutex
	instances map[string]*durableInstance
}

func newDurableNamespace(h *Host, class string) *durableNamespace {
	return &durableNamespace{host: h, class: class, instances: make(map[string]*durableInstance)}
}

// instance returns the live instance for id, constructing it on first use.
// Called on the event-loop goroutine, where actor state must be created.
func (ns *durableNamespace) instance(id string) (*durableInstance, error) {
	ns.mu.Lock()
	defer ns.mu.Unlock()
	if inst, ok := ns.instances[id]; ok {
		return inst, nil
	}
	ctor, ok := ns.host.worker.DurableObjectCtor(ns.class)
	if !ok {
		return nil, fmt.Errorf("durable object class %q not registered", ns.class)
	}
	oid, err := worker.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}
	storage := newMemStorage()
	state := worker.NewObjectState(oid, storage, ns.host.loop.Schedule)
	inst := &durableInstance{
		obj:     ctor(state, ns.host.env),
		storage: storage,
	}
	ns.instances[id] = inst
	return inst, nil
}

// FetchObject delivers a request to the instance for id. The instance
// handler runs off the loop so its own binding calls can hop back onto it.
func (ns *durableNamespace) FetchObject(id string, req *worker.NativeRequest, done func(*worker.NativeResponse, error)) {
	inst, err := ns.instance(id)
	if err != nil {
		done(nil, err)
		return
	}
	go func() {
		inst.gate.Lock()
		defer inst.gate.Unlock()
		resp, err := inst.obj.Fetch(context.Background(), worker.ToRequest(req))
		if err != nil {
			done(nil, err)
			return
		}
		out, err := worker.FromResponse(resp)
		done(out, err)
	}()
}

// fireDueAlarms invokes Alarm on every instance whose alarm time has
// arrived. The alarm slot is cleared before the handler runs, so a handler
// may re-arm it.
func (ns *durableNamespace) fireDueAlarms(ctx context.Context, now time.Time) error {
	ns.mu.Lock()
	due := make([]*durableInstance, 0)
	for _, inst := range ns.instances {
		if inst.storage.dueAlarm(now) {
			due = append(due, inst)
		}
	}
	ns.mu.Unlock()

	for _, inst := range due {
		if _, ok := inst.obj.(worker.AlarmHandler); !ok {
			continue
		}
		inst.gate.Lock()
		err := ns.host.worker.DispatchAlarm(ctx, ns.class, inst.obj)
		inst.gate.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}
