package worker

import (
	"context"
	"errors"
	"sort"
	"testing"
)

// fakeKV is an in-memory KVBackend for handle tests.
type fakeKV struct {
	data map[string]KVEntry
	err  error
}

func (f *fakeKV) Get(key string) (*KVEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	e, ok := f.data[key]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (f *fakeKV) Put(key string, value []byte, cfg KVPutConfig) error {
	if f.err != nil {
		return f.err
	}
	if f.data == nil {
		f.data = make(map[string]KVEntry)
	}
	f.data[key] = KVEntry{Value: value, Metadata: cfg.Metadata}
	return nil
}

func (f *fakeKV) Delete(key string) error {
	delete(f.data, key)
	return nil
}

func (f *fakeKV) List(cfg KVListConfig) (*KVListPage, error) {
	var keys []string
	for k := range f.data {
		if cfg.Prefix == "" || len(k) >= len(cfg.Prefix) && k[:len(cfg.Prefix)] == cfg.Prefix {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	page := &KVListPage{Complete: true}
	for _, k := range keys {
		page.Keys = append(page.Keys, KVKey{Name: k})
	}
	return page, nil
}

func newKVStore(t *testing.T, backend KVBackend) *KvStore {
	t.Helper()
	env, _ := newTestEnv(t, &Bindings{KV: map[string]KVBackend{"STORE": backend}})
	kv, err := env.KV("STORE")
	if err != nil {
		t.Fatalf("resolving KV binding: %v", err)
	}
	return kv
}

func TestKVPutGet(t *testing.T) {
	kv := newKVStore(t, &fakeKV{})
	ctx := context.Background()

	// Handle methods are called off the loop goroutine on purpose: the
	// operation itself hops onto the loop.
	if _, err := kv.Put("k", []byte("v"), nil).Await(ctx); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, err := kv.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v == nil || v.Text() != "v" {
		t.Fatalf("Get = %v", v)
	}
	if v.Key() != "k" {
		t.Fatalf("Key = %q", v.Key())
	}
}

func TestKVGetMissing(t *testing.T) {
	kv := newKVStore(t, &fakeKV{})
	v, err := kv.Get(context.Background(), "absent")
	if err != nil || v != nil {
		t.Fatalf("Get(absent) = (%v, %v), want (nil, nil)", v, err)
	}
	if _, ok, err := kv.GetText(context.Background(), "absent"); ok || err != nil {
		t.Fatalf("GetText(absent) ok=%v err=%v", ok, err)
	}
}

func TestKVJSONAndMetadata(t *testing.T) {
	kv := newKVStore(t, &fakeKV{})
	ctx := context.Background()

	type rec struct {
		N int `json:"n"`
	}
	_, err := kv.PutJSON("r", rec{N: 5}, &PutOptions{Metadata: map[string]string{"v": "1"}}).Await(ctx)
	if err != nil {
		t.Fatalf("PutJSON: %v", err)
	}
	v, err := kv.Get(ctx, "r")
	if err != nil || v == nil {
		t.Fatalf("Get: (%v, %v)", v, err)
	}
	var got rec
	if err := v.JSON(&got); err != nil || got.N != 5 {
		t.Fatalf("JSON = (%+v, %v)", got, err)
	}
	var meta map[string]string
	ok, err := v.Metadata(&meta)
	if err != nil || !ok || meta["v"] != "1" {
		t.Fatalf("Metadata = (%v, %v, %v)", meta, ok, err)
	}
}

func TestKVDeleteAbsentSucceeds(t *testing.T) {
	kv := newKVStore(t, &fakeKV{})
	if _, err := kv.Delete("never-written").Await(context.Background()); err != nil {
		t.Fatalf("Delete(absent): %v", err)
	}
}

func TestKVPutErrorSurfacesOnAwait(t *testing.T) {
	boom := errors.New("quota exceeded")
	kv := newKVStore(t, &fakeKV{err: boom})
	if _, err := kv.Put("k", []byte("v"), nil).Await(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Put err = %v, want quota error", err)
	}
}

func TestKVList(t *testing.T) {
	backend := &fakeKV{data: map[string]KVEntry{
		"a:1": {Value: []byte("x")},
		"a:2": {Value: []byte("y")},
		"b:1": {Value: []byte("z")},
	}}
	kv := newKVStore(t, backend)

	res, err := kv.List(context.Background(), &ListOptions{Prefix: "a:"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !res.Complete || len(res.Keys) != 2 {
		t.Fatalf("List = %+v", res)
	}
	if res.Keys[0].Name != "a:1" || res.Keys[1].Name != "a:2" {
		t.Fatalf("keys = %v", res.Keys)
	}
}
