package worker

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"
)

// fakeBucket is an in-memory ObjectBackend.
type fakeBucket struct {
	data map[string]*BucketObject
}

func (f *fakeBucket) store() map[string]*BucketObject {
	if f.data == nil {
		f.data = make(map[string]*BucketObject)
	}
	return f.data
}

func (f *fakeBucket) Head(key string) (*BucketObject, error) {
	obj, ok := f.store()[key]
	if !ok {
		return nil, nil
	}
	head := *obj
	head.Body = nil
	return &head, nil
}

func (f *fakeBucket) Get(key string) (*BucketObject, error) {
	obj, ok := f.store()[key]
	if !ok {
		return nil, nil
	}
	cp := *obj
	return &cp, nil
}

func (f *fakeBucket) Put(key string, value []byte, opts BucketPutOptions) (*BucketObject, error) {
	obj := &BucketObject{
		Key:      key,
		Size:     int64(len(value)),
		ETag:     key + "-v1",
		Uploaded: time.Unix(1700000000, 0),
		Metadata: opts.Metadata,
		Body:     value,
	}
	f.store()[key] = obj
	head := *obj
	head.Body = nil
	return &head, nil
}

func (f *fakeBucket) Delete(keys []string) error {
	for _, k := range keys {
		delete(f.store(), k)
	}
	return nil
}

func (f *fakeBucket) List(opts BucketListOptions) (*BucketListing, error) {
	var keys []string
	for k := range f.store() {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	listing := &BucketListing{Complete: true}
	for _, k := range keys {
		head := *f.data[k]
		head.Body = nil
		listing.Objects = append(listing.Objects, head)
	}
	return listing, nil
}

func newBucket(t *testing.T, backend ObjectBackend) *Bucket {
	t.Helper()
	env, _ := newTestEnv(t, &Bindings{Buckets: map[string]ObjectBackend{"ASSETS": backend}})
	b, err := env.Bucket("ASSETS")
	if err != nil {
		t.Fatalf("resolving bucket binding: %v", err)
	}
	return b
}

func TestBucketPutGetDelete(t *testing.T) {
	b := newBucket(t, &fakeBucket{})
	ctx := context.Background()

	put, err := b.Put("logo.png", []byte("png bytes"), BucketPutOptions{
		Metadata: map[string]string{"content-type": "image/png"},
	}).Await(ctx)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if put.Size != 9 || put.Body != nil {
		t.Fatalf("put description = %+v", put)
	}

	obj, err := b.Get(ctx, "logo.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(obj.Body) != "png bytes" || obj.Metadata["content-type"] != "image/png" {
		t.Fatalf("object = %+v", obj)
	}

	head, err := b.Head(ctx, "logo.png")
	if err != nil || head == nil || head.Body != nil || head.ETag != obj.ETag {
		t.Fatalf("Head = (%+v, %v)", head, err)
	}

	if err := b.Delete(ctx, "logo.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if obj, _ := b.Get(ctx, "logo.png"); obj != nil {
		t.Fatal("object survived delete")
	}
}

func TestBucketAbsentKeyIsNil(t *testing.T) {
	b := newBucket(t, &fakeBucket{})
	ctx := context.Background()

	if obj, err := b.Get(ctx, "nope"); err != nil || obj != nil {
		t.Fatalf("Get absent = (%+v, %v)", obj, err)
	}
	if obj, err := b.Head(ctx, "nope"); err != nil || obj != nil {
		t.Fatalf("Head absent = (%+v, %v)", obj, err)
	}
	if err := b.Delete(ctx, "nope"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestBucketList(t *testing.T) {
	b := newBucket(t, &fakeBucket{})
	ctx := context.Background()

	for _, key := range []string{"img/a", "img/b", "doc/readme"} {
		if _, err := b.Put(key, []byte("x"), BucketPutOptions{}).Await(ctx); err != nil {
			t.Fatal(err)
		}
	}
	listing, err := b.List(ctx, BucketListOptions{Prefix: "img/"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(listing.Objects) != 2 || listing.Objects[0].Key != "img/a" {
		t.Fatalf("listing = %+v", listing)
	}
}
