package simhost

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/edgebind/worker"
)

type bucketRecord struct {
	value    []byte
	etag     string
	uploaded time.Time
	metadata map[string]string
}

// memBucket is an in-memory object store. ETags are the content MD5 in
// hex, matching what object stores report for simple uploads.
type memBucket struct {
	mu   sync.Mutex
	data map[string]bucketRecord
	now  func() time.Time
}

func newMemBucket() *memBucket {
	return &memBucket{data: make(map[string]bucketRecord), now: time.Now}
}

func (b *memBucket) describe(key string, rec bucketRecord) *worker.BucketObject {
	return &worker.BucketObject{
		Key:      key,
		Size:     int64(len(rec.value)),
		ETag:     rec.etag,
		Uploaded: rec.uploaded,
		Metadata: rec.metadata,
	}
}

func (b *memBucket) Head(key string) (*worker.BucketObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.data[key]
	if !ok {
		return nil, nil
	}
	return b.describe(key, rec), nil
}

func (b *memBucket) Get(key string) (*worker.BucketObject, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rec, ok := b.data[key]
	if !ok {
		return nil, nil
	}
	obj := b.describe(key, rec)
	obj.Body = rec.value
	return obj, nil
}

func (b *memBucket) Put(key string, value []byte, opts worker.BucketPutOptions) (*worker.BucketObject, error) {
	sum := md5.Sum(value)
	rec := bucketRecord{
		value:    value,
		etag:     hex.EncodeToString(sum[:]),
		uploaded: b.now(),
		metadata: opts.Metadata,
	}
	b.mu.Lock()
	b.data[key] = rec
	b.mu.Unlock()
	return b.describe(key, rec), nil
}

func (b *memBucket) Delete(keys []string) error {
	b.mu.Lock()
	for _, key := range keys {
		delete(b.data, key)
	}
	b.mu.Unlock()
	return nil
}

func (b *memBucket) List(opts worker.BucketListOptions) (*worker.BucketListing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var keys []string
	for k := range b.data {
		if strings.HasPrefix(k, opts.Prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	limit := opts.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	offset := decodeCursor(opts.Cursor)
	if offset > len(keys) {
		offset = len(keys)
	}
	end := offset + limit
	if end > len(keys) {
		end = len(keys)
	}

	listing := &worker.BucketListing{Complete: end == len(keys)}
	for _, k := range keys[offset:end] {
		listing.Objects = append(listing.Objects, *b.describe(k, b.data[k]))
	}
	if !listing.Complete {
		listing.Cursor = encodeCursor(end)
	}
	return listing, nil
}
