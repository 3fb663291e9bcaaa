package simhost

import (
	"encoding/base64"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/edgebind/worker"
)

const defaultListLimit = 1000

type kvRecord struct {
	value    []byte
	metadata []byte
	expires  time.Time // zero means never
}

// memKV is an in-memory key-value namespace. Expired entries are dropped
// lazily on read.
type memKV struct {
	mu   sync.Mutex
	data map[string]kvRecord
	now  func() time.Time
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string]kvRecord), now: time.Now}
}

func (s *memKV) Get(key string) (*worker.KVEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.live(key)
	if !ok {
		return nil, nil
	}
	return &worker.KVEntry{Value: rec.value, Metadata: rec.metadata}, nil
}

func (s *memKV) Put(key string, value []byte, cfg worker.KVPutConfig) error {
	rec := kvRecord{value: value, metadata: cfg.Metadata}
	switch {
	case !cfg.Expiration.IsZero():
		rec.expires = cfg.Expiration
	case cfg.ExpirationTTL > 0:
		rec.expires = s.now().Add(cfg.ExpirationTTL)
	}
	s.mu.Lock()
	s.data[key] = rec
	s.mu.Unlock()
	return nil
}

func (s *memKV) Delete(key string) error {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *memKV) List(cfg worker.KVListConfig) (*worker.KVListPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var names []string
	for k := range s.data {
		if _, ok := s.live(k); !ok {
			continue
		}
		if strings.HasPrefix(k, cfg.Prefix) {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	limit := cfg.Limit
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	offset := decodeCursor(cfg.Cursor)
	if offset > len(names) {
		offset = len(names)
	}

	end := offset + limit
	if end > len(names) {
		end = len(names)
	}
	page := &worker.KVListPage{Complete: end == len(names)}
	for _, name := range names[offset:end] {
		rec := s.data[name]
		page.Keys = append(page.Keys, worker.KVKey{
			Name:       name,
			Expiration: rec.expires,
			Metadata:   rec.metadata,
		})
	}
	if !page.Complete {
		page.Cursor = encodeCursor(end)
	}
	return page, nil
}

// live returns the record for key, dropping it if expired. Caller holds mu.
func (s *memKV) live(key string) (kvRecord, bool) {
	rec, ok := s.data[key]
	if !ok {
		return kvRecord{}, false
	}
	if !rec.expires.IsZero() && !rec.expires.After(s.now()) {
		delete(s.data, key)
		return kvRecord{}, false
	}
	return rec, true
}

// Cursors are base64-encoded integer offsets into the sorted key list.
func decodeCursor(cursor string) int {
	if cursor == "" {
		return 0
	}
	data, err := base64.StdEncoding.DecodeString(cursor)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(string(data))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func encodeCursor(offset int) string {
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(offset)))
}
