package storage

import (
	"sort"
	"sync"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStorage keeps the realm in process memory. Values never expire on their own;
// expiry is the cache layer's job. An optional quota makes it behave like a bounded
// browser store.
type MemoryStorage struct {
	mu         sync.Mutex // serializes quota accounting with writes
	items      *gocache.Cache
	quotaBytes int64
	usedBytes  int64
}

// NewMemoryStorage creates an in-memory realm. quotaBytes <= 0 means unlimited.
func NewMemoryStorage(quotaBytes int64) *MemoryStorage {
	return &MemoryStorage{
		items:      gocache.New(gocache.NoExpiration, 0),
		quotaBytes: quotaBytes,
	}
}

func (m *MemoryStorage) Get(key string) (string, error) {
	v, ok := m.items.Get(key)
	if !ok {
		return "", ErrKeyNotFound
	}
	return v.(string), nil
}

func (m *MemoryStorage) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var previous int64
	if v, ok := m.items.Get(key); ok {
		previous = int64(len(v.(string)))
	}
	next := m.usedBytes - previous + int64(len(value))
	if m.quotaBytes > 0 && next > m.quotaBytes {
		return ErrQuotaExceeded
	}
	m.items.Set(key, value, gocache.NoExpiration)
	m.usedBytes = next
	return nil
}

func (m *MemoryStorage) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.items.Get(key); ok {
		m.usedBytes -= int64(len(v.(string)))
		m.items.Delete(key)
	}
	return nil
}

func (m *MemoryStorage) Keys() ([]string, error) {
	items := m.items.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items.Flush()
	m.usedBytes = 0
	return nil
}

// UsedBytes reports the bytes currently held, for quota diagnostics.
func (m *MemoryStorage) UsedBytes() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usedBytes
}

func (m *MemoryStorage) Close() error { return nil }
