package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"cluster-inspection/internal/storage"
	"cluster-inspection/pkg/logging"
)

const (
	// DefaultMaxBytes is the serialized size budget for the whole realm.
	DefaultMaxBytes int64 = 9 * 1024 * 1024
	// DefaultTTL is the maximum age of an entry, measured from its write time.
	DefaultTTL = 24 * time.Hour
)

var (
	// ErrCacheMiss is returned by Get for absent, expired or malformed entries.
	ErrCacheMiss = errors.New("cache: key is missing")
	// ErrItemTooLarge is returned by Set when an entry exceeds the budget, alone or next to
	// the raw values in the realm.
	ErrItemTooLarge = errors.New("cache: item exceeds size budget")
	// ErrStorageFailure wraps serialization and backend write failures.
	ErrStorageFailure = errors.New("cache: storage failure")
)

// envelope is the stored form of every cache entry.
type envelope struct {
	Value     json.RawMessage `json:"value"`
	WrittenAt int64           `json:"writtenAt"` // unix milliseconds
}

// entryInfo describes one stored value during a size scan.
type entryInfo struct {
	key       string
	size      int64
	writtenAt int64 // 0 when the value is not an envelope
}

// Stats summarizes the realm.
type Stats struct {
	Entries    int   // values stored as cache envelopes
	Raw        int   // values stored through SetRaw or by other writers
	TotalBytes int64 // serialized size of every value in the realm
	MaxBytes   int64
	TTL        time.Duration
}

// Cache is a size- and age-bounded JSON cache over a storage realm.
//
// Every successful Set is followed by a reclaim pass, so the realm is never left above
// MaxBytes by this cache. TTL is enforced lazily on Get.
type Cache struct {
	store    storage.Storage
	maxBytes int64
	ttl      time.Duration
	now      func() time.Time

	mu sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithMaxBytes sets the size budget.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithTTL sets the maximum entry age.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// New creates a cache over store.
func New(store storage.Storage, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		maxBytes: DefaultMaxBytes,
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key with the current time as its write time.
//
// An entry whose serialized form alone exceeds the budget is rejected and the realm is
// left untouched. On serialization or storage failure the single oldest entry is evicted
// and the write is not retried.
func (c *Cache) Set(key string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	payload, err := json.Marshal(value)
	if err != nil {
		logging.Error("Cache", err, "Failed to serialize %s", key)
		c.evictOldestLocked()
		return fmt.Errorf("%w: serializing %q: %w", ErrStorageFailure, key, err)
	}
	data, err := json.Marshal(envelope{Value: payload, WrittenAt: c.now().UnixMilli()})
	if err != nil {
		logging.Error("Cache", err, "Failed to serialize envelope for %s", key)
		c.evictOldestLocked()
		return fmt.Errorf("%w: serializing %q: %w", ErrStorageFailure, key, err)
	}

	if int64(len(data)) > c.maxBytes {
		logging.Warn("Cache", "Item too large, not caching: %s (%d bytes, budget %d)", key, len(data), c.maxBytes)
		return fmt.Errorf("%w: %q is %d bytes", ErrItemTooLarge, key, len(data))
	}

	if err := c.store.Set(key, string(data)); err != nil {
		logging.Error("Cache", err, "Failed to write %s", key)
		c.evictOldestLocked()
		return fmt.Errorf("%w: writing %q: %w", ErrStorageFailure, key, err)
	}

	evicted, err := c.reclaimLocked()
	if err != nil {
		logging.Error("Cache", err, "Reclaim after writing %s failed", key)
	}
	if slices.Contains(evicted, key) {
		// raw values left no room for the entry
		return fmt.Errorf("%w: %q does not fit next to the raw values", ErrItemTooLarge, key)
	}
	return nil
}

// Get decodes the value stored under key into out. It returns ErrCacheMiss when the
// key is absent, older than the TTL (the entry is removed) or malformed. out may be nil
// to only test presence.
func (c *Cache) Get(key string, out interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.store.Get(key)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			logging.Error("Cache", err, "Failed to read %s", key)
		}
		return ErrCacheMiss
	}

	env, ok := decodeEnvelope(raw)
	if !ok {
		logging.Warn("Cache", "Ignoring malformed entry %s", key)
		return ErrCacheMiss
	}

	// write times have millisecond precision, so compare at that precision
	age := c.now().UnixMilli() - env.WrittenAt
	if age > c.ttl.Milliseconds() {
		logging.Debug("Cache", "Entry %s expired (age %s)", key, (time.Duration(age) * time.Millisecond).Round(time.Second))
		if err := c.store.Delete(key); err != nil {
			logging.Error("Cache", err, "Failed to remove expired entry %s", key)
		}
		return ErrCacheMiss
	}

	if out != nil {
		if err := json.Unmarshal(env.Value, out); err != nil {
			logging.Warn("Cache", "Entry %s does not decode into %T: %v", key, out, err)
			return ErrCacheMiss
		}
	}
	return nil
}

// SetRaw stores a plain string outside the envelope format. Raw values never expire
// and are never chosen for eviction, but they count toward the budget.
func (c *Cache) SetRaw(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(key, value); err != nil {
		return fmt.Errorf("%w: writing %q: %w", ErrStorageFailure, key, err)
	}
	return nil
}

// GetRaw returns a value written by SetRaw.
func (c *Cache) GetRaw(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, err := c.store.Get(key)
	if err != nil {
		return "", false
	}
	return v, true
}

// Clear removes one entry.
func (c *Cache) Clear(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(key)
}

// ClearAll removes every entry in the realm.
func (c *Cache) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Clear()
}

// Reclaim evicts entries in ascending write time until the realm fits the budget and
// returns the evicted keys.
func (c *Cache) Reclaim() ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reclaimLocked()
}

// Stats scans the realm.
func (c *Cache) Stats() (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, total, err := c.scanLocked()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{TotalBytes: total, MaxBytes: c.maxBytes, TTL: c.ttl}
	for _, e := range entries {
		if e.writtenAt > 0 {
			st.Entries++
		} else {
			st.Raw++
		}
	}
	return st, nil
}

func (c *Cache) reclaimLocked() ([]string, error) {
	entries, total, err := c.scanLocked()
	if err != nil {
		return nil, err
	}
	if total <= c.maxBytes {
		return nil, nil
	}

	candidates := make([]entryInfo, 0, len(entries))
	for _, e := range entries {
		if e.writtenAt > 0 {
			candidates = append(candidates, e)
		}
	}
	// keys arrive sorted, so equal write times fall back to key order
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].writtenAt < candidates[j].writtenAt
	})

	var evicted []string
	for total > c.maxBytes && len(candidates) > 0 {
		oldest := candidates[0]
		candidates = candidates[1:]
		if err := c.store.Delete(oldest.key); err != nil {
			logging.Error("Cache", err, "Failed to evict %s", oldest.key)
			continue
		}
		total -= oldest.size
		evicted = append(evicted, oldest.key)
		logging.Debug("Cache", "Evicted %s (%d bytes) to stay within budget", oldest.key, oldest.size)
	}
	if total > c.maxBytes {
		logging.Warn("Cache", "Realm still over budget after reclaim: %d > %d bytes", total, c.maxBytes)
	}
	return evicted, nil
}

func (c *Cache) evictOldestLocked() {
	entries, _, err := c.scanLocked()
	if err != nil {
		logging.Error("Cache", err, "Failed to scan realm for eviction")
		return
	}

	var oldest *entryInfo
	for i := range entries {
		e := &entries[i]
		if e.writtenAt == 0 {
			continue
		}
		if oldest == nil || e.writtenAt < oldest.writtenAt {
			oldest = e
		}
	}
	if oldest == nil {
		return
	}
	if err := c.store.Delete(oldest.key); err != nil {
		logging.Error("Cache", err, "Failed to evict %s", oldest.key)
		return
	}
	logging.Info("Cache", "Evicted oldest entry %s after a failed write", oldest.key)
}

func (c *Cache) scanLocked() ([]entryInfo, int64, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: listing keys: %w", ErrStorageFailure, err)
	}

	var total int64
	entries := make([]entryInfo, 0, len(keys))
	for _, k := range keys {
		raw, err := c.store.Get(k)
		if err != nil {
			// removed concurrently by another writer of the realm
			continue
		}
		info := entryInfo{key: k, size: int64(len(raw))}
		if env, ok := decodeEnvelope(raw); ok {
			info.writtenAt = env.WrittenAt
		}
		total += info.size
		entries = append(entries, info)
	}
	return entries, total, nil
}

func decodeEnvelope(raw string) (envelope, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return envelope{}, false
	}
	if env.WrittenAt <= 0 || env.Value == nil {
		return envelope{}, false
	}
	return env, true
}
