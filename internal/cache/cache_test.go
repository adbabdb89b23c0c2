package cache

import (
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"cluster-inspection/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mib = 1024 * 1024

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)}
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// rawEntry builds a stored envelope of exactly size bytes.
func rawEntry(t *testing.T, size int, writtenAt int64) string {
	t.Helper()
	empty := fmt.Sprintf(`{"value":"","writtenAt":%d}`, writtenAt)
	require.GreaterOrEqual(t, size, len(empty))
	s := fmt.Sprintf(`{"value":"%s","writtenAt":%d}`, strings.Repeat("x", size-len(empty)), writtenAt)
	require.Len(t, s, size)
	return s
}

func TestSetGet_RoundTrip(t *testing.T) {
	clock := newFakeClock()
	c := New(storage.NewMemoryStorage(0), WithClock(clock.Now))

	records := []map[string]string{{"name": "n1"}, {"name": "n2"}}
	require.NoError(t, c.Set("nodes", records))

	var got []map[string]string
	require.NoError(t, c.Get("nodes", &got))
	assert.Equal(t, records, got)

	// Idempotent: a second read without a write returns the same value.
	var again []map[string]string
	require.NoError(t, c.Get("nodes", &again))
	assert.Equal(t, got, again)

	assert.ErrorIs(t, c.Get("pods", &got), ErrCacheMiss)
}

func TestGet_TTL(t *testing.T) {
	clock := newFakeClock()
	// write times are kept in milliseconds, the clock is not
	clock.Advance(500 * time.Microsecond)
	store := storage.NewMemoryStorage(0)
	c := New(store, WithClock(clock.Now))

	require.NoError(t, c.Set("clusters", []string{"c1"}))

	clock.Advance(DefaultTTL)
	assert.NoError(t, c.Get("clusters", nil), "exactly TTL old is still fresh")

	clock.Advance(time.Millisecond)
	assert.ErrorIs(t, c.Get("clusters", nil), ErrCacheMiss)

	_, err := store.Get("clusters")
	assert.ErrorIs(t, err, storage.ErrKeyNotFound, "expired entry is removed on read")
}

func TestGet_MalformedIsAbsent(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	c := New(store)

	require.NoError(t, store.Set("garbage", "{not json"))
	require.NoError(t, store.Set("no-timestamp", `{"value":[1]}`))
	require.NoError(t, store.Set("wrong-type", fmt.Sprintf(`{"value":"text","writtenAt":%d}`, time.Now().UnixMilli())))

	assert.ErrorIs(t, c.Get("garbage", nil), ErrCacheMiss)
	assert.ErrorIs(t, c.Get("no-timestamp", nil), ErrCacheMiss)

	var n []int
	assert.ErrorIs(t, c.Get("wrong-type", &n), ErrCacheMiss)
}

func TestSet_OversizedRejected(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	c := New(store, WithMaxBytes(100))

	require.NoError(t, c.Set("small", "ok"))
	before, err := store.Keys()
	require.NoError(t, err)
	beforeValue, err := store.Get("small")
	require.NoError(t, err)

	err = c.Set("big", strings.Repeat("y", 200))
	assert.ErrorIs(t, err, ErrItemTooLarge)

	after, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	afterValue, err := store.Get("small")
	require.NoError(t, err)
	assert.Equal(t, beforeValue, afterValue)
}

func TestReclaim_TenEntriesOfOneMiB(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	c := New(store, WithMaxBytes(9*mib))

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Set(fmt.Sprintf("entry-%d", i), rawEntry(t, mib, base+int64(i)*1000)))
	}

	evicted, err := c.Reclaim()
	require.NoError(t, err)
	assert.Equal(t, []string{"entry-0"}, evicted)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Len(t, keys, 9)
	assert.NotContains(t, keys, "entry-0")

	st, err := c.Stats()
	require.NoError(t, err)
	assert.LessOrEqual(t, st.TotalBytes, int64(9*mib))
	assert.Equal(t, 9, st.Entries)
}

func TestReclaim_EvictsOldestFirst(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	c := New(store, WithMaxBytes(1000))

	// Insertion order and key order both disagree with write time.
	require.NoError(t, store.Set("a", rawEntry(t, 400, 3000)))
	require.NoError(t, store.Set("b", rawEntry(t, 400, 1000)))
	require.NoError(t, store.Set("c", rawEntry(t, 400, 2000)))
	require.NoError(t, store.Set("d", rawEntry(t, 400, 4000)))

	evicted, err := c.Reclaim()
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, evicted)
}

func TestReclaim_TiesFollowKeyOrder(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	c := New(store, WithMaxBytes(500))

	require.NoError(t, store.Set("z", rawEntry(t, 300, 1000)))
	require.NoError(t, store.Set("m", rawEntry(t, 300, 1000)))

	evicted, err := c.Reclaim()
	require.NoError(t, err)
	assert.Equal(t, []string{"m"}, evicted)
}

func TestReclaim_RawValuesAreNotEvicted(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	c := New(store, WithMaxBytes(500))

	require.NoError(t, c.SetRaw("selectedCluster", strings.Repeat("c", 200)))
	require.NoError(t, store.Set("old", rawEntry(t, 200, 1000)))
	require.NoError(t, store.Set("new", rawEntry(t, 200, 2000)))

	evicted, err := c.Reclaim()
	require.NoError(t, err)
	assert.Equal(t, []string{"old"}, evicted)

	v, ok := c.GetRaw("selectedCluster")
	assert.True(t, ok)
	assert.Len(t, v, 200)
}

func TestSet_NoRoomNextToRawValues(t *testing.T) {
	store := storage.NewMemoryStorage(0)
	c := New(store, WithMaxBytes(100))

	require.NoError(t, c.SetRaw("selectedCluster", strings.Repeat("c", 120)))

	err := c.Set("nodes", "x")
	assert.ErrorIs(t, err, ErrItemTooLarge)
	assert.ErrorIs(t, c.Get("nodes", nil), ErrCacheMiss)

	v, ok := c.GetRaw("selectedCluster")
	assert.True(t, ok)
	assert.Len(t, v, 120)
}

func TestSet_SizeLawHoldsAfterAnySequence(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemoryStorage(0)
	const budget = 4096
	c := New(store, WithMaxBytes(budget), WithClock(clock.Now))

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		clock.Advance(time.Second)
		key := fmt.Sprintf("k%d", rng.Intn(30))
		_ = c.Set(key, strings.Repeat("v", rng.Intn(1500)))

		st, err := c.Stats()
		require.NoError(t, err)
		require.LessOrEqual(t, st.TotalBytes, int64(budget), "iteration %d", i)
	}
}

func TestSet_StorageFailureEvictsOldestWithoutRetry(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemoryStorage(300)
	c := New(store, WithClock(clock.Now))

	require.NoError(t, c.Set("first", strings.Repeat("a", 100)))
	clock.Advance(time.Second)
	require.NoError(t, c.Set("second", strings.Repeat("b", 100)))
	clock.Advance(time.Second)

	err := c.Set("third", strings.Repeat("c", 100))
	require.ErrorIs(t, err, ErrStorageFailure)
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, keys, "oldest evicted, failed write not retried")
}

func TestSet_UnserializableValue(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemoryStorage(0)
	c := New(store, WithClock(clock.Now))

	require.NoError(t, c.Set("keep", 1))
	clock.Advance(time.Second)
	require.NoError(t, c.Set("keep-too", 2))

	err := c.Set("bad", make(chan int))
	assert.ErrorIs(t, err, ErrStorageFailure)

	keys, err := store.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"keep-too"}, keys)
}

func TestClear(t *testing.T) {
	c := New(storage.NewMemoryStorage(0))
	require.NoError(t, c.Set("nodes", 1))
	require.NoError(t, c.Set("pods", 2))

	require.NoError(t, c.Clear("nodes"))
	assert.ErrorIs(t, c.Get("nodes", nil), ErrCacheMiss)
	assert.NoError(t, c.Get("pods", nil))

	require.NoError(t, c.ClearAll())
	assert.ErrorIs(t, c.Get("pods", nil), ErrCacheMiss)
}

func TestConcurrentSets(t *testing.T) {
	c := New(storage.NewMemoryStorage(0), WithMaxBytes(2048))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = c.Set(fmt.Sprintf("k%d", i%5), strings.Repeat("x", 300))
		}(i)
	}
	wg.Wait()

	st, err := c.Stats()
	require.NoError(t, err)
	assert.LessOrEqual(t, st.TotalBytes, int64(2048))
}
