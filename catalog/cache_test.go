package catalog

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toon-shelf/metrics"
	"toon-shelf/scraper"
	"toon-shelf/storage"
)

const sampleCatalog = `[
	{"id": 1, "title": "Calabash Brothers", "category": "series", "year": 1986, "rating": 8.9, "tags": ["Classic", "adventure"]},
	{"id": 2, "title": "Havoc in Heaven", "category": "film", "year": 1961, "rating": 9.3},
	{"title": "missing id"}
]`

func newTestCache(t *testing.T, kv storage.KeyValueStore, f *fakeFetcher, clock *fakeClock, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	return NewCache(kv, f, "http://catalog.test/data/cartoons.json", opts...)
}

func TestLoadFetchesValidatesAndCaches(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	f := &fakeFetcher{body: []byte(sampleCatalog)}
	clock := newFakeClock()
	c := newTestCache(t, kv, f, clock)

	entries := c.Load(context.Background())
	require.Len(t, entries, 2)
	assert.Equal(t, EntryID(1), entries[0].ID)
	assert.Equal(t, EntryID(2), entries[1].ID)

	stamp, ok, err := kv.Get(cacheTimestampKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(clock.Now().UnixMilli(), 10), stamp)

	// Served from the stored copy while fresh.
	f.set(`[]`, nil)
	clock.Advance(23 * time.Hour)
	again := c.Load(context.Background())
	assert.Len(t, again, 2)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestLoadRefetchesAfterExpiry(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	f := &fakeFetcher{body: []byte(sampleCatalog)}
	clock := newFakeClock()
	c := newTestCache(t, kv, f, clock)

	require.Len(t, c.Load(context.Background()), 2)

	f.set(`[{"id": 5, "title": "Nezha Conquers the Dragon King"}]`, nil)
	clock.Advance(24 * time.Hour)
	entries := c.Load(context.Background())
	require.Len(t, entries, 1)
	assert.Equal(t, EntryID(5), entries[0].ID)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	f := &fakeFetcher{body: []byte(sampleCatalog)}
	clock := newFakeClock()
	c := newTestCache(t, kv, f, clock)
	require.Len(t, c.Load(context.Background()), 2)

	f.set("", errors.New("connection refused"))
	_, err := c.Refresh(context.Background())
	require.Error(t, err)

	assert.Len(t, c.All(), 2)
	_, ok, _ := kv.Get(cacheKey)
	assert.True(t, ok, "stored copy survives a failed refresh")
	_, ok, _ = kv.Get(cacheTimestampKey)
	assert.True(t, ok)

	// A later page load on the same store is served from the copy.
	clock.Advance(time.Hour)
	page := newTestCache(t, kv, f, clock)
	assert.Len(t, page.Load(context.Background()), 2)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestRefreshReplacesStoredCopy(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	f := &fakeFetcher{body: []byte(sampleCatalog)}
	clock := newFakeClock()
	c := newTestCache(t, kv, f, clock)
	require.Len(t, c.Load(context.Background()), 2)

	f.set(`[{"id": 5, "title": "Nezha Conquers the Dragon King"}]`, nil)
	entries, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	page := newTestCache(t, kv, f, clock)
	got := page.Load(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, EntryID(5), got[0].ID)
}

func TestLoadFailureWithoutCacheReturnsEmpty(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	f := &fakeFetcher{err: errors.New("timeout")}
	c := newTestCache(t, kv, f, newFakeClock())

	entries := c.Load(context.Background())
	assert.NotNil(t, entries)
	assert.Empty(t, entries)

	_, ok, _ := kv.Get(cacheKey)
	assert.False(t, ok)
}

func TestLoadDiscardsMalformedCache(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	clock := newFakeClock()
	require.NoError(t, kv.Set(cacheKey, "{not json"))
	require.NoError(t, kv.Set(cacheTimestampKey, strconv.FormatInt(clock.Now().UnixMilli(), 10)))

	f := &fakeFetcher{body: []byte(sampleCatalog)}
	c := newTestCache(t, kv, f, clock)
	assert.Len(t, c.Load(context.Background()), 2)
	assert.Equal(t, int32(1), f.calls.Load())
}

func TestLoadDiscardsMalformedTimestamp(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set(cacheKey, `[{"id": 1, "title": "x"}]`))
	require.NoError(t, kv.Set(cacheTimestampKey, "yesterday"))

	f := &fakeFetcher{body: []byte(sampleCatalog)}
	c := newTestCache(t, kv, f, newFakeClock())
	assert.Len(t, c.Load(context.Background()), 2)
}

func TestConcurrentLoadsShareOneFetch(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	f := &fakeFetcher{body: []byte(sampleCatalog), gate: make(chan struct{})}
	c := newTestCache(t, kv, f, newFakeClock())

	var wg sync.WaitGroup
	results := make([][]Entry, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.Load(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.gate)
	wg.Wait()

	for _, r := range results {
		assert.Len(t, r, 2)
	}
	assert.LessOrEqual(t, f.calls.Load(), int32(len(results)))
}

func TestGetByIDAndLookup(t *testing.T) {
	c := newTestCache(t, storage.NewMemoryStore(0), &fakeFetcher{body: []byte(sampleCatalog)}, newFakeClock())
	_, ok := c.GetByID(1)
	assert.False(t, ok, "nothing loaded yet")
	assert.Empty(t, c.All())

	c.Load(context.Background())

	e, ok := c.GetByID(2)
	require.True(t, ok)
	assert.Equal(t, "Havoc in Heaven", e.Title)

	e, ok = c.Lookup("1")
	require.True(t, ok)
	assert.Equal(t, "Calabash Brothers", e.Title)

	_, ok = c.Lookup("abc")
	assert.False(t, ok)
	_, ok = c.GetByID(99)
	assert.False(t, ok)
}

func TestAllReturnsCopy(t *testing.T) {
	c := newTestCache(t, storage.NewMemoryStore(0), &fakeFetcher{body: []byte(sampleCatalog)}, newFakeClock())
	c.Load(context.Background())

	all := c.All()
	all[0].Title = "changed"
	e, _ := c.GetByID(1)
	assert.Equal(t, "Calabash Brothers", e.Title)
}

func TestInvalidateRemovesBothKeys(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	c := newTestCache(t, kv, &fakeFetcher{body: []byte(sampleCatalog)}, newFakeClock())
	c.Load(context.Background())

	require.NoError(t, c.Invalidate())
	keys, err := kv.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCacheWriteDroppedWhenOverQuota(t *testing.T) {
	kv := storage.NewMemoryStore(64)
	f := &fakeFetcher{body: []byte(sampleCatalog)}
	c := newTestCache(t, kv, f, newFakeClock())

	entries := c.Load(context.Background())
	assert.Len(t, entries, 2, "entries are returned even when the cache write is dropped")

	_, ok, _ := kv.Get(cacheKey)
	assert.False(t, ok)
	_, ok, _ = kv.Get(cacheTimestampKey)
	assert.False(t, ok)
}

func TestEvictorPurgesAndCounts(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	c := newTestCache(t, kv, &fakeFetcher{body: []byte(sampleCatalog)}, newFakeClock(), WithRecorder(rec))
	c.Load(context.Background())
	c.Load(context.Background())

	require.NoError(t, c.Evictor()())
	_, ok, _ := kv.Get(cacheKey)
	assert.False(t, ok)

	expected := `
# HELP toonshelf_catalog_cache_hits_total Catalog loads served from the cached copy.
# TYPE toonshelf_catalog_cache_hits_total counter
toonshelf_catalog_cache_hits_total 1
# HELP toonshelf_catalog_cache_misses_total Catalog loads that had to fetch the resource.
# TYPE toonshelf_catalog_cache_misses_total counter
toonshelf_catalog_cache_misses_total 1
# HELP toonshelf_catalog_rejected_entries_total Catalog records dropped by validation.
# TYPE toonshelf_catalog_rejected_entries_total counter
toonshelf_catalog_rejected_entries_total 1
# HELP toonshelf_store_quota_evictions_total Times the catalog cache was purged to make room for a write.
# TYPE toonshelf_store_quota_evictions_total counter
toonshelf_store_quota_evictions_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"toonshelf_catalog_cache_hits_total",
		"toonshelf_catalog_cache_misses_total",
		"toonshelf_catalog_rejected_entries_total",
		"toonshelf_store_quota_evictions_total",
	))
}

func TestOversizedCatalogCountsAsTooLarge(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewCollector(reg)
	tooLarge := &scraper.FetchError{URL: "http://catalog.test", Err: scraper.ErrBodyTooLarge}
	c := newTestCache(t, storage.NewMemoryStore(0), &fakeFetcher{err: tooLarge}, newFakeClock(), WithRecorder(rec))

	assert.Empty(t, c.Load(context.Background()))

	expected := `
# HELP toonshelf_catalog_fetch_failures_total Failed catalog fetches by reason.
# TYPE toonshelf_catalog_fetch_failures_total counter
toonshelf_catalog_fetch_failures_total{reason="too_large"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"toonshelf_catalog_fetch_failures_total"))
}
