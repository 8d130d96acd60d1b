package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"toon-shelf/metrics"
	"toon-shelf/scraper"
	"toon-shelf/storage"
)

const (
	cacheKey          = "cartoons_data_cache"
	cacheTimestampKey = "cartoons_data_timestamp"

	// DefaultTTL is how long a cached catalog stays valid.
	DefaultTTL = 24 * time.Hour
)

// Cache loads the catalog and keeps a copy in the key-value store.
// It also holds the most recently loaded list in memory.
type Cache struct {
	kv      storage.KeyValueStore
	fetcher scraper.Fetcher
	url     string
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
	metrics metrics.Recorder

	group singleflight.Group

	mu      sync.RWMutex
	entries []Entry
}

// Option configures a Cache.
type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.log = logger }
}

func WithRecorder(r metrics.Recorder) Option {
	return func(c *Cache) { c.metrics = r }
}

// NewCache creates a cache that fetches the catalog from url.
func NewCache(kv storage.KeyValueStore, fetcher scraper.Fetcher, url string, opts ...Option) *Cache {
	c := &Cache{
		kv:      kv,
		fetcher: fetcher,
		url:     url,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     zap.NewNop(),
		metrics: metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	return c
}

// Load returns the cached catalog while it is fresh, otherwise fetches,
// validates and caches it. A failed fetch yields an empty list and leaves any
// stored copy untouched.
func (c *Cache) Load(ctx context.Context) []Entry {
	if entries, ok := c.readCached(); ok {
		c.metrics.RecordCacheHit()
		c.setEntries(entries)
		return cloneEntries(entries)
	}
	c.metrics.RecordCacheMiss()

	entries, err := c.fetch(ctx)
	if err != nil {
		c.log.Error("Failed to load catalog", zap.String("url", c.url), zap.Error(err))
		return []Entry{}
	}
	return entries
}

// Refresh fetches the catalog without consulting the stored copy. A successful
// fetch replaces the copy; a failed one leaves it in place and is reported.
func (c *Cache) Refresh(ctx context.Context) ([]Entry, error) {
	return c.fetch(ctx)
}

// All returns the most recently loaded list, or an empty list before any load.
func (c *Cache) All() []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneEntries(c.entries)
}

// GetByID finds an entry in the loaded list.
func (c *Cache) GetByID(id EntryID) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Lookup is GetByID for ids that arrive as strings.
func (c *Cache) Lookup(raw string) (Entry, bool) {
	id, err := ParseEntryID(raw)
	if err != nil {
		return Entry{}, false
	}
	return c.GetByID(id)
}

// Invalidate removes the stored copy. The in-memory list is kept.
func (c *Cache) Invalidate() error {
	return errors.Join(c.kv.Remove(cacheKey), c.kv.Remove(cacheTimestampKey))
}

// Evictor frees the space held by the stored catalog. Other stores run it when
// a write hits the quota.
func (c *Cache) Evictor() storage.Evictor {
	return func() error {
		c.metrics.RecordQuotaEviction()
		c.log.Info("Purging catalog cache to free storage")
		return c.Invalidate()
	}
}

func (c *Cache) fetch(ctx context.Context) ([]Entry, error) {
	v, err, _ := c.group.Do("catalog", func() (any, error) {
		body, err := c.fetcher.Fetch(ctx, c.url)
		if err != nil {
			reason := "network"
			if errors.Is(err, scraper.ErrBodyTooLarge) {
				reason = "too_large"
			}
			c.metrics.RecordFetchFailure(reason)
			return nil, err
		}

		entries, rejected, err := Decode(body)
		if err != nil {
			c.metrics.RecordFetchFailure("decode")
			return nil, err
		}
		if len(rejected) > 0 {
			c.metrics.RecordRejectedEntries(len(rejected))
			for _, r := range rejected {
				c.log.Warn("Dropped invalid catalog record", zap.Error(r))
			}
		}

		c.writeCached(entries)
		c.setEntries(entries)
		c.log.Info("Catalog loaded", zap.Int("entries", len(entries)), zap.Int("rejected", len(rejected)))
		return entries, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneEntries(v.([]Entry)), nil
}

func (c *Cache) readCached() ([]Entry, bool) {
	payload, ok, err := c.kv.Get(cacheKey)
	if err != nil {
		c.log.Error("Failed to read catalog cache", zap.Error(err))
		return nil, false
	}
	stamp, stampOK, err := c.kv.Get(cacheTimestampKey)
	if err != nil {
		c.log.Error("Failed to read catalog cache timestamp", zap.Error(err))
		return nil, false
	}
	if !ok || !stampOK {
		return nil, false
	}

	ms, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		c.log.Warn("Discarding catalog cache with malformed timestamp", zap.String("timestamp", stamp))
		c.purge()
		return nil, false
	}

	cached := storage.Expiring[string]{Value: payload, CapturedAt: storage.FromUnixMillis(ms)}
	payload, fresh := cached.Read(c.ttl, c.now())
	if !fresh {
		c.log.Debug("Catalog cache expired")
		c.purge()
		return nil, false
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(payload), &entries); err != nil {
		c.log.Warn("Discarding malformed catalog cache", zap.Error(&storage.ParseError{Key: cacheKey, Err: err}))
		c.purge()
		return nil, false
	}
	return entries, true
}

func (c *Cache) writeCached(entries []Entry) {
	payload, err := storage.EncodeJSON(entries)
	if err != nil {
		c.log.Error("Failed to encode catalog cache", zap.Error(err))
		return
	}
	stamp := strconv.FormatInt(storage.UnixMillis(c.now()), 10)

	if err := storage.SetWithEviction(c.kv, cacheKey, payload, c.Invalidate); err != nil {
		c.log.Error("Dropped catalog cache write", zap.Int("bytes", len(payload)), zap.Error(err))
		return
	}
	if err := c.kv.Set(cacheTimestampKey, stamp); err != nil {
		c.log.Error("Dropped catalog cache timestamp write", zap.Error(err))
		c.purge()
	}
}

func (c *Cache) purge() {
	if err := c.Invalidate(); err != nil {
		c.log.Error("Failed to clear catalog cache", zap.Error(err))
	}
}

func (c *Cache) setEntries(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = cloneEntries(entries)
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
