package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toon-shelf/catalog"
	"toon-shelf/storage"
)

const catalogJSON = `[
	{"id": 1, "title": "Calabash Brothers", "category": "series", "episodes": [{"episodeNumber": 1}, {"episodeNumber": 2}]},
	{"id": 2, "title": "Havoc in Heaven", "category": "film"},
	{"id": 3, "title": "Black Cat Detective", "category": "series"}
]`

type staticFetcher struct{ body string }

func (f staticFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return []byte(f.body), nil
}

func newTestSession(t *testing.T, kv storage.KeyValueStore) *Session {
	t.Helper()
	now := time.Date(2024, 7, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	cache := catalog.NewCache(kv, staticFetcher{body: catalogJSON}, "http://catalog.test/data/cartoons.json", catalog.WithClock(clock))
	s := New(kv, cache, WithClock(clock))
	require.Len(t, s.Open(context.Background()), 3)
	return s
}

func TestCollectedEntriesFollowCollectionOrder(t *testing.T) {
	s := newTestSession(t, storage.NewMemoryStore(0))
	s.Collection.Add(3)
	s.Collection.Add(99)
	s.Collection.Add(1)

	got := s.CollectedEntries()
	require.Len(t, got, 2)
	assert.Equal(t, catalog.EntryID(3), got[0].ID)
	assert.Equal(t, catalog.EntryID(1), got[1].ID)
}

func TestContinueWatching(t *testing.T) {
	s := newTestSession(t, storage.NewMemoryStore(0))
	s.History.RecordView(2, 1)
	s.History.SaveProgress(1, 2, 300)
	s.History.RecordView(42, 1)

	items := s.ContinueWatching(0)
	require.Len(t, items, 2)
	assert.Equal(t, catalog.EntryID(1), items[0].Entry.ID)
	require.NotNil(t, items[0].Progress)
	assert.Equal(t, 300.0, items[0].Progress.Position)
	assert.Equal(t, catalog.EntryID(2), items[1].Entry.ID)
	assert.Nil(t, items[1].Progress)

	assert.Len(t, s.ContinueWatching(1), 1)
}

func TestFocus(t *testing.T) {
	s := newTestSession(t, storage.NewMemoryStore(0))

	_, ok := s.Current()
	assert.False(t, ok)

	_, ok = s.Focus(99)
	assert.False(t, ok)

	e, ok := s.Focus(2)
	require.True(t, ok)
	assert.Equal(t, "Havoc in Heaven", e.Title)

	cur, ok := s.Current()
	require.True(t, ok)
	assert.Equal(t, catalog.EntryID(2), cur.ID)
}

func TestStoresPurgeCatalogCacheWhenFull(t *testing.T) {
	kv := storage.NewMemoryStore(int64(len(catalogJSON)) + 64)
	s := newTestSession(t, kv)

	_, cached, _ := kv.Get("cartoons_data_cache")
	require.True(t, cached)

	_, err := s.Comments.Add(1, "a comment long enough to push the store past its quota", "")
	require.NoError(t, err)

	_, cached, _ = kv.Get("cartoons_data_cache")
	assert.False(t, cached)
	assert.Len(t, s.Entries(), 3, "the in-memory snapshot is kept")
	assert.Equal(t, 1, s.Comments.Count(1))
}
