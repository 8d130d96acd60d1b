package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toon-shelf/catalog"
	"toon-shelf/storage"
)

func TestAddContainsRemove(t *testing.T) {
	s := NewStore(storage.NewMemoryStore(0))

	assert.False(t, s.Contains(3))
	assert.True(t, s.Add(3))
	assert.True(t, s.Contains(3))
	assert.False(t, s.Add(3), "duplicate add")

	assert.True(t, s.Remove(3))
	assert.False(t, s.Contains(3))
	assert.False(t, s.Remove(3), "already removed")
}

func TestAllKeepsInsertionOrder(t *testing.T) {
	s := NewStore(storage.NewMemoryStore(0))
	s.Add(9)
	s.Add(2)
	s.Add(5)
	assert.Equal(t, []catalog.EntryID{9, 2, 5}, s.All())

	s.Remove(2)
	assert.Equal(t, []catalog.EntryID{9, 5}, s.All())
}

func TestLegacyMigration(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set(legacyKey, "[3,5]"))

	s := NewStore(kv)
	assert.Equal(t, []catalog.EntryID{3, 5}, s.All())

	v, ok, err := kv.Get(collectionKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "[3,5]", v)
}

func TestLegacyUsedWhenCurrentIsCorrupt(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set(collectionKey, "{oops"))
	require.NoError(t, kv.Set(legacyKey, "[7]"))

	s := NewStore(kv)
	assert.True(t, s.Contains(7))
}

func TestCorruptCollectionsReadAsEmpty(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set(collectionKey, "{oops"))
	require.NoError(t, kv.Set(legacyKey, "also bad"))

	s := NewStore(kv)
	assert.Empty(t, s.All())
	assert.True(t, s.Add(1))
	assert.Equal(t, []catalog.EntryID{1}, s.All())
}

func TestStoredIDsAreNormalized(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set(collectionKey, `[1, "1", "4", {"x": 1}, 2.5, 4]`))

	s := NewStore(kv)
	assert.Equal(t, []catalog.EntryID{1, 4}, s.All())
	assert.True(t, s.Contains(4))
}

func TestRemoveMirrorsLegacyKeyButAddDoesNot(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	s := NewStore(kv)

	s.Add(1)
	s.Add(2)
	_, ok, _ := kv.Get(legacyKey)
	assert.False(t, ok)

	s.Remove(1)
	v, ok, _ := kv.Get(legacyKey)
	require.True(t, ok)
	assert.Equal(t, "[2]", v)
}

func TestClear(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	s := NewStore(kv)
	s.Add(1)
	s.Add(2)
	s.Remove(2)

	require.NoError(t, s.Clear())
	assert.Empty(t, s.All())
	keys, _ := kv.Keys()
	assert.Empty(t, keys)
}

func TestDroppedWriteReportsFalse(t *testing.T) {
	kv := storage.NewMemoryStore(10)
	evictions := 0
	s := NewStore(kv, WithEvictor(func() error {
		evictions++
		return nil
	}))

	assert.False(t, s.Add(1))
	assert.Equal(t, 1, evictions)
	assert.False(t, s.Contains(1))
}

func TestEvictionMakesRoom(t *testing.T) {
	kv := storage.NewMemoryStore(40)
	require.NoError(t, kv.Set("cartoons_data_cache", "0123456789012345"))

	s := NewStore(kv, WithEvictor(func() error { return kv.Remove("cartoons_data_cache") }))
	assert.True(t, s.Add(1))
	assert.True(t, s.Contains(1))
}
