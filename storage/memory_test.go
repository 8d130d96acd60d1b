package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(0)

	_, ok, err := s.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set("b", "2"))
	require.NoError(t, s.Set("a", "1"))

	v, ok, err := s.Get("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Remove("a"))
	require.NoError(t, s.Remove("a"))
	_, ok, _ = s.Get("a")
	assert.False(t, ok)
	assert.Equal(t, int64(2), s.Used())
}

func TestMemoryStoreQuota(t *testing.T) {
	s := NewMemoryStore(10)

	require.NoError(t, s.Set("k", "12345"))
	assert.Equal(t, int64(6), s.Used())

	err := s.Set("k2", "12345")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
	_, ok, _ := s.Get("k2")
	assert.False(t, ok, "rejected write must not be stored")

	// replacing frees the old value first
	require.NoError(t, s.Set("k", "123456789"))
	assert.Equal(t, int64(10), s.Used())

	require.NoError(t, s.Remove("k"))
	require.NoError(t, s.Set("k2", "12345"))
}
