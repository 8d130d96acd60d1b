package comments

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toon-shelf/storage"
)

func TestUserIDIsCreatedOnce(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	id := NewIdentity(kv)

	_, ok := id.StoredUserID()
	assert.False(t, ok)

	first := id.UserID()
	assert.Regexp(t, regexp.MustCompile(`^user_[0-9a-f-]{36}$`), first)
	assert.Equal(t, first, id.UserID())

	stored, ok := NewIdentity(kv).StoredUserID()
	require.True(t, ok)
	assert.Equal(t, first, stored)
}

func TestUsernameIsGeneratedAndPersisted(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	id := NewIdentity(kv)

	name := id.Username()
	assert.Regexp(t, regexp.MustCompile(`^[A-Z][a-z]+[A-Z][a-z]+\d{1,3}$`), name)
	assert.Equal(t, name, id.Username())

	v, ok, _ := kv.Get(usernameKey)
	require.True(t, ok)
	assert.Equal(t, name, v)
}

func TestSetUsername(t *testing.T) {
	id := NewIdentity(storage.NewMemoryStore(0))

	require.NoError(t, id.SetUsername("  Xiaoming "))
	assert.Equal(t, "Xiaoming", id.Username())
	assert.ErrorIs(t, id.SetUsername(" "), ErrInvalidInput)
}
