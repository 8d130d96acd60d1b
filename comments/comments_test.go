package comments

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toon-shelf/storage"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func (c *clock) tick() { c.now = c.now.Add(time.Second) }

func newTestStore(kv storage.KeyValueStore) (*Store, *clock) {
	c := &clock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	return NewStore(kv, NewIdentity(kv), WithClock(c.Now)), c
}

var commentIDPattern = regexp.MustCompile(`^[a-z0-9]{16}$`)

func TestAddAndList(t *testing.T) {
	s, c := newTestStore(storage.NewMemoryStore(0))

	first, err := s.Add(1, "  What a classic!  ", "  Ming ")
	require.NoError(t, err)
	assert.Equal(t, "What a classic!", first.Content)
	assert.Equal(t, "Ming", first.Username)
	assert.Equal(t, 0, first.Likes)
	assert.Empty(t, first.LikedBy)
	assert.Regexp(t, commentIDPattern, first.ID)

	c.tick()
	second, err := s.Add(1, "Watched it twice", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultUsername, second.Username)
	assert.NotEqual(t, first.ID, second.ID)

	list := s.List(1)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")
	assert.Equal(t, first.ID, list[1].ID)
	assert.Equal(t, c.now.UnixMilli(), list[0].PostedAt.UnixMilli())
	assert.Equal(t, 2, s.Count(1))
	assert.Empty(t, s.List(2))
}

func TestAddRejectsInvalidInput(t *testing.T) {
	s, _ := newTestStore(storage.NewMemoryStore(0))

	_, err := s.Add(1, "   ", "Ming")
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = s.Add(0, "hello", "Ming")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, s.Count(1))
}

func TestAddDoesNotCapLength(t *testing.T) {
	s, _ := newTestStore(storage.NewMemoryStore(0))
	long := strings.Repeat("a", MaxContentLength+50)

	c, err := s.Add(1, long, "")
	require.NoError(t, err)
	assert.Len(t, c.Content, MaxContentLength+50)
}

func TestRemove(t *testing.T) {
	s, _ := newTestStore(storage.NewMemoryStore(0))
	c, err := s.Add(1, "bye", "")
	require.NoError(t, err)

	assert.False(t, s.Remove(1, "missing"))
	assert.True(t, s.Remove(1, c.ID))
	assert.Empty(t, s.List(1))
	assert.False(t, s.Remove(1, c.ID))
}

func TestToggleLikeTwiceRestoresState(t *testing.T) {
	s, _ := newTestStore(storage.NewMemoryStore(0))
	c, err := s.Add(1, "nice", "")
	require.NoError(t, err)

	liked, ok := s.ToggleLike(1, c.ID, "user_a")
	require.True(t, ok)
	assert.Equal(t, 1, liked.Likes)
	assert.True(t, s.IsLiked(1, c.ID, "user_a"))
	assert.False(t, s.IsLiked(1, c.ID, "user_b"))

	unliked, ok := s.ToggleLike(1, c.ID, "user_a")
	require.True(t, ok)
	assert.Equal(t, 0, unliked.Likes)
	assert.False(t, s.IsLiked(1, c.ID, "user_a"))
	assert.Empty(t, s.List(1)[0].LikedBy)
}

func TestToggleLikeMissingComment(t *testing.T) {
	s, _ := newTestStore(storage.NewMemoryStore(0))
	_, ok := s.ToggleLike(1, "nope", "user_a")
	assert.False(t, ok)
	assert.False(t, s.IsLiked(1, "nope", "user_a"))
}

func TestToggleLikeUsesLocalIdentity(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	s, _ := newTestStore(kv)
	c, err := s.Add(1, "nice", "")
	require.NoError(t, err)

	assert.False(t, s.IsLiked(1, c.ID, ""), "no identity yet")

	liked, ok := s.ToggleLike(1, c.ID, "")
	require.True(t, ok)
	require.Len(t, liked.LikedBy, 1)

	stored, ok, _ := kv.Get(userIDKey)
	require.True(t, ok)
	assert.Equal(t, stored, liked.LikedBy[0])
	assert.True(t, strings.HasPrefix(stored, "user_"))
	assert.True(t, s.IsLiked(1, c.ID, ""))
	assert.True(t, liked.Liked(stored))
}

func TestLikesNeverNegative(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set("cartoon_comments_1",
		`[{"id":"abc","username":"x","content":"y","timestamp":1,"likes":0,"likedBy":["user_a"]}]`))
	s, _ := newTestStore(kv)

	c, ok := s.ToggleLike(1, "abc", "user_a")
	require.True(t, ok)
	assert.Equal(t, 0, c.Likes)
}

func TestLikedByMissingInStoredRecord(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set("cartoon_comments_1",
		`[{"id":"abc","username":"x","content":"y","timestamp":1}]`))
	s, _ := newTestStore(kv)

	c, ok := s.ToggleLike(1, "abc", "user_a")
	require.True(t, ok)
	assert.Equal(t, 1, c.Likes)
	assert.Equal(t, []string{"user_a"}, c.LikedBy)
}

func TestUnreadableCommentsReadAsEmpty(t *testing.T) {
	kv := storage.NewMemoryStore(0)
	require.NoError(t, kv.Set("cartoon_comments_1", "]["))
	s, _ := newTestStore(kv)

	assert.Empty(t, s.List(1))
	_, err := s.Add(1, "fresh start", "")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Count(1))
}

func TestAddFailsWhenStoreIsFull(t *testing.T) {
	s, _ := newTestStore(storage.NewMemoryStore(20))
	_, err := s.Add(1, "this will not fit", "")
	assert.ErrorIs(t, err, storage.ErrQuotaExceeded)
}

func TestCommentIDDigitCount(t *testing.T) {
	assert.Equal(t, 16, commentIDDigitCount(func(int) int { return 0 }))
	assert.Equal(t, 0, commentIDDigitCount(func(n int) int { return n - 1 }))
}

func TestCommentIDsVaryInDigitCount(t *testing.T) {
	counts := make(map[int]bool)
	for range 200 {
		id, err := newCommentID()
		require.NoError(t, err)
		require.Regexp(t, commentIDPattern, id)
		digits := 0
		for _, r := range id {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		counts[digits] = true
	}
	assert.Greater(t, len(counts), 1)
}
