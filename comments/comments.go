// Package comments stores per-entry comment threads and their likes.
package comments

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"

	"github.com/sethvargo/go-password/password"
	"go.uber.org/zap"

	"toon-shelf/catalog"
	"toon-shelf/storage"
)

const (
	commentsKeyPrefix = "cartoon_comments_"

	// MaxContentLength is the longest comment the input form accepts.
	// The store does not enforce it.
	MaxContentLength = 500

	// DefaultUsername is used when a comment is posted without a name.
	DefaultUsername = "Guest"

	commentIDLength = 16
)

// ErrInvalidInput is returned by Add for a missing entry id or blank content.
var ErrInvalidInput = errors.New("invalid comment input")

// Comment is one posted comment.
type Comment struct {
	ID       string
	Username string
	Content  string
	PostedAt time.Time
	Likes    int
	LikedBy  []string
}

// Liked reports whether userID has liked the comment.
func (c Comment) Liked(userID string) bool {
	for _, u := range c.LikedBy {
		if u == userID {
			return true
		}
	}
	return false
}

type commentRecord struct {
	ID        string   `json:"id"`
	Username  string   `json:"username"`
	Content   string   `json:"content"`
	Timestamp int64    `json:"timestamp"`
	Likes     int      `json:"likes"`
	LikedBy   []string `json:"likedBy"`
}

func (r commentRecord) comment() Comment {
	likedBy := make([]string, len(r.LikedBy))
	copy(likedBy, r.LikedBy)
	return Comment{
		ID:       r.ID,
		Username: r.Username,
		Content:  r.Content,
		PostedAt: storage.FromUnixMillis(r.Timestamp),
		Likes:    r.Likes,
		LikedBy:  likedBy,
	}
}

// Store keeps one comment list per catalog entry.
type Store struct {
	kv       storage.KeyValueStore
	identity *Identity
	now      func() time.Time
	log      *zap.Logger
	evict    storage.Evictor
	newID    func() (string, error)
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// WithEvictor sets what a write runs when the store is full.
func WithEvictor(evict storage.Evictor) Option {
	return func(s *Store) { s.evict = evict }
}

// NewStore creates a comment store. Likes given without a user id are
// attributed to identity; nil means an Identity on kv.
func NewStore(kv storage.KeyValueStore, identity *Identity, opts ...Option) *Store {
	s := &Store{
		kv:       kv,
		identity: identity,
		now:      time.Now,
		log:      zap.NewNop(),
		newID:    newCommentID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.identity == nil {
		s.identity = NewIdentity(kv, WithIdentityLogger(s.log))
	}
	return s
}

// List returns the comments on id, newest first.
func (s *Store) List(id catalog.EntryID) []Comment {
	records := s.read(id)
	out := make([]Comment, len(records))
	for i, r := range records {
		out[i] = r.comment()
	}
	return out
}

// Count returns how many comments id has.
func (s *Store) Count(id catalog.EntryID) int {
	return len(s.read(id))
}

// Add posts a comment on id. Content and username are trimmed and a blank
// username becomes DefaultUsername.
func (s *Store) Add(id catalog.EntryID, content, username string) (Comment, error) {
	content = strings.TrimSpace(content)
	if id == 0 || content == "" {
		return Comment{}, ErrInvalidInput
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = DefaultUsername
	}

	commentID, err := s.newID()
	if err != nil {
		return Comment{}, fmt.Errorf("failed to generate comment id: %w", err)
	}

	record := commentRecord{
		ID:        commentID,
		Username:  username,
		Content:   content,
		Timestamp: storage.UnixMillis(s.now()),
		LikedBy:   []string{},
	}
	records := append(s.read(id), record)
	if err := s.write(id, records); err != nil {
		return Comment{}, err
	}
	return record.comment(), nil
}

// Remove deletes a comment. It reports false when the comment does not exist
// or the write was dropped.
func (s *Store) Remove(id catalog.EntryID, commentID string) bool {
	records := s.read(id)
	kept := make([]commentRecord, 0, len(records))
	for _, r := range records {
		if r.ID != commentID {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(records) {
		return false
	}
	return s.write(id, kept) == nil
}

// ToggleLike adds or withdraws userID's like. A blank userID stands for the
// local identity. It reports false when the comment does not exist or the
// write was dropped.
func (s *Store) ToggleLike(id catalog.EntryID, commentID, userID string) (Comment, bool) {
	records := s.read(id)
	i := indexOf(records, commentID)
	if i < 0 {
		return Comment{}, false
	}

	if userID == "" {
		userID = s.identity.UserID()
	}

	r := &records[i]
	if j := indexOfString(r.LikedBy, userID); j >= 0 {
		r.LikedBy = append(r.LikedBy[:j], r.LikedBy[j+1:]...)
		r.Likes = max(0, r.Likes-1)
	} else {
		if r.LikedBy == nil {
			r.LikedBy = []string{}
		}
		r.LikedBy = append(r.LikedBy, userID)
		r.Likes++
	}

	if err := s.write(id, records); err != nil {
		return Comment{}, false
	}
	return r.comment(), true
}

// IsLiked reports whether userID liked the comment. A blank userID stands for
// the local identity if one has been created.
func (s *Store) IsLiked(id catalog.EntryID, commentID, userID string) bool {
	if userID == "" {
		stored, ok := s.identity.StoredUserID()
		if !ok {
			return false
		}
		userID = stored
	}

	records := s.read(id)
	i := indexOf(records, commentID)
	if i < 0 {
		return false
	}
	return indexOfString(records[i].LikedBy, userID) >= 0
}

func (s *Store) read(id catalog.EntryID) []commentRecord {
	var records []commentRecord
	found, err := storage.ReadJSON(s.kv, commentsKey(id), &records)
	if err != nil {
		s.log.Warn("Ignoring unreadable comments", zap.Int("cartoon_id", int(id)), zap.Error(err))
		return []commentRecord{}
	}
	if !found || records == nil {
		return []commentRecord{}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp > records[j].Timestamp
	})
	return records
}

func (s *Store) write(id catalog.EntryID, records []commentRecord) error {
	if err := storage.WriteJSON(s.kv, commentsKey(id), records, s.evict); err != nil {
		s.log.Error("Dropped comments write", zap.Int("cartoon_id", int(id)), zap.Error(err))
		return err
	}
	return nil
}

func commentsKey(id catalog.EntryID) string {
	return fmt.Sprintf("%s%d", commentsKeyPrefix, id)
}

// newCommentID returns a random lowercase alphanumeric token.
func newCommentID() (string, error) {
	return password.Generate(commentIDLength, commentIDDigitCount(rand.IntN), 0, true, true)
}

// commentIDDigitCount draws how many of the id's characters are digits, as if
// each one were picked uniformly from [a-z0-9].
func commentIDDigitCount(intN func(int) int) int {
	n := 0
	for range commentIDLength {
		if intN(len(password.LowerLetters)+len(password.Digits)) < len(password.Digits) {
			n++
		}
	}
	return n
}

func indexOf(records []commentRecord, commentID string) int {
	for i, r := range records {
		if r.ID == commentID {
			return i
		}
	}
	return -1
}

func indexOfString(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return -1
}
