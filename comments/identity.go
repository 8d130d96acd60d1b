package comments

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"toon-shelf/storage"
)

const (
	userIDKey   = "user_id"
	usernameKey = "comment_username"

	userIDPrefix = "user_"
)

var (
	usernameAdjectives = []string{"Happy", "Clever", "Brave", "Kind", "Lovely", "Sunny", "Warm", "Bright"}
	usernameNouns      = []string{"Fawn", "Rabbit", "Kitten", "Bird", "Star", "Moon", "Flower", "Rainbow"}
)

// Identity is the per-browser pseudo user. Both values are created on first
// use and persisted.
type Identity struct {
	kv    storage.KeyValueStore
	log   *zap.Logger
	evict storage.Evictor
}

type IdentityOption func(*Identity)

func WithIdentityLogger(logger *zap.Logger) IdentityOption {
	return func(i *Identity) { i.log = logger }
}

func WithIdentityEvictor(evict storage.Evictor) IdentityOption {
	return func(i *Identity) { i.evict = evict }
}

func NewIdentity(kv storage.KeyValueStore, opts ...IdentityOption) *Identity {
	i := &Identity{kv: kv, log: zap.NewNop()}
	for _, opt := range opts {
		opt(i)
	}
	if i.log == nil {
		i.log = zap.NewNop()
	}
	return i
}

// StoredUserID returns the user id if one has been created.
func (i *Identity) StoredUserID() (string, bool) {
	id, ok, err := i.kv.Get(userIDKey)
	if err != nil {
		i.log.Warn("Failed to read user id", zap.Error(err))
		return "", false
	}
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// UserID returns the user id, creating it if needed. When the new id cannot
// be saved it is still returned for this call.
func (i *Identity) UserID() string {
	if id, ok := i.StoredUserID(); ok {
		return id
	}
	id := userIDPrefix + uuid.NewString()
	if err := storage.SetWithEviction(i.kv, userIDKey, id, i.evict); err != nil {
		i.log.Error("Dropped user id write", zap.Error(err))
	}
	return id
}

// Username returns the display name, generating one if needed.
func (i *Identity) Username() string {
	name, ok, err := i.kv.Get(usernameKey)
	if err != nil {
		i.log.Warn("Failed to read username", zap.Error(err))
	}
	if ok && name != "" {
		return name
	}

	name = generateUsername()
	if err := storage.SetWithEviction(i.kv, usernameKey, name, i.evict); err != nil {
		i.log.Error("Dropped username write", zap.Error(err))
	}
	return name
}

// SetUsername replaces the display name. A blank name is rejected.
func (i *Identity) SetUsername(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: blank username", ErrInvalidInput)
	}
	return storage.SetWithEviction(i.kv, usernameKey, name, i.evict)
}

func generateUsername() string {
	adj := usernameAdjectives[rand.IntN(len(usernameAdjectives))]
	noun := usernameNouns[rand.IntN(len(usernameNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, rand.IntN(1000))
}
