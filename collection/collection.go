// Package collection keeps the user's favorite catalog entries.
package collection

import (
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"toon-shelf/catalog"
	"toon-shelf/storage"
)

const (
	collectionKey = "cartoon_collections"
	// legacyKey was used by earlier pages. It is read when collectionKey is
	// missing or unreadable and receives a copy of the list on removal.
	legacyKey = "cartoon_collection"
)

// Store is the ordered, de-duplicated set of favorite entry ids.
type Store struct {
	kv    storage.KeyValueStore
	log   *zap.Logger
	evict storage.Evictor
}

type Option func(*Store)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) { s.log = logger }
}

// WithEvictor sets what a write runs when the store is full.
func WithEvictor(evict storage.Evictor) Option {
	return func(s *Store) { s.evict = evict }
}

func NewStore(kv storage.KeyValueStore, opts ...Option) *Store {
	s := &Store{kv: kv, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// All returns the favorite ids in the order they were added.
func (s *Store) All() []catalog.EntryID {
	ids, ok := s.read(collectionKey)
	if ok {
		return ids
	}

	raw, found, err := s.kv.Get(legacyKey)
	if err != nil {
		s.log.Error("Failed to read legacy collection", zap.Error(err))
		return []catalog.EntryID{}
	}
	if !found {
		return []catalog.EntryID{}
	}
	legacy, ok := s.read(legacyKey)
	if !ok {
		return []catalog.EntryID{}
	}

	if err := storage.SetWithEviction(s.kv, collectionKey, raw, s.evict); err != nil {
		s.log.Warn("Failed to migrate legacy collection", zap.Error(err))
	} else {
		s.log.Info("Migrated legacy collection", zap.Int("entries", len(legacy)))
	}
	return legacy
}

// Add appends id. It reports false when id is already present or the write
// was dropped.
func (s *Store) Add(id catalog.EntryID) bool {
	ids := s.All()
	if indexOf(ids, id) >= 0 {
		return false
	}
	ids = append(ids, id)
	return s.write(collectionKey, ids)
}

// Remove deletes id and copies the result to the legacy key. It reports false
// when id was absent or the write was dropped.
func (s *Store) Remove(id catalog.EntryID) bool {
	ids := s.All()
	i := indexOf(ids, id)
	if i < 0 {
		return false
	}
	ids = append(ids[:i], ids[i+1:]...)
	if !s.write(collectionKey, ids) {
		return false
	}
	s.write(legacyKey, ids)
	return true
}

func (s *Store) Contains(id catalog.EntryID) bool {
	return indexOf(s.All(), id) >= 0
}

// Clear removes the collection under both keys.
func (s *Store) Clear() error {
	return errors.Join(s.kv.Remove(collectionKey), s.kv.Remove(legacyKey))
}

// read decodes the list under key. Ids that are neither numbers nor numeric
// strings are skipped; ok is false when the key is absent or not a list.
func (s *Store) read(key string) ([]catalog.EntryID, bool) {
	var raw []json.RawMessage
	found, err := storage.ReadJSON(s.kv, key, &raw)
	if err != nil {
		s.log.Warn("Ignoring unreadable collection", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !found || raw == nil {
		return nil, false
	}

	ids := make([]catalog.EntryID, 0, len(raw))
	for _, r := range raw {
		var id catalog.EntryID
		if err := json.Unmarshal(r, &id); err != nil {
			s.log.Debug("Skipping invalid collection id", zap.String("key", key), zap.ByteString("id", r))
			continue
		}
		if indexOf(ids, id) < 0 {
			ids = append(ids, id)
		}
	}
	return ids, true
}

func (s *Store) write(key string, ids []catalog.EntryID) bool {
	if err := storage.WriteJSON(s.kv, key, ids, s.evict); err != nil {
		s.log.Error("Dropped collection write", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func indexOf(ids []catalog.EntryID, id catalog.EntryID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}
