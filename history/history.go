// Package history records what the user watched and where playback stopped.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"toon-shelf/catalog"
	"toon-shelf/storage"
)

const (
	historyKey        = "play_history"
	progressKeyPrefix = "play_progress_"

	// MaxEntries caps the history list.
	MaxEntries = 50
	// ProgressTTL is how long a saved playback position is offered back.
	ProgressTTL = 24 * time.Hour
)

// Entry is one watched episode.
type Entry struct {
	EntryID   catalog.EntryID
	Episode   int
	WatchedAt time.Time
}

// Progress is the saved playback position of one episode.
type Progress struct {
	EntryID catalog.EntryID
	Episode int
	// Position is the offset into the episode in seconds.
	Position float64
	SavedAt  time.Time
}

type historyRecord struct {
	CartoonID     catalog.EntryID `json:"cartoonId"`
	EpisodeNumber int             `json:"episodeNumber"`
	Timestamp     int64           `json:"timestamp"`
}

type progressRecord struct {
	CartoonID     catalog.EntryID `json:"cartoonId"`
	EpisodeNumber int             `json:"episodeNumber"`
	CurrentTime   float64         `json:"currentTime"`
	Timestamp     int64           `json:"timestamp"`
}

// Store keeps the watch history list and per-episode playback progress.
type Store struct {
	kv    storage.KeyValueStore
	now   func() time.Time
	log   *zap.Logger
	evict storage.Evictor
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

func NewStore(kv storage.KeyValueStore, opts ...Option) *Store {
	s := &Store{kv: kv, now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

// RecordView moves the (id, episode) pair to the front of the history,
// stamped with the current time, and trims the list to MaxEntries.
func (s *Store) RecordView(id catalog.EntryID, episode int) bool {
	records := s.readHistory()

	kept := make([]historyRecord, 0, len(records)+1)
	kept = append(kept, historyRecord{
		CartoonID:     id,
		EpisodeNumber: episode,
		Timestamp:     storage.UnixMillis(s.now()),
	})
	for _, r := range records {
		if r.CartoonID == id && r.EpisodeNumber == episode {
			continue
		}
		kept = append(kept, r)
	}
	if len(kept) > MaxEntries {
		kept = kept[:MaxEntries]
	}

	if err := storage.WriteJSON(s.kv, historyKey, kept, s.evict); err != nil {
		s.log.Error("Dropped history write", zap.Int("cartoon_id", int(id)), zap.Int("episode", episode), zap.Error(err))
		return false
	}
	return true
}

// All returns the history, newest first.
func (s *Store) All() []Entry {
	records := s.readHistory()
	out := make([]Entry, len(records))
	for i, r := range records {
		out[i] = Entry{
			EntryID:   r.CartoonID,
			Episode:   r.EpisodeNumber,
			WatchedAt: storage.FromUnixMillis(r.Timestamp),
		}
	}
	return out
}

// SaveProgress stores the playback position and records the view.
func (s *Store) SaveProgress(id catalog.EntryID, episode int, seconds float64) bool {
	record := progressRecord{
		CartoonID:     id,
		EpisodeNumber: episode,
		CurrentTime:   seconds,
		Timestamp:     storage.UnixMillis(s.now()),
	}
	if err := storage.WriteJSON(s.kv, progressKey(id, episode), record, s.evict); err != nil {
		s.log.Error("Dropped progress write", zap.Int("cartoon_id", int(id)), zap.Int("episode", episode), zap.Error(err))
		return false
	}
	return s.RecordView(id, episode)
}

// Progress returns the saved position while it is younger than ProgressTTL.
// Stale records are left in place for PurgeExpiredProgress.
func (s *Store) Progress(id catalog.EntryID, episode int) (Progress, bool) {
	var record progressRecord
	found, err := storage.ReadJSON(s.kv, progressKey(id, episode), &record)
	if err != nil {
		s.log.Warn("Ignoring unreadable progress", zap.Int("cartoon_id", int(id)), zap.Int("episode", episode), zap.Error(err))
		return Progress{}, false
	}
	if !found {
		return Progress{}, false
	}

	saved := storage.Expiring[progressRecord]{Value: record, CapturedAt: storage.FromUnixMillis(record.Timestamp)}
	record, fresh := saved.Read(ProgressTTL, s.now())
	if !fresh {
		return Progress{}, false
	}
	return Progress{
		EntryID:  id,
		Episode:  episode,
		Position: record.CurrentTime,
		SavedAt:  saved.CapturedAt,
	}, true
}

// Clear drops the history list. Saved progress is kept.
func (s *Store) Clear() error {
	return s.kv.Remove(historyKey)
}

// PurgeExpiredProgress removes progress records older than ProgressTTL and
// those that cannot be read. It returns how many keys were removed.
func (s *Store) PurgeExpiredProgress() (int, error) {
	keys, err := s.kv.Keys()
	if err != nil {
		return 0, fmt.Errorf("failed to list keys: %w", err)
	}

	now := s.now()
	purged := 0
	var errs []error
	for _, key := range keys {
		if !strings.HasPrefix(key, progressKeyPrefix) {
			continue
		}

		var record progressRecord
		found, err := storage.ReadJSON(s.kv, key, &record)
		var parseErr *storage.ParseError
		switch {
		case errors.As(err, &parseErr):
		case err != nil:
			errs = append(errs, err)
			continue
		case !found:
			continue
		case storage.Fresh(storage.FromUnixMillis(record.Timestamp), now, ProgressTTL):
			continue
		}

		if err := s.kv.Remove(key); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %q: %w", key, err))
			continue
		}
		purged++
	}

	if purged > 0 {
		s.log.Info("Purged expired playback progress", zap.Int("removed", purged))
	}
	return purged, errors.Join(errs...)
}

// readHistory decodes the stored list. Records that do not decode or lack an
// entry id are skipped; the rest keep their order.
func (s *Store) readHistory() []historyRecord {
	var raw []json.RawMessage
	found, err := storage.ReadJSON(s.kv, historyKey, &raw)
	if err != nil {
		s.log.Warn("Ignoring unreadable history", zap.Error(err))
		return nil
	}
	if !found {
		return nil
	}

	records := make([]historyRecord, 0, len(raw))
	for _, r := range raw {
		var rec historyRecord
		if err := json.Unmarshal(r, &rec); err != nil || rec.CartoonID == 0 {
			s.log.Debug("Skipping invalid history record", zap.ByteString("record", r))
			continue
		}
		records = append(records, rec)
	}
	return records
}

func progressKey(id catalog.EntryID, episode int) string {
	return fmt.Sprintf("%s%d_%d", progressKeyPrefix, id, episode)
}
