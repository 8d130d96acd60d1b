// Package session bundles the catalog snapshot and the user-state stores that
// one page load works with.
package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"toon-shelf/catalog"
	"toon-shelf/collection"
	"toon-shelf/comments"
	"toon-shelf/history"
	"toon-shelf/storage"
)

// Catalog is the part of catalog.Cache a session reads from.
type Catalog interface {
	Load(ctx context.Context) []catalog.Entry
	All() []catalog.Entry
	GetByID(id catalog.EntryID) (catalog.Entry, bool)
	Evictor() storage.Evictor
}

// WatchItem is a history entry joined with its catalog entry.
type WatchItem struct {
	Entry   catalog.Entry
	Episode int
	// Progress is set when a fresh playback position exists.
	Progress  *history.Progress
	WatchedAt time.Time
}

// Session owns every store for one page load. All stores share one
// key-value store and purge the catalog cache when it fills up.
type Session struct {
	Catalog    Catalog
	Collection *collection.Store
	History    *history.Store
	Comments   *comments.Store
	Identity   *comments.Identity

	log *zap.Logger

	mu      sync.RWMutex
	current *catalog.Entry
}

type options struct {
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*options)

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New wires the stores onto kv.
func New(kv storage.KeyValueStore, cat Catalog, opts ...Option) *Session {
	o := options{logger: zap.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	evict := cat.Evictor()
	identity := comments.NewIdentity(kv,
		comments.WithIdentityLogger(o.logger.Named("identity")),
		comments.WithIdentityEvictor(evict),
	)

	return &Session{
		Catalog: cat,
		Collection: collection.NewStore(kv,
			collection.WithLogger(o.logger.Named("collection")),
			collection.WithEvictor(evict),
		),
		History: history.NewStore(kv,
			history.WithLogger(o.logger.Named("history")),
			history.WithEvictor(evict),
			history.WithClock(o.now),
		),
		Comments: comments.NewStore(kv, identity,
			comments.WithLogger(o.logger.Named("comments")),
			comments.WithEvictor(evict),
			comments.WithClock(o.now),
		),
		Identity: identity,
		log:      o.logger,
	}
}

// Open loads the catalog snapshot and returns it.
func (s *Session) Open(ctx context.Context) []catalog.Entry {
	entries := s.Catalog.Load(ctx)
	s.log.Debug("Session opened", zap.Int("entries", len(entries)))
	return entries
}

// Entries returns the loaded catalog snapshot.
func (s *Session) Entries() []catalog.Entry {
	return s.Catalog.All()
}

// CollectedEntries resolves the collection against the snapshot in
// collection order. Ids missing from the snapshot are skipped.
func (s *Session) CollectedEntries() []catalog.Entry {
	ids := s.Collection.All()
	out := make([]catalog.Entry, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.Catalog.GetByID(id); ok {
			out = append(out, e)
		}
	}
	return out
}

// ContinueWatching joins the newest history entries with the snapshot and any
// fresh playback progress. limit <= 0 returns everything.
func (s *Session) ContinueWatching(limit int) []WatchItem {
	var out []WatchItem
	for _, h := range s.History.All() {
		if limit > 0 && len(out) >= limit {
			break
		}
		e, ok := s.Catalog.GetByID(h.EntryID)
		if !ok {
			continue
		}
		item := WatchItem{Entry: e, Episode: h.Episode, WatchedAt: h.WatchedAt}
		if p, ok := s.History.Progress(h.EntryID, h.Episode); ok {
			item.Progress = &p
		}
		out = append(out, item)
	}
	return out
}

// Focus makes id the entry the page is showing. It reports false when id is
// not in the snapshot.
func (s *Session) Focus(id catalog.EntryID) (catalog.Entry, bool) {
	e, ok := s.Catalog.GetByID(id)
	if !ok {
		return catalog.Entry{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &e
	return e, true
}

// Current returns the focused entry.
func (s *Session) Current() (catalog.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return catalog.Entry{}, false
	}
	return *s.current, true
}
