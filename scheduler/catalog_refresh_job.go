package scheduler

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"toon-shelf/catalog"
	"toon-shelf/notifier"
)

// CatalogSource is the part of catalog.Cache the refresh job drives.
type CatalogSource interface {
	All() []catalog.Entry
	Refresh(ctx context.Context) ([]catalog.Entry, error)
}

// ChangeNotifier is told about catalog changes.
type ChangeNotifier interface {
	NotifyCatalogChange(change notifier.CatalogChange) error
}

// CatalogRefreshJob refetches the catalog and reports what changed.
type CatalogRefreshJob struct {
	source    CatalogSource
	sourceURL string
	notifier  ChangeNotifier
	log       *zap.Logger
}

// NewCatalogRefreshJob creates the job. A nil notifier disables change mail.
func NewCatalogRefreshJob(source CatalogSource, sourceURL string, n ChangeNotifier, logger *zap.Logger) *CatalogRefreshJob {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogRefreshJob{
		source:    source,
		sourceURL: sourceURL,
		notifier:  n,
		log:       logger,
	}
}

func (j *CatalogRefreshJob) Name() string {
	return "catalog_refresh"
}

// Run refreshes the catalog. Changes are only reported when a previous
// snapshot exists, so the first run after startup sends nothing.
func (j *CatalogRefreshJob) Run(ctx context.Context) error {
	previous := j.source.All()

	entries, err := j.source.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh catalog from %s: %w", j.sourceURL, err)
	}

	change := DiffCatalog(previous, entries)
	change.SourceURL = j.sourceURL
	j.log.Info("Catalog refreshed",
		zap.Int("entries", len(entries)),
		zap.Int("added", len(change.Added)),
		zap.Int("removed", len(change.Removed)),
	)

	if len(previous) == 0 || change.Empty() || j.notifier == nil {
		return nil
	}
	if err := j.notifier.NotifyCatalogChange(change); err != nil {
		j.log.Error("Failed to send catalog change notification", zap.Error(err))
	}
	return nil
}

// DiffCatalog lists entries of next missing from previous and the reverse,
// each in the order of its own snapshot.
func DiffCatalog(previous, next []catalog.Entry) notifier.CatalogChange {
	before := make(map[catalog.EntryID]bool, len(previous))
	for _, e := range previous {
		before[e.ID] = true
	}
	after := make(map[catalog.EntryID]bool, len(next))
	for _, e := range next {
		after[e.ID] = true
	}

	var change notifier.CatalogChange
	for _, e := range next {
		if !before[e.ID] {
			change.Added = append(change.Added, e)
		}
	}
	for _, e := range previous {
		if !after[e.ID] {
			change.Removed = append(change.Removed, e)
		}
	}
	return change
}
