// Package ingest pulls media from Instagram into the staging store.
package ingest

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/renderinc/ig2ghost/internal/instagram"
	"github.com/renderinc/ig2ghost/internal/logging"
	"github.com/renderinc/ig2ghost/internal/storage"
)

// PageSource yields Graph API media pages.
type PageSource interface {
	Pages(ctx context.Context, paginate bool) iter.Seq2[*instagram.Page, error]
}

// Store persists staged media.
type Store interface {
	InsertMedia(ctx context.Context, items []storage.Media) (int, error)
}

// Indexer receives captioned top-level media for caption search.
type Indexer interface {
	IndexMedia(items []storage.Media) error
}

// Worker handles ingesting media from Instagram
type Worker struct {
	source  PageSource
	store   Store
	indexer Indexer // optional
	logger  *slog.Logger
}

// NewWorker creates a new ingest worker. indexer may be nil.
func NewWorker(source PageSource, store Store, indexer Indexer, logger *slog.Logger) *Worker {
	return &Worker{
		source:  source,
		store:   store,
		indexer: indexer,
		logger:  logging.OrDiscard(logger),
	}
}

// Stats holds ingest statistics
type Stats struct {
	Fetched  int
	Inserted int
	Ignored  int
	Indexed  int
	Duration time.Duration
}

// Ingest fetches every media record and stores the ones not yet staged.
// A request failure aborts before anything is written.
func (w *Worker) Ingest(ctx context.Context, paginate bool) (*Stats, error) {
	startTime := time.Now()
	stats := &Stats{}

	w.logger.Info("fetching instagram media", slog.Bool("paginate", paginate))

	var records []storage.Media
	for rec, err := range Records(w.source.Pages(ctx, paginate)) {
		if err != nil {
			return nil, fmt.Errorf("fetch media: %w", err)
		}
		if rec.IsTopLevel() && rec.TakenAt.IsZero() {
			w.logger.Warn("media has no usable timestamp, publish date left to ghost",
				slog.String("media_id", rec.MediaID),
			)
		}
		records = append(records, rec)
	}
	stats.Fetched = len(records)

	w.logger.Info("inserting media", slog.Int("count", stats.Fetched))
	inserted, err := w.store.InsertMedia(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("insert media: %w", err)
	}
	stats.Inserted = inserted
	stats.Ignored = stats.Fetched - inserted

	if w.indexer != nil {
		var captioned []storage.Media
		for _, rec := range records {
			if rec.IsTopLevel() && rec.Caption != nil {
				captioned = append(captioned, rec)
			}
		}
		if err := w.indexer.IndexMedia(captioned); err != nil {
			return nil, fmt.Errorf("index captions: %w", err)
		}
		stats.Indexed = len(captioned)
	}

	stats.Duration = time.Since(startTime)
	w.logger.Info("ingest complete",
		slog.Int("fetched", stats.Fetched),
		slog.Int("inserted", stats.Inserted),
		slog.Int("ignored", stats.Ignored),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

// Records flattens pages into staging rows: each top-level item, then each
// of its children. Children carry the parent's id and no caption.
func Records(pages iter.Seq2[*instagram.Page, error]) iter.Seq2[storage.Media, error] {
	return func(yield func(storage.Media, error) bool) {
		for page, err := range pages {
			if err != nil {
				yield(storage.Media{}, err)
				return
			}
			for i := range page.Data {
				item := &page.Data[i]
				parent := topLevel(item)
				if !yield(parent, nil) {
					return
				}
				for _, child := range item.ChildItems() {
					if !yield(childOf(parent, child), nil) {
						return
					}
				}
			}
		}
	}
}

func topLevel(item *instagram.Item) storage.Media {
	taken, _ := instagram.ParseTimestamp(item.Timestamp)
	return storage.Media{
		ParentID:  item.ID,
		MediaID:   item.ID,
		Caption:   item.Caption,
		MediaType: storage.MediaType(item.MediaType),
		MediaURL:  item.MediaURL,
		Permalink: item.Permalink,
		TakenAt:   taken,
	}
}

func childOf(parent storage.Media, child instagram.Child) storage.Media {
	taken, err := instagram.ParseTimestamp(child.Timestamp)
	if err != nil {
		taken = parent.TakenAt
	}
	return storage.Media{
		ParentID:  parent.MediaID,
		MediaID:   child.ID,
		MediaType: storage.MediaType(child.MediaType),
		MediaURL:  child.MediaURL,
		Permalink: child.Permalink,
		TakenAt:   taken,
	}
}
