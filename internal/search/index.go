// Package search keeps a full-text index of staged captions.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/storage"
)

// Index wraps a Bleve search index
type Index struct {
	index bleve.Index
}

// IndexedCaption represents a top-level media caption in the index
type IndexedCaption struct {
	MediaID   string
	Title     string
	Caption   string
	Tags      []string
	Permalink string
	TakenAt   time.Time
}

// SearchResult represents a search result
type SearchResult struct {
	MediaID   string              `json:"media_id"`
	Title     string              `json:"title"`
	Permalink string              `json:"permalink"`
	Score     float64             `json:"score"`
	Fragments map[string][]string `json:"fragments,omitempty"` // Highlighted snippets
}

// Source lists the captioned rows to rebuild from.
type Source interface {
	TopLevel(ctx context.Context) ([]storage.Media, error)
}

// lockTimeout bounds the wait for an index held by another process.
const lockTimeout = "2s"

// Open opens or creates a Bleve index
func Open(path string) (*Index, error) {
	idx, err := bleve.OpenUsing(path, map[string]interface{}{"bolt_timeout": lockTimeout})
	if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
		idx, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &Index{index: idx}, nil
}

// buildIndexMapping analyses titles and captions as English text and keeps
// tags as exact keywords.
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "en"

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("MediaID", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Title", textFieldMapping)
	docMapping.AddFieldMappingsAt("Caption", textFieldMapping)
	docMapping.AddFieldMappingsAt("Tags", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("Permalink", bleve.NewTextFieldMapping())
	docMapping.AddFieldMappingsAt("TakenAt", bleve.NewDateTimeFieldMapping())

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

// Close closes the index
func (i *Index) Close() error {
	return i.index.Close()
}

func newIndexedCaption(m storage.Media) *IndexedCaption {
	caption := m.CaptionText()
	return &IndexedCaption{
		MediaID:   m.MediaID,
		Title:     aggregate.Title(caption),
		Caption:   caption,
		Tags:      aggregate.Tags(caption)[1:],
		Permalink: m.Permalink,
		TakenAt:   m.TakenAt,
	}
}

// IndexMedia adds or replaces the captions of top-level items in one batch.
// Children are skipped.
func (i *Index) IndexMedia(items []storage.Media) error {
	batch := i.index.NewBatch()
	for _, m := range items {
		if !m.IsTopLevel() {
			continue
		}
		if err := batch.Index(m.MediaID, newIndexedCaption(m)); err != nil {
			return fmt.Errorf("batch index %s: %w", m.MediaID, err)
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := i.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// Rebuild indexes every top-level row in the store.
func (i *Index) Rebuild(ctx context.Context, src Source) (int, error) {
	items, err := src.TopLevel(ctx)
	if err != nil {
		return 0, fmt.Errorf("list media: %w", err)
	}
	if err := i.IndexMedia(items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// Search runs a query string query over titles, captions and tags. A bare
// "#tag" term matches the tag exactly.
func (i *Index) Search(queryStr string, limit int) ([]*SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}

	search := bleve.NewSearchRequestOptions(parseQuery(queryStr), limit, 0, false)
	search.Highlight = bleve.NewHighlightWithStyle("html")
	search.Fields = []string{"Title", "Permalink"}

	results, err := i.index.Search(search)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	searchResults := make([]*SearchResult, 0, len(results.Hits))
	for _, hit := range results.Hits {
		result := &SearchResult{
			MediaID:   hit.ID,
			Score:     hit.Score,
			Fragments: hit.Fragments,
		}
		if title, ok := hit.Fields["Title"].(string); ok {
			result.Title = title
		}
		if permalink, ok := hit.Fields["Permalink"].(string); ok {
			result.Permalink = permalink
		}
		searchResults = append(searchResults, result)
	}

	return searchResults, nil
}

// Count returns the number of captions in the index
func (i *Index) Count() (uint64, error) {
	return i.index.DocCount()
}
