package ingest

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/ig2ghost/internal/instagram"
	"github.com/renderinc/ig2ghost/internal/logging"
	"github.com/renderinc/ig2ghost/internal/storage"
)

type fakeSource struct {
	pages []*instagram.Page
	err   error
}

func (f *fakeSource) Pages(ctx context.Context, paginate bool) iter.Seq2[*instagram.Page, error] {
	return func(yield func(*instagram.Page, error) bool) {
		for _, p := range f.pages {
			if !yield(p, nil) {
				return
			}
		}
		if f.err != nil {
			yield(nil, f.err)
		}
	}
}

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) InsertMedia(ctx context.Context, items []storage.Media) (int, error) {
	args := m.Called(ctx, items)
	return args.Int(0), args.Error(1)
}

type recordingIndexer struct {
	items []storage.Media
}

func (r *recordingIndexer) IndexMedia(items []storage.Media) error {
	r.items = append(r.items, items...)
	return nil
}

func strPtr(s string) *string { return &s }

func samplePage() *instagram.Page {
	album := instagram.Item{
		ID:        "100",
		Caption:   strPtr("Sunset walk. #beach"),
		MediaType: "CAROUSEL_ALBUM",
		MediaURL:  "https://cdn.example.com/a.jpg",
		Permalink: "https://instagram.com/p/100",
		Timestamp: "2021-05-01T10:00:00+0000",
	}
	album.Children = &instagram.Children{Data: []instagram.Child{
		{ID: "101", MediaType: "IMAGE", MediaURL: "https://cdn.example.com/a.jpg", Timestamp: "2021-05-01T10:00:01+0000"},
		{ID: "102", MediaType: "VIDEO", MediaURL: "https://cdn.example.com/b.mp4"},
	}}
	single := instagram.Item{
		ID:        "200",
		MediaType: "IMAGE",
		MediaURL:  "https://cdn.example.com/c.jpg",
		Timestamp: "2021-04-01T10:00:00+0000",
	}
	return &instagram.Page{Data: []instagram.Item{album, single}}
}

func TestRecordsFlattensChildren(t *testing.T) {
	src := &fakeSource{pages: []*instagram.Page{samplePage()}}

	var got []storage.Media
	for rec, err := range Records(src.Pages(context.Background(), true)) {
		require.NoError(t, err)
		got = append(got, rec)
	}

	require.Len(t, got, 4)
	assert.Equal(t, "100", got[0].ParentID)
	assert.Equal(t, "100", got[0].MediaID)
	assert.Equal(t, "Sunset walk. #beach", got[0].CaptionText())

	assert.Equal(t, "100", got[1].ParentID)
	assert.Equal(t, "101", got[1].MediaID)
	assert.Nil(t, got[1].Caption)
	assert.Equal(t, time.Date(2021, 5, 1, 10, 0, 1, 0, time.UTC), got[1].TakenAt)

	// missing child timestamp inherits the parent's
	assert.Equal(t, got[0].TakenAt, got[2].TakenAt)
	assert.True(t, got[2].MediaType.IsVideo())

	assert.Equal(t, "200", got[3].ParentID)
	assert.Nil(t, got[3].Caption)
}

func TestIngestStoresAndIndexes(t *testing.T) {
	src := &fakeSource{pages: []*instagram.Page{samplePage()}}
	store := new(MockStore)
	store.On("InsertMedia", mock.Anything, mock.MatchedBy(func(items []storage.Media) bool {
		return len(items) == 4
	})).Return(3, nil)
	idx := &recordingIndexer{}

	stats, err := NewWorker(src, store, idx, nil).Ingest(context.Background(), true)
	require.NoError(t, err)
	store.AssertExpectations(t)

	assert.Equal(t, 4, stats.Fetched)
	assert.Equal(t, 3, stats.Inserted)
	assert.Equal(t, 1, stats.Ignored)
	assert.Equal(t, 1, stats.Indexed)
	require.Len(t, idx.items, 1)
	assert.Equal(t, "100", idx.items[0].MediaID)
}

func TestIngestRequestFailureWritesNothing(t *testing.T) {
	boom := errors.New("connection reset")
	src := &fakeSource{pages: []*instagram.Page{samplePage()}, err: boom}
	store := new(MockStore)

	_, err := NewWorker(src, store, nil, nil).Ingest(context.Background(), true)
	require.ErrorIs(t, err, boom)
	store.AssertNotCalled(t, "InsertMedia", mock.Anything, mock.Anything)
}

func TestIngestIsIdempotentAgainstRealStore(t *testing.T) {
	db, err := storage.Open(storage.DriverSQLite, t.TempDir()+"/staging.db")
	require.NoError(t, err)
	defer db.Close()

	src := &fakeSource{pages: []*instagram.Page{samplePage()}}
	w := NewWorker(src, db, nil, nil)

	first, err := w.Ingest(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 4, first.Inserted)

	second, err := w.Ingest(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 4, second.Ignored)
}

func TestIngestWarnsOnMissingTimestamp(t *testing.T) {
	page := &instagram.Page{Data: []instagram.Item{
		{ID: "300", MediaType: "IMAGE", MediaURL: "https://cdn.example.com/d.jpg", Timestamp: "not-a-date"},
		{ID: "400", MediaType: "IMAGE", MediaURL: "https://cdn.example.com/e.jpg", Timestamp: "2021-04-01T10:00:00+0000"},
	}}
	store := new(MockStore)
	store.On("InsertMedia", mock.Anything, mock.MatchedBy(func(items []storage.Media) bool {
		return len(items) == 2 && items[0].TakenAt.IsZero() && !items[1].TakenAt.IsZero()
	})).Return(2, nil)

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Output: &buf})
	require.NoError(t, err)

	stats, err := NewWorker(&fakeSource{pages: []*instagram.Page{page}}, store, nil, logger).Ingest(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)
	store.AssertExpectations(t)

	assert.Equal(t, 1, strings.Count(buf.String(), "no usable timestamp"))
	assert.Contains(t, buf.String(), `"media_id":"300"`)
}
