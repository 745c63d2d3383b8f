package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/ig2ghost/internal/search"
	"github.com/renderinc/ig2ghost/internal/storage"
)

type fakeStore struct {
	rows []storage.Media
	err  error
}

func (f *fakeStore) Pending(ctx context.Context) ([]storage.Media, error) {
	return f.rows, f.err
}

func (f *fakeStore) Count(ctx context.Context) (*storage.Counts, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &storage.Counts{Total: len(f.rows), Pending: len(f.rows), Groups: 2}, nil
}

func (f *fakeStore) Get(ctx context.Context, mediaID string) (*storage.Media, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.rows {
		if f.rows[i].MediaID == mediaID {
			return &f.rows[i], nil
		}
	}
	return nil, nil
}

type fakeSearcher struct {
	lastQuery string
}

func (f *fakeSearcher) Search(query string, limit int) ([]*search.SearchResult, error) {
	f.lastQuery = query
	return []*search.SearchResult{{MediaID: "1", Title: "Beach day", Score: 1.5}}, nil
}

func (f *fakeSearcher) Count() (uint64, error) { return 7, nil }

func strPtr(s string) *string { return &s }

func pendingRows() []storage.Media {
	taken := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
	return []storage.Media{
		{ParentID: "1", MediaID: "1", Caption: strPtr("Beach day. #sun"), MediaType: storage.MediaTypeCarouselAlbum,
			MediaURL: "https://cdn.example.com/1.jpg", Permalink: "https://instagram.com/p/1", TakenAt: taken},
		{ParentID: "1", MediaID: "11", MediaType: storage.MediaTypeVideo, MediaURL: "https://cdn.example.com/11.mp4", TakenAt: taken},
		{ParentID: "2", MediaID: "2", MediaType: storage.MediaTypeVideo, MediaURL: "https://cdn.example.com/2.mp4", TakenAt: taken},
	}
}

func newTestServer(t *testing.T, store Store, idx Searcher) http.Handler {
	t.Helper()
	srv, err := NewServer(store, idx, nil)
	require.NoError(t, err)
	return srv.Handler()
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestIndexListsPendingGroups(t *testing.T) {
	h := newTestServer(t, &fakeStore{rows: pendingRows()}, nil)

	rec := get(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Find(".group").Length())
	assert.Equal(t, "Beach day", doc.Find("#group-1 h2").Text())
	assert.Equal(t, "(untitled)", doc.Find("#group-2 h2").Text())
	src, ok := doc.Find("#group-1 img").Attr("src")
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/1.jpg", src)
	assert.Equal(t, 0, doc.Find("#group-2 img").Length())
	assert.Equal(t, 0, doc.Find("form").Length())
}

func TestIndexEmptyState(t *testing.T) {
	h := newTestServer(t, &fakeStore{}, &fakeSearcher{})
	rec := get(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find(".empty-state").Length())
	assert.Equal(t, 1, doc.Find("form").Length())
}

func TestUnknownPathIsNotFound(t *testing.T) {
	h := newTestServer(t, &fakeStore{}, nil)
	assert.Equal(t, http.StatusNotFound, get(h, "/nope").Code)
}

func TestPendingAPI(t *testing.T) {
	h := newTestServer(t, &fakeStore{rows: pendingRows()}, nil)

	rec := get(h, "/api/pending")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count  int `json:"count"`
		Groups []struct {
			ParentID   string          `json:"parent_id"`
			Slug       string          `json:"slug"`
			MediaCount int             `json:"media_count"`
			Mobiledoc  json.RawMessage `json:"mobiledoc"`
		} `json:"groups"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Count)
	assert.Equal(t, "photo-beach-day", body.Groups[0].Slug)
	assert.Equal(t, 2, body.Groups[0].MediaCount)
	assert.Contains(t, string(body.Groups[0].Mobiledoc), `"version":"0.3.2"`)
	assert.Equal(t, "photo", body.Groups[1].Slug)
}

func TestPendingAPIStoreError(t *testing.T) {
	h := newTestServer(t, &fakeStore{err: errors.New("db down")}, nil)
	rec := get(h, "/api/pending")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSearchAPI(t *testing.T) {
	idx := &fakeSearcher{}
	h := newTestServer(t, &fakeStore{}, idx)

	rec := get(h, "/api/search?q=beach")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SearchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "Beach day", resp.Results[0].Title)
	assert.Equal(t, "beach", idx.lastQuery)

	assert.Equal(t, http.StatusBadRequest, get(h, "/api/search").Code)
}

func TestSearchAPIWithoutIndex(t *testing.T) {
	h := newTestServer(t, &fakeStore{}, nil)
	assert.Equal(t, http.StatusServiceUnavailable, get(h, "/api/search?q=x").Code)
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, &fakeStore{rows: pendingRows()}, &fakeSearcher{})

	rec := get(h, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(3), body["media_pending"])
	assert.Equal(t, float64(7), body["captions_in_index"])
}

func TestGetMedia(t *testing.T) {
	rows := pendingRows()
	rows[1].PostID = strPtr("post-9")
	h := newTestServer(t, &fakeStore{rows: rows}, nil)

	rec := get(h, "/api/media/1")
	require.Equal(t, http.StatusOK, rec.Code)
	var top MediaView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &top))
	assert.Equal(t, "Beach day. #sun", top.Caption)
	assert.True(t, top.Pending)
	assert.Empty(t, top.PostID)

	rec = get(h, "/api/media/11")
	require.Equal(t, http.StatusOK, rec.Code)
	var child MediaView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &child))
	assert.Equal(t, "1", child.ParentID)
	assert.False(t, child.Pending)
	assert.Equal(t, "post-9", child.PostID)

	assert.Equal(t, http.StatusNotFound, get(h, "/api/media/missing").Code)
}
