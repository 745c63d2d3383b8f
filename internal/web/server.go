// Package web serves a read-only preview of the posts the next publish run
// would create.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/logging"
	"github.com/renderinc/ig2ghost/internal/mobiledoc"
	"github.com/renderinc/ig2ghost/internal/search"
	"github.com/renderinc/ig2ghost/internal/storage"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Store is the staging store surface the preview reads.
type Store interface {
	Pending(ctx context.Context) ([]storage.Media, error)
	Count(ctx context.Context) (*storage.Counts, error)
	Get(ctx context.Context, mediaID string) (*storage.Media, error)
}

// Searcher queries the caption index.
type Searcher interface {
	Search(query string, limit int) ([]*search.SearchResult, error)
	Count() (uint64, error)
}

type Server struct {
	store     Store
	idx       Searcher // optional
	templates *template.Template
	logger    *slog.Logger
}

// GroupView is the JSON form of a pending post group.
type GroupView struct {
	ParentID     string              `json:"parent_id"`
	Title        string              `json:"title"`
	Slug         string              `json:"slug"`
	Tags         []string            `json:"tags"`
	Summary      string              `json:"summary"`
	FeatureImage string              `json:"feature_image,omitempty"`
	Permalink    string              `json:"permalink"`
	PublishedAt  time.Time           `json:"published_at"`
	MediaCount   int                 `json:"media_count"`
	Mobiledoc    *mobiledoc.Document `json:"mobiledoc"`
}

type SearchResponse struct {
	Results []*search.SearchResult `json:"results"`
	Query   string                 `json:"query"`
	Count   int                    `json:"count"`
	Error   string                 `json:"error,omitempty"`
}

// NewServer creates a preview server. idx may be nil, which disables search.
func NewServer(store Store, idx Searcher, logger *slog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Server{
		store:     store,
		idx:       idx,
		templates: tmpl,
		logger:    logging.OrDiscard(logger),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /api/pending", s.handlePending)
	mux.HandleFunc("GET /api/media/{id}", s.handleGetMedia)
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /health", s.handleHealth)

	return mux
}

func (s *Server) pendingGroups(ctx context.Context) ([]GroupView, error) {
	rows, err := s.store.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	groups, err := aggregate.Aggregate(rows)
	if err != nil {
		return nil, err
	}

	views := make([]GroupView, len(groups))
	for i, g := range groups {
		views[i] = GroupView{
			ParentID:     g.ParentID,
			Title:        g.Title,
			Slug:         g.Slug,
			Tags:         g.Tags,
			Summary:      g.Summary,
			FeatureImage: g.FeatureImage,
			Permalink:    g.Permalink,
			PublishedAt:  g.PublishedAt,
			MediaCount:   len(g.Members),
			Mobiledoc:    g.Document,
		}
	}
	return views, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	groups, err := s.pendingGroups(r.Context())
	if err != nil {
		s.logger.Error("render index", slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := map[string]any{
		"Groups":    groups,
		"HasSearch": s.idx != nil,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("render template", slog.String("error", err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	groups, err := s.pendingGroups(r.Context())
	if err != nil {
		s.logger.Error("list pending groups", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	resp := SearchResponse{Query: query, Results: []*search.SearchResult{}}

	if s.idx == nil {
		resp.Error = "caption index not available"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	if query == "" {
		resp.Error = "missing q parameter"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	results, err := s.idx.Search(query, limit)
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}
	resp.Results = results
	resp.Count = len(results)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Count(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	body := map[string]any{
		"status":          "ok",
		"media_total":     counts.Total,
		"media_pending":   counts.Pending,
		"media_published": counts.Published,
		"groups_pending":  counts.Groups,
	}
	if s.idx != nil {
		indexCount, _ := s.idx.Count()
		body["captions_in_index"] = indexCount
	}
	writeJSON(w, http.StatusOK, body)
}

// MediaView is the JSON form of one staged row.
type MediaView struct {
	MediaID   string            `json:"media_id"`
	ParentID  string            `json:"parent_id"`
	MediaType storage.MediaType `json:"media_type"`
	MediaURL  string            `json:"media_url"`
	Permalink string            `json:"permalink,omitempty"`
	Caption   string            `json:"caption,omitempty"`
	TakenAt   time.Time         `json:"taken_at"`
	Pending   bool              `json:"pending"`
	PostID    string            `json:"post_id,omitempty"`
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	m, err := s.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.logger.Error("get media", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if m == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "media not found"})
		return
	}

	view := MediaView{
		MediaID:   m.MediaID,
		ParentID:  m.ParentID,
		MediaType: m.MediaType,
		MediaURL:  m.MediaURL,
		Permalink: m.Permalink,
		Caption:   m.CaptionText(),
		TakenAt:   m.TakenAt,
		Pending:   m.Pending(),
	}
	if m.PostID != nil {
		view.PostID = *m.PostID
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
