package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/storage"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"IG2GHOST_INSTAGRAM_TOKEN", "IG2GHOST_GHOST_URL", "IG2GHOST_GHOST_ADMIN_KEY",
		"IG2GHOST_AUTHOR_EMAIL", "IG2GHOST_DATABASE_DRIVER", "IG2GHOST_DATABASE_DSN", "SENTRY_DSN",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, dataDir string, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	body := fmt.Sprintf("data_dir = %q\n\n[logging]\nformat = \"json\"\nlevel = \"error\"\n%s", dataDir, extra)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigInitWritesSample(t *testing.T) {
	clearEnv(t)
	target := filepath.Join(t.TempDir(), "nested", "config.toml")

	out, err := execute(t, "config", "init", "--path", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote sample configuration")
	_, err = os.Stat(target)
	require.NoError(t, err)

	_, err = execute(t, "config", "init", "--path", target)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "config", "init", "--path", target, "--overwrite")
	require.NoError(t, err)
}

func TestStatusOnEmptyStore(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, t.TempDir(), "")

	out, err := execute(t, "--config", cfgPath, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Staged media: 0 (0 pending, 0 published)")
	assert.Contains(t, out, "Pending posts: 0")
}

func TestIngestRequiresToken(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, t.TempDir(), "")

	_, err := execute(t, "--config", cfgPath, "ingest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "instagram.access_token")
}

func TestReassignAuthorsRequiresFrom(t *testing.T) {
	clearEnv(t)
	cfgPath := writeConfig(t, t.TempDir(), "")

	_, err := execute(t, "--config", cfgPath, "reassign-authors")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from")
}

func TestWithLockRejectsConcurrentWriter(t *testing.T) {
	clearEnv(t)
	dataDir := t.TempDir()
	cfgPath := writeConfig(t, dataDir, "")

	held := flock.New(filepath.Join(dataDir, "ig2ghost.lock"))
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	for _, command := range []string{"run", "ingest", "publish", "reindex"} {
		_, err = execute(t, "--config", cfgPath, command)
		require.Error(t, err, command)
		assert.ErrorIs(t, err, errLocked, command)
	}

	// The store is opened, and migrated, only under the lock.
	_, err = os.Stat(filepath.Join(dataDir, "staging.db"))
	assert.True(t, os.IsNotExist(err))
}

func TestRenderStatusTable(t *testing.T) {
	taken := time.Date(2021, 5, 1, 10, 0, 0, 0, time.UTC)
	caption := "Beach day. #sun"
	groups, err := aggregate.Aggregate([]storage.Media{
		{ParentID: "1", MediaID: "1", Caption: &caption, MediaType: storage.MediaTypeImage, TakenAt: taken},
		{ParentID: "1", MediaID: "11", MediaType: storage.MediaTypeImage, TakenAt: taken},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	renderStatus(&out, &storage.Counts{Total: 2, Pending: 2, Groups: 1}, groups)
	assert.Contains(t, out.String(), "photo-beach-day")
	assert.Contains(t, out.String(), "photo-post, sun")
	assert.Contains(t, out.String(), "2021-05-01")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
	assert.Equal(t, "ééé…", truncate("éééééé", 4))
}

func TestRenderTableTruncatesWideColumns(t *testing.T) {
	title := strings.Repeat("a", 59) + strings.Repeat("b", 21)
	out := renderTable(searchColumns, [][]string{{"17", "0.912", title, "https://www.instagram.com/p/x/"}})

	assert.Contains(t, out, strings.Repeat("a", 59)+"…")
	assert.NotContains(t, out, "b")
	assert.Contains(t, out, "https://www.instagram.com/p/x/")
	assert.Empty(t, renderTable(nil, nil))
}

// fakeGhost records created posts and answers uploads with predictable URLs.
type fakeGhost struct {
	mu    sync.Mutex
	posts []map[string]any
}

func (f *fakeGhost) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasPrefix(r.Header.Get("Authorization"), "Ghost "))
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/ghost/api/admin/images/upload/", "/ghost/api/admin/media/upload/":
			require.NoError(t, r.ParseMultipartForm(1<<20))
			_, hdr, err := r.FormFile("file")
			require.NoError(t, err)
			kind := "images"
			if strings.Contains(r.URL.Path, "/media/") {
				kind = "media"
			}
			fmt.Fprintf(w, `{%q:[{"url":"https://blog.example.com/content/%s/%s"}]}`, kind, kind, hdr.Filename)
		case "/ghost/api/admin/posts/":
			var body struct {
				Posts []map[string]any `json:"posts"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			f.mu.Lock()
			f.posts = append(f.posts, body.Posts...)
			id := len(f.posts)
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
			fmt.Fprintf(w, `{"posts":[{"id":"post-%d"}]}`, id)
		default:
			http.NotFound(w, r)
		}
	}
}

func instagramServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/cdn/") {
			io.WriteString(w, "bytes of "+r.URL.Path)
			return
		}
		assert.Equal(t, "/me/media", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{
					"id": "100", "caption": "Sunset walk.\nSecond line #beach", "media_type": "CAROUSEL_ALBUM",
					"media_url": srv.URL + "/cdn/100.jpg", "permalink": "https://instagram.com/p/100",
					"timestamp": "2021-05-01T10:00:00+0000",
					"children": map[string]any{"data": []map[string]any{
						{"id": "101", "media_type": "IMAGE", "media_url": srv.URL + "/cdn/101.jpg"},
						{"id": "102", "media_type": "VIDEO", "media_url": srv.URL + "/cdn/102.mp4"},
					}},
				},
				{
					"id": "200", "media_type": "VIDEO", "media_url": srv.URL + "/cdn/200.mp4",
					"permalink": "https://instagram.com/p/200", "timestamp": "2021-04-01T10:00:00+0000",
				},
			},
			"paging": map[string]any{},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunIngestsAndPublishes(t *testing.T) {
	clearEnv(t)
	ig := instagramServer(t)
	gh := &fakeGhost{}
	ghostSrv := httptest.NewServer(gh.handler(t))
	t.Cleanup(ghostSrv.Close)

	dataDir := t.TempDir()
	cfgPath := writeConfig(t, dataDir, fmt.Sprintf(`
[instagram]
access_token = "token"
base_url = %q

[ghost]
url = %q
admin_api_key = "abc:0123456789abcdef"
author_email = "me@example.com"
requests_per_second = 0
`, ig.URL, ghostSrv.URL))

	out, err := execute(t, "--config", cfgPath, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingest: 4 fetched, 4 new")
	assert.Contains(t, out, "Publish: 2/2 posts created, 4 media uploaded, 4 rows marked")

	require.Len(t, gh.posts, 2)
	first := gh.posts[0]
	assert.Equal(t, "Sunset walk", first["title"])
	assert.Equal(t, "photo-sunset-walk", first["slug"])
	assert.Equal(t, "https://blog.example.com/content/images/100.jpg", first["feature_image"])
	assert.Contains(t, first["mobiledoc"], "https://blog.example.com/content/media/102.mp4")

	second := gh.posts[1]
	require.Contains(t, second, "title")
	assert.Equal(t, "", second["title"])
	assert.NotContains(t, second, "feature_image")

	_, err = os.Stat(filepath.Join(dataDir, "ig-images", "101.jpg"))
	require.NoError(t, err)

	out, err = execute(t, "--config", cfgPath, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingest: 4 fetched, 0 new, 4 already staged")
	assert.Contains(t, out, "Publish: 0/0 posts created")
	assert.Len(t, gh.posts, 2)

	out, err = execute(t, "--config", cfgPath, "search", "sunset")
	require.NoError(t, err)
	assert.Contains(t, out, "100")
}
