package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/logging"
)

// Scratch file naming policies.
const (
	NamingMediaID = "media-id"
	NamingURL     = "url"
)

// Scratch downloads source media into a local directory before upload.
type Scratch struct {
	dir        string
	naming     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewScratch creates a scratch downloader rooted at dir.
func NewScratch(dir, naming string, timeout time.Duration, logger *slog.Logger) *Scratch {
	if naming == "" {
		naming = NamingMediaID
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Scratch{
		dir:        dir,
		naming:     naming,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrDiscard(logger),
	}
}

// Name returns the scratch file name for a member under the configured policy.
//
// With NamingURL two sources sharing a last path segment map to the same
// file, and the second reuses the first one's bytes.
func (s *Scratch) Name(m aggregate.Member) (string, error) {
	u, err := url.Parse(m.SourceURL)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" {
		base = ""
	}

	switch s.naming {
	case NamingURL:
		if base == "" {
			return "", fmt.Errorf("source url %q has no file name", m.SourceURL)
		}
		return base, nil
	case NamingMediaID:
		ext := strings.ToLower(path.Ext(base))
		if ext == "" {
			ext = ".jpg"
			if m.MediaType.IsVideo() {
				ext = ".mp4"
			}
		}
		return m.MediaID + ext, nil
	default:
		return "", fmt.Errorf("unknown scratch naming %q", s.naming)
	}
}

// Fetch downloads the member's source into the scratch directory and returns
// the local path. An existing file is reused without a request.
func (s *Scratch) Fetch(ctx context.Context, m aggregate.Member) (string, error) {
	name, err := s.Name(m)
	if err != nil {
		return "", err
	}
	dest := filepath.Join(s.dir, name)

	if _, err := os.Stat(dest); err == nil {
		s.logger.Debug("scratch file exists, skipping download",
			slog.String("media_id", m.MediaID),
			slog.String("path", dest),
		)
		return dest, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat scratch file: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create scratch dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.SourceURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download media %s: %w", m.MediaID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download media %s: status %d", m.MediaID, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return "", fmt.Errorf("write media %s: %w", m.MediaID, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("move scratch file: %w", err)
	}

	s.logger.Info("downloaded media",
		slog.String("media_id", m.MediaID),
		slog.String("size", humanize.Bytes(uint64(n))),
		slog.String("path", dest),
	)
	return dest, nil
}
