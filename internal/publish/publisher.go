// Package publish uploads aggregated post groups to Ghost and records the
// resulting post ids in the staging store.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/ghost"
	"github.com/renderinc/ig2ghost/internal/logging"
)

// StatusPublished is the status every created post gets.
const StatusPublished = "published"

// Destination is the Ghost surface the publisher writes to.
type Destination interface {
	UploadImage(ctx context.Context, path string) (string, error)
	UploadMedia(ctx context.Context, path string) (string, error)
	CreatePost(ctx context.Context, post *ghost.Post) (*ghost.Post, error)
}

// Marker records the publish marker on staged rows.
type Marker interface {
	MarkPublished(ctx context.Context, postID string, mediaIDs []string) (int64, error)
}

// Fetcher materialises a member's source as a local file.
type Fetcher interface {
	Fetch(ctx context.Context, m aggregate.Member) (string, error)
}

// Publisher creates one Ghost post per group.
type Publisher struct {
	dest        Destination
	marker      Marker
	fetcher     Fetcher
	authorEmail string
	logger      *slog.Logger
}

// New creates a publisher.
func New(dest Destination, marker Marker, fetcher Fetcher, authorEmail string, logger *slog.Logger) *Publisher {
	return &Publisher{
		dest:        dest,
		marker:      marker,
		fetcher:     fetcher,
		authorEmail: authorEmail,
		logger:      logging.OrDiscard(logger),
	}
}

// Stats holds publish statistics
type Stats struct {
	Groups   int
	Uploaded int
	Posts    int
	Marked   int64
	Duration time.Duration
}

// Publish processes groups in order. The first failure stops the run; groups
// already published stay marked. Stats reflect the work done so far.
func (p *Publisher) Publish(ctx context.Context, groups []*aggregate.PostGroup) (*Stats, error) {
	startTime := time.Now()
	stats := &Stats{Groups: len(groups)}

	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := p.publishGroup(ctx, g, stats); err != nil {
			return stats, fmt.Errorf("publish group %s: %w", g.ParentID, err)
		}
	}

	stats.Duration = time.Since(startTime)
	p.logger.Info("publish complete",
		slog.Int("groups", stats.Groups),
		slog.Int("uploaded", stats.Uploaded),
		slog.Int("posts", stats.Posts),
		slog.Duration("duration", stats.Duration),
	)
	return stats, nil
}

func (p *Publisher) publishGroup(ctx context.Context, g *aggregate.PostGroup, stats *Stats) error {
	logger := p.logger.With(slog.String("parent_id", g.ParentID))

	for i, m := range g.Members {
		local, err := p.fetcher.Fetch(ctx, m)
		if err != nil {
			return err
		}
		uploaded, err := p.upload(ctx, m, local)
		if err != nil {
			return err
		}
		if err := g.Resolve(i, uploaded); err != nil {
			return err
		}
		stats.Uploaded++
		logger.Debug("uploaded media", slog.String("media_id", m.MediaID), slog.String("url", uploaded))
	}

	post, err := BuildPost(g, p.authorEmail)
	if err != nil {
		return err
	}
	created, err := p.dest.CreatePost(ctx, post)
	if err != nil {
		return err
	}
	stats.Posts++

	marked, err := p.marker.MarkPublished(ctx, created.ID, g.MemberMediaIDs())
	if err != nil {
		return fmt.Errorf("mark published: %w", err)
	}
	stats.Marked += marked

	logger.Info("created post",
		slog.String("post_id", created.ID),
		slog.String("title", g.Title),
		slog.Int("media", len(g.Members)),
	)
	return nil
}

func (p *Publisher) upload(ctx context.Context, m aggregate.Member, local string) (string, error) {
	if m.MediaType.IsVideo() || strings.HasSuffix(strings.ToLower(local), ".mp4") {
		return p.dest.UploadMedia(ctx, local)
	}
	return p.dest.UploadImage(ctx, local)
}

// BuildPost maps a resolved group to the Admin API post payload.
func BuildPost(g *aggregate.PostGroup, authorEmail string) (*ghost.Post, error) {
	doc, err := g.Document.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode mobiledoc: %w", err)
	}

	tags := make([]ghost.Tag, len(g.Tags))
	for i, t := range g.Tags {
		tags[i] = ghost.Tag{Name: t}
	}

	post := &ghost.Post{
		Title:           g.Title,
		MetaTitle:       g.Title,
		Slug:            g.Slug,
		Tags:            tags,
		MetaDescription: g.Summary,
		FeatureImage:    g.FeatureImage,
		Status:          StatusPublished,
		Authors:         []ghost.Author{{Email: authorEmail}},
		Mobiledoc:       doc,
	}
	// Without a known timestamp Ghost stamps the post with the current time.
	if !g.PublishedAt.IsZero() {
		published := g.PublishedAt.UTC()
		post.PublishedAt = &published
		post.CreatedAt = &published
		post.UpdatedAt = &published
	}
	return post, nil
}
