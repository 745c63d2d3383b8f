package publish

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/ghost"
	"github.com/renderinc/ig2ghost/internal/logging"
)

// PostAdmin is the Ghost surface used by the maintenance commands.
type PostAdmin interface {
	BrowsePosts(ctx context.Context, filter string) ([]*ghost.Post, error)
	EditPost(ctx context.Context, id string, changes *ghost.Post) (*ghost.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// Cleanup deletes every post carrying tag and returns how many matched.
// With dryRun nothing is deleted.
func Cleanup(ctx context.Context, admin PostAdmin, tag string, dryRun bool, logger *slog.Logger) (int, error) {
	logger = logging.OrDiscard(logger)
	if tag == "" {
		tag = aggregate.PhotoPostTag
	}

	posts, err := admin.BrowsePosts(ctx, "tag:"+tag)
	if err != nil {
		return 0, err
	}

	for _, post := range posts {
		if dryRun {
			logger.Info("would delete post", slog.String("post_id", post.ID), slog.String("title", post.Title))
			continue
		}
		if err := admin.DeletePost(ctx, post.ID); err != nil {
			return 0, err
		}
		logger.Info("deleted post", slog.String("post_id", post.ID), slog.String("title", post.Title))
	}
	return len(posts), nil
}

// ReassignAuthors moves every photo post written by fromSlug to the author
// with toEmail and returns how many matched.
func ReassignAuthors(ctx context.Context, admin PostAdmin, fromSlug, toEmail string, dryRun bool, logger *slog.Logger) (int, error) {
	logger = logging.OrDiscard(logger)
	if fromSlug == "" {
		return 0, fmt.Errorf("reassign authors: source author slug is required")
	}
	if toEmail == "" {
		return 0, fmt.Errorf("reassign authors: target author email is required")
	}

	filter := fmt.Sprintf("tag:%s+author:%s", aggregate.PhotoPostTag, fromSlug)
	posts, err := admin.BrowsePosts(ctx, filter)
	if err != nil {
		return 0, err
	}

	for _, post := range posts {
		if dryRun {
			logger.Info("would reassign post", slog.String("post_id", post.ID), slog.String("title", post.Title))
			continue
		}
		changes := &ghost.Post{
			Authors:   []ghost.Author{{Email: toEmail}},
			UpdatedAt: post.UpdatedAt,
		}
		if _, err := admin.EditPost(ctx, post.ID, changes); err != nil {
			return 0, err
		}
		logger.Info("reassigned post", slog.String("post_id", post.ID), slog.String("title", post.Title))
	}
	return len(posts), nil
}
