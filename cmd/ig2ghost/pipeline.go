package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/ingest"
	"github.com/renderinc/ig2ghost/internal/publish"
	"github.com/renderinc/ig2ghost/internal/storage"
)

// ingestStep pulls Instagram media into the staging store. The caption index
// is optional; when it cannot be opened ingest continues without it.
func (c *commandContext) ingestStep(ctx context.Context, db *storage.DB, paginate bool, logger *slog.Logger) (*ingest.Stats, error) {
	source, err := c.instagramClient()
	if err != nil {
		return nil, err
	}

	var indexer ingest.Indexer
	idx, err := c.openIndex()
	if err != nil {
		logger.Warn("caption index unavailable, skipping indexing", slog.String("error", err.Error()))
	} else {
		defer idx.Close()
		indexer = idx
	}

	return ingest.NewWorker(source, db, indexer, logger).Ingest(ctx, paginate)
}

// publishStep turns pending rows into Ghost posts.
func (c *commandContext) publishStep(ctx context.Context, db *storage.DB, logger *slog.Logger) (*publish.Stats, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireAuthor(); err != nil {
		return nil, err
	}
	dest, err := c.ghostClient()
	if err != nil {
		return nil, err
	}

	pending, err := db.Pending(ctx)
	if err != nil {
		return nil, err
	}
	groups, err := aggregate.Aggregate(pending)
	if err != nil {
		return nil, err
	}
	logger.Info("aggregated pending media", slog.Int("rows", len(pending)), slog.Int("groups", len(groups)))

	timeout := time.Duration(cfg.Ghost.TimeoutSeconds) * time.Second
	scratch := publish.NewScratch(cfg.ScratchDir, cfg.ScratchNaming, timeout, logger)
	return publish.New(dest, db, scratch, cfg.Ghost.AuthorEmail, logger).Publish(ctx, groups)
}
