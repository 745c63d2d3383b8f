package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/ingest"
	"github.com/renderinc/ig2ghost/internal/publish"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var paginate bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest new Instagram media and publish every pending group",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			return ctx.withLock(logger, func() error {
				db, err := ctx.openStore()
				if err != nil {
					return err
				}
				defer db.Close()

				ingestStats, err := ctx.ingestStep(cmd.Context(), db, paginate, logger)
				if err != nil {
					return err
				}
				printIngestStats(cmd.OutOrStdout(), ingestStats)

				publishStats, err := ctx.publishStep(cmd.Context(), db, logger)
				if publishStats != nil {
					printPublishStats(cmd.OutOrStdout(), publishStats)
				}
				return err
			})
		},
	}

	cmd.Flags().BoolVar(&paginate, "paginate", false, "Follow every page of the media listing")
	return cmd
}

func newIngestCommand(ctx *commandContext) *cobra.Command {
	var paginate bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Stage Instagram media in the staging store",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			return ctx.withLock(logger, func() error {
				db, err := ctx.openStore()
				if err != nil {
					return err
				}
				defer db.Close()

				stats, err := ctx.ingestStep(cmd.Context(), db, paginate, logger)
				if err != nil {
					return err
				}
				printIngestStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&paginate, "paginate", false, "Follow every page of the media listing")
	return cmd
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Create a Ghost post for every pending group",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}

			return ctx.withLock(logger, func() error {
				db, err := ctx.openStore()
				if err != nil {
					return err
				}
				defer db.Close()

				stats, err := ctx.publishStep(cmd.Context(), db, logger)
				if stats != nil {
					printPublishStats(cmd.OutOrStdout(), stats)
				}
				return err
			})
		},
	}
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var tag string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete every Ghost post carrying the import tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			client, err := ctx.ghostClient()
			if err != nil {
				return err
			}

			n, err := publish.Cleanup(cmd.Context(), client, tag, dryRun, logger)
			if err != nil {
				return err
			}
			verb := "Deleted"
			if dryRun {
				verb = "Would delete"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d posts tagged %s\n", verb, n, tag)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List matching posts without deleting them")
	cmd.Flags().StringVar(&tag, "tag", aggregate.PhotoPostTag, "Tag selecting the posts to delete")
	return cmd
}

func newReassignAuthorsCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var from string

	cmd := &cobra.Command{
		Use:   "reassign-authors",
		Short: "Move imported posts from one author to the configured author",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireAuthor(); err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			client, err := ctx.ghostClient()
			if err != nil {
				return err
			}

			n, err := publish.ReassignAuthors(cmd.Context(), client, from, cfg.Ghost.AuthorEmail, dryRun, logger)
			if err != nil {
				return err
			}
			verb := "Reassigned"
			if dryRun {
				verb = "Would reassign"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d posts from %s to %s\n", verb, n, from, cfg.Ghost.AuthorEmail)
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "List matching posts without editing them")
	cmd.Flags().StringVar(&from, "from", "", "Slug of the author to move posts away from")
	_ = cmd.MarkFlagRequired("from")
	return cmd
}

func printIngestStats(out io.Writer, stats *ingest.Stats) {
	fmt.Fprintf(out, "Ingest: %d fetched, %d new, %d already staged, %d captions indexed (%s)\n",
		stats.Fetched, stats.Inserted, stats.Ignored, stats.Indexed, stats.Duration.Round(time.Millisecond))
}

func printPublishStats(out io.Writer, stats *publish.Stats) {
	fmt.Fprintf(out, "Publish: %d/%d posts created, %d media uploaded, %d rows marked\n",
		stats.Posts, stats.Groups, stats.Uploaded, stats.Marked)
}
