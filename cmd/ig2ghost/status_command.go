package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/renderinc/ig2ghost/internal/aggregate"
	"github.com/renderinc/ig2ghost/internal/storage"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show staged media counts and the posts the next publish would create",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			counts, err := db.Count(cmd.Context())
			if err != nil {
				return err
			}
			pending, err := db.Pending(cmd.Context())
			if err != nil {
				return err
			}
			groups, err := aggregate.Aggregate(pending)
			if err != nil {
				return err
			}

			renderStatus(cmd.OutOrStdout(), counts, groups)
			return nil
		},
	}
}

func renderStatus(out io.Writer, counts *storage.Counts, groups []*aggregate.PostGroup) {
	fmt.Fprintf(out, "Staged media: %d (%d pending, %d published)\n", counts.Total, counts.Pending, counts.Published)
	fmt.Fprintf(out, "Pending posts: %d\n", len(groups))
	if len(groups) == 0 {
		return
	}

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{
			g.ParentID,
			g.PublishedAt.Format("2006-01-02"),
			g.Title,
			g.Slug,
			strconv.Itoa(len(g.Members)),
			strings.Join(g.Tags, ", "),
		})
	}
	fmt.Fprintln(out, renderTable(statusColumns, rows))
}
