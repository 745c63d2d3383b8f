package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search staged captions (use #tag for an exact hashtag)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := ctx.openIndex()
			if err != nil {
				return err
			}
			defer idx.Close()

			query := strings.Join(args, " ")
			results, err := idx.Search(query, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintf(out, "No captions match %q\n", query)
				return nil
			}

			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{
					r.MediaID,
					fmt.Sprintf("%.3f", r.Score),
					r.Title,
					r.Permalink,
				})
			}
			fmt.Fprintln(out, renderTable(searchColumns, rows))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of results")
	return cmd
}

func newReindexCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the caption index from the staging store",
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

				idx, err := ctx.openIndex()
				if err != nil {
					return err
				}
				defer idx.Close()

				n, err := idx.Rebuild(cmd.Context(), db)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d captions\n", n)
				return nil
			})
		},
	}
}
