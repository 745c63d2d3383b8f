package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. maxWidth of zero leaves it unbounded;
// longer cells are cut with an ellipsis.
type column struct {
	header   string
	numeric  bool
	maxWidth int
}

var (
	statusColumns = []column{
		{header: "Parent"},
		{header: "Taken"},
		{header: "Title", maxWidth: 48},
		{header: "Slug", maxWidth: 40},
		{header: "Media", numeric: true},
		{header: "Tags", maxWidth: 40},
	}
	searchColumns = []column{
		{header: "Media"},
		{header: "Score", numeric: true},
		{header: "Title", maxWidth: 60},
		{header: "Permalink"},
	}
)

func renderTable(columns []column, rows [][]string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		header[i] = c.header
		align := text.AlignLeft
		if c.numeric {
			align = text.AlignRight
		}
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    c.maxWidth,
		}
		if c.maxWidth > 0 {
			configs[i].WidthMaxEnforcer = truncate
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		r := make(table.Row, len(columns))
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	return tw.Render()
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
