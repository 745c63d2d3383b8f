package search

import (
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// parseQuery turns "#tag" into an exact tag match and hands anything else to
// the query string parser.
func parseQuery(q string) query.Query {
	q = strings.TrimSpace(q)
	if tag, ok := strings.CutPrefix(q, "#"); ok && tag != "" && !strings.ContainsAny(tag, " \t") {
		tq := bleve.NewTermQuery(tag)
		tq.SetField("Tags")
		return tq
	}
	return bleve.NewQueryStringQuery(q)
}
