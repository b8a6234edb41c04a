package fulltext

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/solverparams/docsearch-mcp/internal/searchindex"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	titleBoost = 3.0
	pageBoost  = 1.5
)

// Request describes a ranked search
type Request struct {
	Query     string
	Category  searchindex.Category // empty matches every category
	Limit     int                  // defaults to DefaultLimit, capped at MaxLimit
	Fuzziness int                  // edit distance for fuzzy term matching, 0-2
}

// Result is a ranked match
type Result struct {
	Record   searchindex.Record `json:"record"`
	Position int                `json:"position"`
	Score    float64            `json:"score"`
}

// Search runs req against idx and returns results ordered by score, then
// load order, along with the total hit count
func Search(idx Index, req Request) ([]Result, uint64, error) {
	text := strings.TrimSpace(req.Query)
	if searchindex.IsPlaceholder(text) {
		return []Result{}, 0, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	searchReq := bleve.NewSearchRequestOptions(buildQuery(text, req), limit, 0, false)
	searchReq.Fields = []string{"*"}
	searchReq.SortBy([]string{"-_score", "position"})

	res, err := idx.Search(searchReq)
	if err != nil {
		return nil, 0, fmt.Errorf("search failed: %w", err)
	}

	results := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		results = append(results, resultFromHit(hit))
	}
	return results, res.Total, nil
}

func buildQuery(text string, req Request) query.Query {
	fuzziness := req.Fuzziness
	if fuzziness < 0 {
		fuzziness = 0
	}
	if fuzziness > 2 {
		fuzziness = 2
	}

	field := func(name string, boost float64) query.Query {
		q := bleve.NewMatchQuery(text)
		q.SetField(name)
		q.SetFuzziness(fuzziness)
		q.SetBoost(boost)
		return q
	}

	var q query.Query = bleve.NewDisjunctionQuery(
		field("title", titleBoost),
		field("page", pageBoost),
		field("text", 1.0),
	)

	if req.Category != "" {
		category := bleve.NewTermQuery(string(req.Category))
		category.SetField("category")
		q = bleve.NewConjunctionQuery(q, category)
	}
	return q
}

func resultFromHit(hit *search.DocumentMatch) Result {
	var r Result
	r.Score = hit.Score

	if location, ok := hit.Fields["location"].(string); ok {
		r.Record.Location = location
	}
	if page, ok := hit.Fields["page"].(string); ok {
		r.Record.Page = page
	}
	if title, ok := hit.Fields["title"].(string); ok {
		r.Record.Title = title
	}
	if text, ok := hit.Fields["text"].(string); ok {
		r.Record.Text = text
	}
	if category, ok := hit.Fields["category"].(string); ok {
		r.Record.Category = searchindex.Category(category)
	}
	if position, ok := hit.Fields["position"].(float64); ok {
		r.Position = int(position)
	}
	return r
}
