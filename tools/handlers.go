package tools

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/solverparams/docsearch-mcp/internal/fulltext"
	"github.com/solverparams/docsearch-mcp/internal/searchindex"
)

const (
	maxResultsCap = 100
	snippetWidth  = 160
)

// SearchDocumentationInput defines input for search_documentation tool
type SearchDocumentationInput struct {
	Query      string `json:"query" jsonschema:"Case-insensitive text to look for in entry titles and text"`
	Category   string `json:"category,omitempty" jsonschema:"Restrict to one category: section, page, type or method (optional)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (optional, defaults to the configured limit, at most 100)"`
	Offset     int    `json:"offset,omitempty" jsonschema:"Number of matches to skip, for paging past max_results (optional)"`
	Unique     bool   `json:"unique,omitempty" jsonschema:"Return each location at most once (optional)"`
}

// SearchHit is one matching index entry
type SearchHit struct {
	Location string `json:"location"`
	Page     string `json:"page"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Snippet  string `json:"snippet,omitempty"`
	InTitle  bool   `json:"in_title"`
}

// SearchDocumentationOutput defines output for search_documentation tool
type SearchDocumentationOutput struct {
	Query     string      `json:"query"`
	Locations []string    `json:"locations"`
	Results   []SearchHit `json:"results"`
	Offset    int         `json:"offset"`
	TotalHits int         `json:"total_hits"`
}

// FulltextSearchInput defines input for fulltext_search_documentation tool
type FulltextSearchInput struct {
	Query      string `json:"query" jsonschema:"Free-text query, ranked by relevance with typo tolerance"`
	Category   string `json:"category,omitempty" jsonschema:"Restrict to one category: section, page, type or method (optional)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (optional)"`
}

// FulltextHit is a ranked index entry
type FulltextHit struct {
	Location string  `json:"location"`
	Page     string  `json:"page"`
	Title    string  `json:"title"`
	Category string  `json:"category"`
	Snippet  string  `json:"snippet,omitempty"`
	Score    float64 `json:"score"`
}

// FulltextSearchOutput defines output for fulltext_search_documentation tool
type FulltextSearchOutput struct {
	Query     string        `json:"query"`
	Results   []FulltextHit `json:"results"`
	TotalHits int           `json:"total_hits"`
}

// GetEntryInput defines input for get_documentation_entry tool
type GetEntryInput struct {
	Location string `json:"location" jsonschema:"Location of the entry, e.g. reference/#SolverParameters.lower"`
}

// Entry is a full index record with display-ready text
type Entry struct {
	Location  string `json:"location"`
	Page      string `json:"page"`
	Title     string `json:"title"`
	Category  string `json:"category"`
	Text      string `json:"text"`
	PlainText string `json:"plain_text"`
}

// GetEntryOutput defines output for get_documentation_entry tool
type GetEntryOutput struct {
	Location string  `json:"location"`
	Path     string  `json:"path"`
	Anchor   string  `json:"anchor,omitempty"`
	Entries  []Entry `json:"entries"`
}

// IndexStatsInput defines input for documentation_index_stats tool
type IndexStatsInput struct{}

// IndexStatsOutput defines output for documentation_index_stats tool
type IndexStatsOutput struct {
	Records           int            `json:"records"`
	Categories        map[string]int `json:"categories"`
	Pages             []string       `json:"pages"`
	MissingFields     int            `json:"missing_fields"`
	UnknownCategories int            `json:"unknown_categories"`
	Source            string         `json:"source"`
	LoadedAt          time.Time      `json:"loaded_at"`
}

// RefreshIndexInput defines input for refresh_documentation_index tool
type RefreshIndexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Re-download or reload even if the cached index is fresh (optional)"`
}

// RefreshIndexOutput defines output for refresh_documentation_index tool
type RefreshIndexOutput struct {
	Updated  bool      `json:"updated"`
	Records  int       `json:"records"`
	Source   string    `json:"source"`
	LoadedAt time.Time `json:"loaded_at"`
	Message  string    `json:"message"`
}

// parseCategory validates an optional category filter
func parseCategory(s string) (searchindex.Category, error) {
	if s == "" {
		return "", nil
	}
	c := searchindex.Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q (want section, page, type or method)", s)
	}
	return c, nil
}

// resultLimit applies the configured default and the hard cap
func (d *DocSearch) resultLimit(requested int) int {
	if requested <= 0 {
		return d.cfg.Search.MaxResults
	}
	if requested > maxResultsCap {
		return maxResultsCap
	}
	return requested
}

// SearchDocumentation finds entries whose title or text contains the query.
// Title matches come first; ties keep index order.
func (d *DocSearch) SearchDocumentation(ctx context.Context, req *mcp.CallToolRequest, input SearchDocumentationInput) (*mcp.CallToolResult, SearchDocumentationOutput, error) {
	category, err := parseCategory(input.Category)
	if err != nil {
		return nil, SearchDocumentationOutput{}, err
	}
	if input.Offset < 0 {
		return nil, SearchDocumentationOutput{}, fmt.Errorf("offset must not be negative")
	}

	snap, release, err := d.acquire()
	if err != nil {
		return nil, SearchDocumentationOutput{}, err
	}
	defer release()

	hits := snap.cachedFind(input.Query, category)
	if input.Unique {
		hits = uniqueHits(hits)
	}

	output := SearchDocumentationOutput{
		Query:     input.Query,
		Locations: []string{},
		Results:   []SearchHit{},
		Offset:    input.Offset,
		TotalHits: len(hits),
	}

	if input.Offset >= len(hits) {
		return nil, output, nil
	}
	hits = hits[input.Offset:]
	limit := d.resultLimit(input.MaxResults)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	for _, hit := range hits {
		output.Locations = append(output.Locations, hit.Record.Location)
		output.Results = append(output.Results, toSearchHit(hit.Record, input.Query, hit.InTitle))
	}
	return nil, output, nil
}

// FulltextSearchDocumentation ranks entries by relevance using the bleve index
func (d *DocSearch) FulltextSearchDocumentation(ctx context.Context, req *mcp.CallToolRequest, input FulltextSearchInput) (*mcp.CallToolResult, FulltextSearchOutput, error) {
	category, err := parseCategory(input.Category)
	if err != nil {
		return nil, FulltextSearchOutput{}, err
	}

	snap, release, err := d.acquire()
	if err != nil {
		return nil, FulltextSearchOutput{}, err
	}
	defer release()

	results, total, err := fulltext.Search(snap.fulltext, fulltext.Request{
		Query:     input.Query,
		Category:  category,
		Limit:     d.resultLimit(input.MaxResults),
		Fuzziness: d.cfg.Search.Fuzziness,
	})
	if err != nil {
		return nil, FulltextSearchOutput{}, err
	}

	output := FulltextSearchOutput{
		Query:     input.Query,
		Results:   make([]FulltextHit, 0, len(results)),
		TotalHits: int(total),
	}
	for _, r := range results {
		output.Results = append(output.Results, FulltextHit{
			Location: r.Record.Location,
			Page:     r.Record.Page,
			Title:    r.Record.Title,
			Category: string(r.Record.Category),
			Snippet:  searchindex.Snippet(r.Record.Text, input.Query, snippetWidth),
			Score:    r.Score,
		})
	}
	return nil, output, nil
}

// GetDocumentationEntry returns every record stored under a location
func (d *DocSearch) GetDocumentationEntry(ctx context.Context, req *mcp.CallToolRequest, input GetEntryInput) (*mcp.CallToolResult, GetEntryOutput, error) {
	if input.Location == "" {
		return nil, GetEntryOutput{}, fmt.Errorf("location is required")
	}

	snap, release, err := d.acquire()
	if err != nil {
		return nil, GetEntryOutput{}, err
	}
	defer release()

	records := snap.index.ByLocation(input.Location)
	if len(records) == 0 {
		return nil, GetEntryOutput{}, fmt.Errorf("no documentation entry at %q", input.Location)
	}

	path, anchor := searchindex.SplitLocation(input.Location)
	output := GetEntryOutput{
		Location: input.Location,
		Path:     path,
		Anchor:   anchor,
		Entries:  make([]Entry, 0, len(records)),
	}
	for _, rec := range records {
		output.Entries = append(output.Entries, Entry{
			Location:  rec.Location,
			Page:      rec.Page,
			Title:     rec.Title,
			Category:  string(rec.Category),
			Text:      rec.Text,
			PlainText: searchindex.PlainText(rec.Text),
		})
	}
	return nil, output, nil
}

// DocumentationIndexStats summarises the loaded index
func (d *DocSearch) DocumentationIndexStats(ctx context.Context, req *mcp.CallToolRequest, input IndexStatsInput) (*mcp.CallToolResult, IndexStatsOutput, error) {
	snap, release, err := d.acquire()
	if err != nil {
		return nil, IndexStatsOutput{}, err
	}
	defer release()

	categories := make(map[string]int)
	for c, n := range snap.index.CategoryCounts() {
		categories[string(c)] = n
	}

	return nil, IndexStatsOutput{
		Records:           snap.index.Len(),
		Categories:        categories,
		Pages:             snap.index.Pages(),
		MissingFields:     snap.stats.MissingFields,
		UnknownCategories: snap.stats.UnknownCategories,
		Source:            snap.source,
		LoadedAt:          snap.loadedAt,
	}, nil
}

// RefreshDocumentationIndex reloads the index from its source
func (d *DocSearch) RefreshDocumentationIndex(ctx context.Context, req *mcp.CallToolRequest, input RefreshIndexInput) (*mcp.CallToolResult, RefreshIndexOutput, error) {
	updated, err := d.Refresh(ctx, input.Force)
	if err != nil {
		return nil, RefreshIndexOutput{}, fmt.Errorf("refresh failed: %w", err)
	}

	snap, release, err := d.acquire()
	if err != nil {
		return nil, RefreshIndexOutput{}, err
	}
	defer release()

	output := RefreshIndexOutput{
		Updated:  updated,
		Records:  snap.index.Len(),
		Source:   snap.source,
		LoadedAt: snap.loadedAt,
	}
	if updated {
		output.Message = fmt.Sprintf("Search index reloaded, %d records from %s", output.Records, output.Source)
	} else {
		output.Message = fmt.Sprintf("Search index is current (loaded %s from %s)", snap.loadedAt.Format(time.RFC3339), snap.source)
	}
	return nil, output, nil
}

// RegisterDocSearchTools registers documentation search tools
func RegisterDocSearchTools(server *mcp.Server, d *DocSearch) error {
	// Initialize doc search synchronously
	if err := d.Initialize(); err != nil {
		log.Printf("Warning: Documentation search initialization failed: %v", err)
		log.Printf("Documentation search will attempt to initialize on first use")
	}
	if err := d.StartWatching(); err != nil {
		log.Printf("Warning: Could not watch search index source: %v", err)
	}

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_documentation",
			Description: "Find documentation entries whose title or text contains the query (case-insensitive). Returns matching locations, title matches first. At most 100 results per call; total_hits reports every match and offset pages through the rest.",
		},
		d.SearchDocumentation,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "fulltext_search_documentation",
			Description: "Relevance-ranked, typo-tolerant search over documentation entries. Use when an exact substring lookup finds nothing.",
		},
		d.FulltextSearchDocumentation,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_documentation_entry",
			Description: "Return the full text of every documentation entry at a location returned by a search.",
		},
		d.GetDocumentationEntry,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "documentation_index_stats",
			Description: "Summarise the loaded documentation search index: record and category counts, pages and source.",
		},
		d.DocumentationIndexStats,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "refresh_documentation_index",
			Description: "Reload the documentation search index from its source, downloading it again when a URL is configured and the copy is stale or force is set.",
		},
		d.RefreshDocumentationIndex,
	)

	return nil
}

func toSearchHit(rec searchindex.Record, query string, inTitle bool) SearchHit {
	return SearchHit{
		Location: rec.Location,
		Page:     rec.Page,
		Title:    rec.Title,
		Category: string(rec.Category),
		Snippet:  searchindex.Snippet(rec.Text, query, snippetWidth),
		InTitle:  inTitle,
	}
}

func uniqueHits(hits []searchindex.Hit) []searchindex.Hit {
	seen := make(map[string]struct{}, len(hits))
	unique := make([]searchindex.Hit, 0, len(hits))
	for _, hit := range hits {
		if _, ok := seen[hit.Record.Location]; ok {
			continue
		}
		seen[hit.Record.Location] = struct{}{}
		unique = append(unique, hit)
	}
	return unique
}
