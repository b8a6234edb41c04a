package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solverparams/docsearch-mcp/internal/fulltext"
	"github.com/solverparams/docsearch-mcp/internal/searchindex"
	"github.com/solverparams/docsearch-mcp/tools"
)

// fulltextOptions holds CLI flags for fulltext.
type fulltextOptions struct {
	category  string
	limit     int
	indexDir  string
	fuzziness int
}

func newFulltextCmd(root *rootOptions) *cobra.Command {
	var opts fulltextOptions

	cmd := &cobra.Command{
		Use:   "fulltext <query>",
		Short: "Relevance-ranked search with typo tolerance",
		Long: `Ranked full-text search over entry titles, pages and text.

By default the index is built in memory from the configured source. Pass
--index to query an on-disk index written by the indexer command instead.

Examples:
  docsearch fulltext "domain bounds"
  docsearch fulltext tutorail --category page
  docsearch fulltext lower --index data/search/index`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runFulltext(cmd, root, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Filter by category: section, page, type, method")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVar(&opts.indexDir, "index", "", "Query a prebuilt on-disk index instead of the source")
	cmd.Flags().IntVar(&opts.fuzziness, "fuzziness", 1, "Edit distance for --index queries (0-2)")

	return cmd
}

func runFulltext(cmd *cobra.Command, root *rootOptions, query string, opts fulltextOptions) error {
	var out tools.FulltextSearchOutput
	if opts.indexDir != "" {
		var err error
		out, err = searchPrebuilt(query, opts)
		if err != nil {
			return err
		}
	} else {
		d, err := root.openService()
		if err != nil {
			return err
		}
		defer d.Close()

		_, out, err = d.FulltextSearchDocumentation(cmd.Context(), nil, tools.FulltextSearchInput{
			Query:      query,
			Category:   opts.category,
			MaxResults: opts.limit,
		})
		if err != nil {
			return err
		}
	}

	if root.jsonOut {
		return writeJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	if len(out.Results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", query)
		return nil
	}
	for i, r := range out.Results {
		fmt.Fprintf(w, "%d. %s [%s] (score %.3f)\n", i+1, r.Title, r.Category, r.Score)
		fmt.Fprintf(w, "   %s\n", r.Location)
		if r.Snippet != "" {
			fmt.Fprintf(w, "   %s\n", r.Snippet)
		}
	}
	fmt.Fprintf(w, "\nShowing %d of %d results\n", len(out.Results), out.TotalHits)
	return nil
}

// searchPrebuilt queries an index directory written by fulltext.BuildAt
func searchPrebuilt(query string, opts fulltextOptions) (tools.FulltextSearchOutput, error) {
	category := searchindex.Category(opts.category)
	if category != "" && !category.Valid() {
		return tools.FulltextSearchOutput{}, fmt.Errorf("unknown category %q (want section, page, type or method)", opts.category)
	}

	idx, err := fulltext.Open(opts.indexDir)
	if err != nil {
		return tools.FulltextSearchOutput{}, err
	}
	defer idx.Close()

	results, total, err := fulltext.Search(idx, fulltext.Request{
		Query:     query,
		Category:  category,
		Limit:     opts.limit,
		Fuzziness: opts.fuzziness,
	})
	if err != nil {
		return tools.FulltextSearchOutput{}, err
	}

	out := tools.FulltextSearchOutput{
		Query:     query,
		Results:   make([]tools.FulltextHit, 0, len(results)),
		TotalHits: int(total),
	}
	for _, r := range results {
		out.Results = append(out.Results, tools.FulltextHit{
			Location: r.Record.Location,
			Page:     r.Record.Page,
			Title:    r.Record.Title,
			Category: string(r.Record.Category),
			Snippet:  searchindex.Snippet(r.Record.Text, query, 160),
			Score:    r.Score,
		})
	}
	return out, nil
}
