package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/solverparams/docsearch-mcp/tools"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	category string
	limit    int
	offset   int
	unique   bool
}

func newSearchCmd(root *rootOptions) *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find entries whose title or text contains the query",
		Long: `Case-insensitive substring search over entry titles and text.

Entries whose title matches are listed first; within each group entries keep
the order of the index file.

Examples:
  docsearch search lower
  docsearch search "abstract domain" --category type
  docsearch search solver --unique --limit 5 --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, root, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Filter by category: section, page, type, method")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "Skip this many matches")
	cmd.Flags().BoolVarP(&opts.unique, "unique", "u", false, "List each location once")

	return cmd
}

func runSearch(cmd *cobra.Command, root *rootOptions, query string, opts searchOptions) error {
	d, err := root.openService()
	if err != nil {
		return err
	}
	defer d.Close()

	_, out, err := d.SearchDocumentation(cmd.Context(), nil, tools.SearchDocumentationInput{
		Query:      query,
		Category:   opts.category,
		MaxResults: opts.limit,
		Offset:     opts.offset,
		Unique:     opts.unique,
	})
	if err != nil {
		return err
	}

	if root.jsonOut {
		return writeJSON(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	if len(out.Results) == 0 {
		fmt.Fprintf(w, "No results for %q\n", query)
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, r := range out.Results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Location, r.Category, r.Title)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if out.Offset > 0 {
		fmt.Fprintf(w, "\nShowing %d-%d of %d results\n", out.Offset+1, out.Offset+len(out.Results), out.TotalHits)
	} else {
		fmt.Fprintf(w, "\nShowing %d of %d results\n", len(out.Results), out.TotalHits)
	}
	return nil
}
