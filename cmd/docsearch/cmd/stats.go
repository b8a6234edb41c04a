package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/solverparams/docsearch-mcp/internal/searchindex"
	"github.com/solverparams/docsearch-mcp/tools"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the loaded documentation index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := root.openService()
			if err != nil {
				return err
			}
			defer d.Close()

			_, out, err := d.DocumentationIndexStats(cmd.Context(), nil, tools.IndexStatsInput{})
			if err != nil {
				return err
			}
			if root.jsonOut {
				return writeJSON(cmd.OutOrStdout(), out)
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Source:    %s\n", out.Source)
			fmt.Fprintf(w, "Loaded:    %s\n", out.LoadedAt.Format(time.RFC3339))
			fmt.Fprintf(w, "Records:   %d\n", out.Records)

			counts := make(map[searchindex.Category]int, len(out.Categories))
			for c, n := range out.Categories {
				counts[searchindex.Category(c)] = n
			}
			for _, c := range searchindex.SortedCategories(counts) {
				fmt.Fprintf(w, "  %-8s %d\n", c, counts[c])
			}

			fmt.Fprintf(w, "Pages:     %d\n", len(out.Pages))
			for _, p := range out.Pages {
				fmt.Fprintf(w, "  %s\n", p)
			}
			if out.MissingFields > 0 || out.UnknownCategories > 0 {
				fmt.Fprintf(w, "Warnings:  %d missing fields, %d unknown categories\n",
					out.MissingFields, out.UnknownCategories)
			}
			return nil
		},
	}
}
