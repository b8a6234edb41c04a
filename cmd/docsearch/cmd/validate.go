package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/solverparams/docsearch-mcp/internal/searchindex"
)

// validateResult is the --json form of a validation report
type validateResult struct {
	File              string         `json:"file"`
	Valid             bool           `json:"valid"`
	Records           int            `json:"records"`
	MissingFields     int            `json:"missing_fields"`
	UnknownCategories int            `json:"unknown_categories"`
	Categories        map[string]int `json:"categories,omitempty"`
	Error             string         `json:"error,omitempty"`
	ErrorPath         string         `json:"error_path,omitempty"`
}

func newValidateCmd(root *rootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a search_index.js file loads",
		Long: `Parse a search index file and report its record counts.

Malformed input is reported with the JSON pointer of the offending value.
With --strict, missing fields and unknown categories also fail validation.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, root, args[0], strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on missing fields or unknown categories")
	return cmd
}

func runValidate(cmd *cobra.Command, root *rootOptions, file string, strict bool) error {
	result := validateResult{File: file}

	records, stats, err := loadFile(file)
	if err == nil && strict && (stats.MissingFields > 0 || stats.UnknownCategories > 0) {
		err = fmt.Errorf("%d missing fields, %d unknown categories", stats.MissingFields, stats.UnknownCategories)
	}

	if err != nil {
		result.Error = err.Error()
		var parseErr *searchindex.ParseError
		if errors.As(err, &parseErr) {
			result.ErrorPath = parseErr.Path
		}
		if root.jsonOut {
			if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}
		}
		return fmt.Errorf("%s: %w", file, err)
	}

	result.Valid = true
	result.Records = stats.Records
	result.MissingFields = stats.MissingFields
	result.UnknownCategories = stats.UnknownCategories
	counts := searchindex.NewIndex(records).CategoryCounts()
	result.Categories = make(map[string]int, len(counts))
	for c, n := range counts {
		result.Categories[string(c)] = n
	}

	if root.jsonOut {
		return writeJSON(cmd.OutOrStdout(), result)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s: %d records\n", file, stats.Records)
	for _, c := range searchindex.SortedCategories(counts) {
		fmt.Fprintf(w, "  %-8s %d\n", c, counts[c])
	}
	if stats.MissingFields > 0 || stats.UnknownCategories > 0 {
		fmt.Fprintf(w, "Warning: %d missing fields, %d unknown categories\n",
			stats.MissingFields, stats.UnknownCategories)
	}
	return nil
}

func loadFile(path string) ([]searchindex.Record, searchindex.LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, searchindex.LoadStats{}, err
	}
	defer f.Close()
	return searchindex.LoadWithStats(f)
}
