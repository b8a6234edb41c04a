// Package cmd provides the CLI commands for docsearch.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/solverparams/docsearch-mcp/internal/config"
	"github.com/solverparams/docsearch-mcp/internal/version"
	"github.com/solverparams/docsearch-mcp/tools"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	source     string
	jsonOut    bool
	verbose    bool
}

// NewRootCmd creates the root command for the docsearch CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docsearch",
		Short: "Search Documenter.jl documentation indexes",
		Long: `docsearch looks up entries in the search_index.js file that
Documenter.jl generates for a package's documentation.

Searches run against the configured source: a local file, a URL that is
downloaded and cached, or the index bundled into the binary.

Run 'docsearch serve' to expose the same lookups as MCP tools over stdio.`,
		Version:      version.Version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Service logs are noise for one-shot commands
			if opts.verbose {
				log.SetOutput(cmd.ErrOrStderr())
			} else {
				log.SetOutput(io.Discard)
			}
		},
	}

	cmd.SetVersionTemplate("docsearch version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config.yaml (default ~/.docsearch-mcp/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.source, "source", "", "search_index.js file or http(s) URL (overrides config)")
	cmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "Print results as JSON")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log service activity to stderr")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newFulltextCmd(opts))
	cmd.AddCommand(newStatsCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	cmd.AddCommand(newServeCmd(opts))

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the config file and applies --source
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.source != "" {
		if strings.HasPrefix(o.source, "http://") || strings.HasPrefix(o.source, "https://") {
			cfg.Source.URL = o.source
			cfg.Source.Path = ""
		} else {
			cfg.Source.Path = o.source
		}
	}
	return cfg, nil
}

// openService loads the index for a one-shot command. The caller must Close it.
func (o *rootOptions) openService() (*tools.DocSearch, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.Watch.Enabled = false

	d := tools.NewDocSearch(cfg)
	if err := d.Initialize(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to load documentation index: %w", err)
	}
	return d, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
