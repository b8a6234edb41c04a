package cmd

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/solverparams/docsearch-mcp/internal/version"
	"github.com/solverparams/docsearch-mcp/tools"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio",
		Long: `Start an MCP server on stdin/stdout exposing the documentation tools.

stdout carries the protocol only; logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// MCP uses stdout for protocol
			log.SetOutput(cmd.ErrOrStderr())

			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}

			d := tools.NewDocSearch(cfg)
			defer func() {
				if err := d.Close(); err != nil {
					log.Printf("Error closing doc search: %v", err)
				}
			}()

			server, err := tools.NewServer(version.ServerName, version.Version, d)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Printf("✓ Server ready and waiting for connections")
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
}
