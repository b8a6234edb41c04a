// Package main provides the entry point for the docsearch CLI.
package main

import (
	"os"

	"github.com/solverparams/docsearch-mcp/cmd/docsearch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
