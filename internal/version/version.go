// Package version holds the build identity shared by the server and the CLI.
package version

// Overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

const (
	ServerName  = "docsearch-mcp"
	Description = "MCP server for searching Documenter.jl documentation indexes"
)
