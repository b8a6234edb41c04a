package tools

import (
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer creates an MCP server with the documentation tools registered
func NewServer(name, version string, d *DocSearch) (*mcp.Server, error) {
	server := mcp.NewServer(
		&mcp.Implementation{
			Name:    name,
			Version: version,
		},
		nil, // Default options
	)
	log.Printf("Server initialized: %s v%s", name, version)

	if err := RegisterDocSearchTools(server, d); err != nil {
		return nil, fmt.Errorf("failed to register doc search tools: %w", err)
	}
	log.Printf("✓ All tools registered: 5 tools (search + fulltext + entry + stats + refresh)")
	return server, nil
}
