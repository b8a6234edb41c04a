package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/solverparams/docsearch-mcp/internal/config"
	"github.com/solverparams/docsearch-mcp/internal/version"
	"github.com/solverparams/docsearch-mcp/tools"
)

func main() {
	showVersion := flag.Bool("version", false, "Print version and exit")
	configPath := flag.String("config", "", "Path to config.yaml (default ~/.docsearch-mcp/config.yaml)")
	source := flag.String("source", "", "Path to a search_index.js file (overrides config)")
	flag.Parse()

	// Handle version flag
	if *showVersion {
		fmt.Printf("%s version %s\n", version.ServerName, version.Version)
		os.Exit(0)
	}

	// Set up logging to stderr (MCP uses stdout for protocol)
	log.SetOutput(os.Stderr)
	log.Printf("%s v%s starting...", version.ServerName, version.Version)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *source != "" {
		cfg.Source.Path = *source
	}

	docs := tools.NewDocSearch(cfg)

	// Set up cleanup on shutdown
	defer func() {
		if err := docs.Close(); err != nil {
			log.Printf("Error closing doc search: %v", err)
		}
	}()

	server, err := tools.NewServer(version.ServerName, version.Version, docs)
	if err != nil {
		log.Fatalf("Failed to register tools: %v", err)
	}

	log.Printf("✓ Server ready and waiting for connections")

	// Run server with stdio transport
	ctx := context.Background()
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		log.Printf("Server error: %v", err)
	}
}
