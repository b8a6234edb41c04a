package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/solverparams/docsearch-mcp/internal/fulltext"
	"github.com/solverparams/docsearch-mcp/internal/searchindex"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "Usage: %s <search_index.js> <index-dir>\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s docs/build/search_index.js data/search/index\n", os.Args[0])
		os.Exit(1)
	}

	sourceFile := os.Args[1]
	indexDir := os.Args[2]

	log.Printf("Documentation Indexer v%d", fulltext.IndexSchemaVersion)
	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	// Step 1: Parse the search index
	log.Printf("Loading search index: %s", sourceFile)
	f, err := os.Open(sourceFile)
	if err != nil {
		log.Fatalf("Failed to open search index: %v", err)
	}
	records, stats, err := searchindex.LoadWithStats(f)
	f.Close()
	if err != nil {
		log.Fatalf("Failed to load search index: %v", err)
	}

	counts := searchindex.NewIndex(records).CategoryCounts()
	log.Printf("✓ Loaded %d records (%d missing fields, %d unknown categories)",
		stats.Records, stats.MissingFields, stats.UnknownCategories)

	// Step 2: Build the on-disk index, replacing any previous one
	log.Printf("Creating search index: %s", indexDir)
	start := time.Now()
	if err := fulltext.BuildAt(indexDir, records); err != nil {
		log.Fatalf("Failed to build index: %v", err)
	}
	log.Printf("✓ Indexed %d records in %v", len(records), time.Since(start).Round(time.Millisecond))

	log.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("✓ Indexing complete!")
	log.Printf("")
	log.Printf("Index details:")
	log.Printf("  Location:      %s", indexDir)
	log.Printf("  Total records: %d", len(records))
	for _, c := range searchindex.SortedCategories(counts) {
		log.Printf("  %-13s %d", string(c)+":", counts[c])
	}
	log.Printf("  Schema:        v%d", fulltext.IndexSchemaVersion)
}
