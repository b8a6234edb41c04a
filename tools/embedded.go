package tools

import "embed"

// A build-time copy of the search index ships inside the binary so the server
// answers queries with no source configured and no network.
//
//go:embed data/search_index.js
var embeddedFS embed.FS

// embeddedDataProvider implements DataProvider using embed.FS.
// This is the production implementation that uses actual embedded files.
type embeddedDataProvider struct {
	fs embed.FS
}

// NewEmbeddedDataProvider creates a production DataProvider that uses embedded files.
func NewEmbeddedDataProvider() DataProvider {
	return &embeddedDataProvider{fs: embeddedFS}
}

// ReadFile reads the named file from the embedded filesystem.
func (p *embeddedDataProvider) ReadFile(name string) ([]byte, error) {
	return p.fs.ReadFile(name)
}

// Default provider used when no other provider is injected
var defaultDataProvider DataProvider = NewEmbeddedDataProvider()
