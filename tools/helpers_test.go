package tools

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/solverparams/docsearch-mcp/internal/config"
)

const sampleIndex = `var documenterSearchIndex = {"docs":
[{"location":"reference/#Reference","page":"Reference","title":"Reference","text":"","category":"section"},
{"location":"reference/","page":"Reference","title":"Reference","text":"\u200b","category":"page"},
{"location":"reference/#SolverParameters.AbstractDomain","page":"Reference","title":"SolverParameters.AbstractDomain","text":"AbstractDomain{T}\n\nAn abstract domain type.","category":"type"},
{"location":"reference/#SolverParameters.lower","page":"Reference","title":"SolverParameters.lower","text":"lower(d::AbstractDomain{T}): return the lower bound of the domain","category":"method"},
{"location":"tutorial/","page":"Tutorial","title":"Tutorial","text":"See the Reference for details.","category":"page"}]
}
`

const smallIndex = `{"docs": [
{"location":"home/","page":"Home","title":"Home","text":"Welcome","category":"page"},
{"location":"home/#Install","page":"Home","title":"Install","text":"Add the package","category":"section"}
]}`

// newTestDocSearch builds a service over sampleIndex written to a temp file,
// with watching disabled and a temp data directory
func newTestDocSearch(t *testing.T, mutate func(cfg *config.Config)) *DocSearch {
	t.Helper()

	source := filepath.Join(t.TempDir(), "search_index.js")
	if err := os.WriteFile(source, []byte(sampleIndex), 0644); err != nil {
		t.Fatalf("Failed to write test index: %v", err)
	}

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Source.Path = source
	cfg.Watch.Enabled = false
	if mutate != nil {
		mutate(cfg)
	}

	d := NewDocSearch(cfg)
	t.Cleanup(func() { d.Close() })
	return d
}

// mockDataProvider serves bundled files from memory
type mockDataProvider struct {
	files map[string][]byte
}

func newMockDataProvider() *mockDataProvider {
	return &mockDataProvider{files: make(map[string][]byte)}
}

func (m *mockDataProvider) AddFile(name string, content []byte) {
	m.files[name] = content
}

func (m *mockDataProvider) ReadFile(name string) ([]byte, error) {
	content, exists := m.files[name]
	if !exists {
		return nil, fs.ErrNotExist
	}
	return content, nil
}

// mockIndex is a simple in-memory stand-in for the full-text index
type mockIndex struct {
	id       int
	docCount uint64
	closed   atomic.Bool
}

func newMockIndex(id int) *mockIndex {
	return &mockIndex{id: id, docCount: 100}
}

func (m *mockIndex) Search(req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("index closed")
	}
	return &bleve.SearchResult{Request: req, Total: m.docCount}, nil
}

func (m *mockIndex) DocCount() (uint64, error) {
	if m.closed.Load() {
		return 0, fmt.Errorf("index closed")
	}
	return m.docCount, nil
}

func (m *mockIndex) Close() error {
	if m.closed.Swap(true) {
		return fmt.Errorf("already closed")
	}
	return nil
}

// waitFor polls cond until it holds or the timeout passes
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}
