// Package fulltext provides ranked, fuzzy search over search index records
// using bleve. It complements the substring lookup in searchindex.
package fulltext

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/solverparams/docsearch-mcp/internal/searchindex"
)

const (
	// IndexSchemaVersion increments when the document mapping changes
	IndexSchemaVersion = 1

	// VersionSuffix names the file beside an on-disk index that records its
	// schema version: an index at data/index has data/index.version
	VersionSuffix = ".version"

	batchSize = 100
)

// ErrVersionMismatch is returned by Open for indexes built with another schema
var ErrVersionMismatch = errors.New("index schema version mismatch")

// Index is an interface that abstracts bleve.Index operations
// This allows for easier testing with mocks
type Index interface {
	Search(req *bleve.SearchRequest) (*bleve.SearchResult, error)
	DocCount() (uint64, error)
	Close() error
}

// document is the shape stored in bleve for each record
type document struct {
	Location string `json:"location"`
	Page     string `json:"page"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Category string `json:"category"`
	Position int    `json:"position"`
}

func docID(position int) string {
	return fmt.Sprintf("rec_%06d", position)
}

func newDocument(position int, rec searchindex.Record) document {
	return document{
		Location: rec.Location,
		Page:     rec.Page,
		Title:    rec.Title,
		Text:     searchindex.PlainText(rec.Text),
		Category: string(rec.Category),
		Position: position,
	}
}

// newMapping indexes prose fields with the standard analyzer and keeps
// location and category as exact keywords for filtering
func newMapping() mapping.IndexMapping {
	keyword := bleve.NewKeywordFieldMapping()
	text := bleve.NewTextFieldMapping()
	numeric := bleve.NewNumericFieldMapping()

	doc := bleve.NewDocumentMapping()
	doc.AddFieldMappingsAt("location", keyword)
	doc.AddFieldMappingsAt("category", keyword)
	doc.AddFieldMappingsAt("page", text)
	doc.AddFieldMappingsAt("title", text)
	doc.AddFieldMappingsAt("text", text)
	doc.AddFieldMappingsAt("position", numeric)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

// Build creates an in-memory index over records
func Build(records []searchindex.Record) (Index, error) {
	index, err := bleve.NewMemOnly(newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory index: %w", err)
	}
	if err := indexRecords(index, records); err != nil {
		index.Close()
		return nil, err
	}
	return &bleveIndex{index: index}, nil
}

// BuildAt writes an on-disk index for records to dir, replacing any index
// already there. The index is built in a temp directory and renamed into place.
func BuildAt(dir string, records []searchindex.Record) error {
	tempDir := dir + ".tmp"

	// Clean up any leftover temp index from a previous crash
	os.RemoveAll(tempDir)

	if err := os.MkdirAll(filepath.Dir(tempDir), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	index, err := bleve.New(tempDir, newMapping())
	if err != nil {
		return fmt.Errorf("failed to create temp index: %w", err)
	}

	if err := indexRecords(index, records); err != nil {
		index.Close()
		os.RemoveAll(tempDir)
		return err
	}

	if err := index.Close(); err != nil {
		os.RemoveAll(tempDir)
		return fmt.Errorf("failed to close temp index: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil && !os.IsNotExist(err) {
		os.RemoveAll(tempDir)
		return fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.Rename(tempDir, dir); err != nil {
		os.RemoveAll(tempDir)
		return fmt.Errorf("failed to rename temp index: %w", err)
	}

	if err := WriteVersion(dir); err != nil {
		log.Printf("Warning: Failed to write index version: %v", err)
	}
	return nil
}

// Open opens an on-disk index built by BuildAt
func Open(dir string) (Index, error) {
	if v := ReadVersion(dir); v != IndexSchemaVersion {
		return nil, fmt.Errorf("%w (have: v%d, want: v%d)", ErrVersionMismatch, v, IndexSchemaVersion)
	}
	index, err := bleve.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return &bleveIndex{index: index}, nil
}

func indexRecords(index bleve.Index, records []searchindex.Record) error {
	batch := index.NewBatch()
	for i, rec := range records {
		if err := batch.Index(docID(i), newDocument(i, rec)); err != nil {
			return fmt.Errorf("failed to add record %d to batch: %w", i, err)
		}

		if (i+1)%batchSize == 0 {
			if err := index.Batch(batch); err != nil {
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			return fmt.Errorf("failed to index final batch: %w", err)
		}
	}
	return nil
}

// versionPath keeps the version file beside the index directory, not inside
// it, so bleve never sees a foreign file. Each index gets its own file.
func versionPath(dir string) string {
	return filepath.Clean(dir) + VersionSuffix
}

// ReadVersion returns the schema version recorded for the index at dir, 0 if none
func ReadVersion(dir string) int {
	data, err := os.ReadFile(versionPath(dir))
	if err != nil {
		return 0
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return v
}

// WriteVersion records IndexSchemaVersion for the index at dir
func WriteVersion(dir string) error {
	return os.WriteFile(versionPath(dir), []byte(strconv.Itoa(IndexSchemaVersion)), 0644)
}

// bleveIndex wraps a bleve.Index to implement our Index interface
type bleveIndex struct {
	index bleve.Index
}

func (w *bleveIndex) Search(req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	return w.index.Search(req)
}

func (w *bleveIndex) DocCount() (uint64, error) {
	return w.index.DocCount()
}

func (w *bleveIndex) Close() error {
	return w.index.Close()
}
