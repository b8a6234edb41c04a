package searchindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrEmptyInput is wrapped in a ParseError when the source holds nothing but whitespace
var ErrEmptyInput = errors.New("empty search index input")

// ParseError reports malformed or structurally invalid index input
type ParseError struct {
	Offset int64  // byte offset in the original input, -1 when unknown
	Path   string // JSON pointer of the offending value, empty for syntax errors
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse search index")
	if e.Path != "" {
		fmt.Fprintf(&b, " at %s", e.Path)
	} else if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset %d", e.Offset)
	}
	b.WriteString(": ")
	b.WriteString(e.Msg)
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// jsAssignment matches the "var documenterSearchIndex = " prefix the generator
// writes in front of the JSON document
var jsAssignment = regexp.MustCompile(`^(?:(?:var|let|const)\s+)?[A-Za-z_$][\w$.]*\s*=\s*$`)

// Load parses a search index document into records.
// Both the bare JSON form and the generated JavaScript assignment form are accepted.
func Load(r io.Reader) ([]Record, error) {
	records, _, err := LoadWithStats(r)
	return records, err
}

// LoadBytes parses a search index held in memory
func LoadBytes(data []byte) ([]Record, error) {
	records, _, err := loadBytes(data)
	return records, err
}

// LoadFile parses the search index stored at path
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read search index: %w", err)
	}
	return LoadBytes(data)
}

// LoadWithStats is Load that also reports tolerated irregularities
func LoadWithStats(r io.Reader) ([]Record, LoadStats, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("failed to read search index: %w", err)
	}
	return loadBytes(data)
}

func loadBytes(data []byte) ([]Record, LoadStats, error) {
	body, offset, err := unwrapDocument(data)
	if err != nil {
		return nil, LoadStats{}, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		perr := &ParseError{Offset: -1, Msg: err.Error(), Err: err}
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			perr.Offset = offset + syntaxErr.Offset
		}
		return nil, LoadStats{}, perr
	}

	if err := validateDocument(doc); err != nil {
		return nil, LoadStats{}, err
	}

	return decodeRecords(doc)
}

// unwrapDocument strips the JavaScript assignment around the JSON document.
// The returned offset is where body starts within data.
func unwrapDocument(data []byte) ([]byte, int64, error) {
	start := 0
	for start < len(data) && isSpace(data[start]) {
		start++
	}
	if start == len(data) {
		return nil, 0, &ParseError{Offset: int64(start), Msg: "empty input", Err: ErrEmptyInput}
	}

	brace := bytes.IndexAny(data[start:], "{[")
	if brace < 0 {
		return nil, 0, &ParseError{Offset: int64(start), Msg: "no JSON document found"}
	}
	if brace > 0 {
		prefix := data[start : start+brace]
		if !jsAssignment.Match(prefix) {
			return nil, 0, &ParseError{Offset: int64(start), Msg: fmt.Sprintf("unexpected content before document: %q", truncate(string(prefix), 40))}
		}
		start += brace
	}

	end := len(data)
	for end > start && (isSpace(data[end-1]) || data[end-1] == ';') {
		end--
	}
	return data[start:end], int64(start), nil
}

func decodeRecords(doc any) ([]Record, LoadStats, error) {
	root := doc.(map[string]any)
	entries := root["docs"].([]any)

	stats := LoadStats{Records: len(entries)}
	records := make([]Record, 0, len(entries))
	for _, entry := range entries {
		fields := entry.(map[string]any)
		rec := Record{
			Location: stringField(fields, "location", &stats),
			Page:     stringField(fields, "page", &stats),
			Title:    stringField(fields, "title", &stats),
			Text:     stringField(fields, "text", &stats),
			Category: Category(stringField(fields, "category", &stats)),
		}
		if !rec.Category.Valid() {
			stats.UnknownCategories++
		}
		records = append(records, rec)
	}
	return records, stats, nil
}

// stringField reads a schema-checked field, substituting "" when absent
func stringField(fields map[string]any, name string, stats *LoadStats) string {
	v, ok := fields[name]
	if !ok {
		stats.MissingFields++
		return ""
	}
	s, _ := v.(string)
	return s
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
