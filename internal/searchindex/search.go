package searchindex

import (
	"sort"
	"strings"
)

// Search returns the locations of records whose title or text contains query,
// compared case-insensitively. Title matches come first, then text-only
// matches, each group in original order. An empty query matches nothing.
func Search(query string, records []Record) []string {
	return NewIndex(records).Search(query)
}

// Query narrows a search over an Index
type Query struct {
	Text     string
	Category Category // empty matches every category
	Limit    int      // 0 means unlimited
}

// Hit is a record matched by a query
type Hit struct {
	Record   Record
	Position int  // index of the record in load order
	InTitle  bool // matched in the title rather than only in the text
}

// Index holds records with lower-cased search fields for repeated queries.
// It is read-only after construction and safe for concurrent use.
type Index struct {
	records []Record
	titles  []string
	texts   []string
	byLoc   map[string][]int
}

// NewIndex prepares records for searching. The slice is not copied and must
// not be modified afterwards.
func NewIndex(records []Record) *Index {
	idx := &Index{
		records: records,
		titles:  make([]string, len(records)),
		texts:   make([]string, len(records)),
		byLoc:   make(map[string][]int),
	}
	for i, rec := range records {
		idx.titles[i] = strings.ToLower(rec.Title)
		idx.texts[i] = strings.ToLower(rec.Text)
		idx.byLoc[rec.Location] = append(idx.byLoc[rec.Location], i)
	}
	return idx
}

// Len returns the number of records in the index
func (idx *Index) Len() int {
	return len(idx.records)
}

// Records returns the indexed records in load order
func (idx *Index) Records() []Record {
	return idx.records
}

// Search returns matching locations with the same ordering rules as Search
func (idx *Index) Search(query string) []string {
	hits := idx.Find(Query{Text: query})
	locations := make([]string, len(hits))
	for i, hit := range hits {
		locations[i] = hit.Record.Location
	}
	return locations
}

// Find returns the records matching q, title matches first
func (idx *Index) Find(q Query) []Hit {
	if IsPlaceholder(q.Text) {
		return []Hit{}
	}
	needle := strings.ToLower(q.Text)

	var titleHits, textHits []Hit
	for i, rec := range idx.records {
		if q.Category != "" && rec.Category != q.Category {
			continue
		}
		switch {
		case strings.Contains(idx.titles[i], needle):
			titleHits = append(titleHits, Hit{Record: rec, Position: i, InTitle: true})
		case strings.Contains(idx.texts[i], needle):
			textHits = append(textHits, Hit{Record: rec, Position: i})
		}
	}

	hits := append(make([]Hit, 0, len(titleHits)+len(textHits)), titleHits...)
	hits = append(hits, textHits...)
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}
	return hits
}

// ByLocation returns every record stored under loc, in load order
func (idx *Index) ByLocation(loc string) []Record {
	positions := idx.byLoc[loc]
	records := make([]Record, len(positions))
	for i, pos := range positions {
		records[i] = idx.records[pos]
	}
	return records
}

// Pages returns the distinct page titles in first-seen order
func (idx *Index) Pages() []string {
	seen := make(map[string]struct{})
	var pages []string
	for _, rec := range idx.records {
		if _, ok := seen[rec.Page]; ok {
			continue
		}
		seen[rec.Page] = struct{}{}
		pages = append(pages, rec.Page)
	}
	return pages
}

// CategoryCounts counts records per category
func (idx *Index) CategoryCounts() map[Category]int {
	counts := make(map[Category]int)
	for _, rec := range idx.records {
		counts[rec.Category]++
	}
	return counts
}

// SortedCategories returns the keys of counts, known categories first
func SortedCategories(counts map[Category]int) []Category {
	cats := make([]Category, 0, len(counts))
	for c := range counts {
		cats = append(cats, c)
	}
	rank := func(c Category) int {
		for i, known := range Categories {
			if c == known {
				return i
			}
		}
		return len(Categories)
	}
	sort.Slice(cats, func(i, j int) bool {
		ri, rj := rank(cats[i]), rank(cats[j])
		if ri != rj {
			return ri < rj
		}
		return cats[i] < cats[j]
	})
	return cats
}

// UniqueLocations drops repeated locations, keeping the first occurrence
func UniqueLocations(locations []string) []string {
	seen := make(map[string]struct{}, len(locations))
	unique := make([]string, 0, len(locations))
	for _, loc := range locations {
		if _, ok := seen[loc]; ok {
			continue
		}
		seen[loc] = struct{}{}
		unique = append(unique, loc)
	}
	return unique
}
