package searchindex

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	markdownLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\([^\)]+\)`)
	htmlTagRegex      = regexp.MustCompile(`</?[A-Za-z][A-Za-z0-9]*(\s[^<>]*)?/?>`)
)

// IsPlaceholder reports whether text carries no searchable content.
// The generator emits a lone zero-width space for page records.
func IsPlaceholder(text string) bool {
	return strings.TrimFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || r == '\u200b' || r == '\ufeff'
	}) == ""
}

// StripMarkdownLinks removes markdown link syntax, keeping only the text
// Example: "[Text](url)" -> "Text"
func StripMarkdownLinks(text string) string {
	return markdownLinkRegex.ReplaceAllString(text, "$1")
}

// PlainText strips HTML tags and markdown links and collapses whitespace
func PlainText(text string) string {
	if IsPlaceholder(text) {
		return ""
	}
	if htmlTagRegex.MatchString(text) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(text)); err == nil {
			text = doc.Text()
		}
	}
	text = StripMarkdownLinks(text)
	return strings.Join(strings.Fields(text), " ")
}

// Snippet returns up to width runes of plain text centred on the first
// case-insensitive occurrence of query. Without a match the text head is used.
func Snippet(text, query string, width int) string {
	plain := PlainText(text)
	if width <= 0 || utf8.RuneCountInString(plain) <= width {
		return plain
	}

	runes := []rune(plain)
	start := 0
	if q := strings.ToLower(strings.TrimSpace(query)); q != "" {
		if at := strings.Index(strings.ToLower(plain), q); at >= 0 {
			matchRune := utf8.RuneCountInString(strings.ToLower(plain)[:at])
			start = matchRune - width/3
		}
	}
	if start < 0 {
		start = 0
	}
	if start+width > len(runes) {
		start = len(runes) - width
	}

	out := string(runes[start : start+width])
	if start > 0 {
		out = "…" + out
	}
	if start+width < len(runes) {
		out += "…"
	}
	return out
}

// SplitLocation separates a location into its page path and anchor
// Example: "reference/#SolverParameters.lower" -> "reference/", "SolverParameters.lower"
func SplitLocation(loc string) (path, anchor string) {
	if i := strings.IndexByte(loc, '#'); i >= 0 {
		return loc[:i], loc[i+1:]
	}
	return loc, ""
}
