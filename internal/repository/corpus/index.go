// Package corpus holds the searchable text and its suffix array index.
package corpus

import (
	"bytes"
	"fmt"
	"index/suffixarray"
	"os"
	"path/filepath"
	"regexp"
	"unicode/utf8"
)

// Index is an immutable, concurrency-safe full-text index over a single document.
type Index struct {
	text string
	sa   *suffixarray.Index
}

// New builds an index over data. CRLF line endings are normalized to LF so that
// queries spanning a line break match the same way on every platform.
func New(data []byte) *Index {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return &Index{
		text: string(data),
		sa:   suffixarray.New(data),
	}
}

// Load reads the file at path and builds an index over its contents.
func Load(path string) (*Index, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", path, err)
	}
	return New(data), nil
}

// Len returns the size of the indexed text in bytes.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.text)
}

// Find returns the byte offsets of all case-insensitive, non-overlapping
// occurrences of query, in ascending order. The query is matched literally.
func (i *Index) Find(query string) ([]int, error) {
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(query))
	if err != nil {
		return nil, fmt.Errorf("compile query: %w", err)
	}

	matches := i.sa.FindAllIndex(re, -1)
	positions := make([]int, len(matches))
	for n, m := range matches {
		positions[n] = m[0]
	}
	return positions, nil
}

// Preview returns the text surrounding pos: radius bytes on each side, clamped
// to the document and widened to whole UTF-8 runes.
func (i *Index) Preview(pos, radius int) string {
	start := max(pos-radius, 0)
	end := min(pos+radius, len(i.text))
	if start >= end {
		return ""
	}

	for start > 0 && !utf8.RuneStart(i.text[start]) {
		start--
	}
	for end < len(i.text) && !utf8.RuneStart(i.text[end]) {
		end++
	}
	return i.text[start:end]
}
