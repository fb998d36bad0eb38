// Package knowledge provides keyword-scored snippet retrieval for the
// reply pipeline.
package knowledge

import (
	"context"
	"unicode/utf8"
)

// Source identifies one snippet that contributed to a result.
type Source struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}

// Result is the concatenated context text plus the sources it came from.
type Result struct {
	Text    string   `json:"text"`
	Sources []Source `json:"sources"`
}

// Index is the retrieval dependency of the pipeline. Implementations
// rank entries by keyword overlap with the query; limit bounds the number
// of sources and maxChars bounds the combined text length.
type Index interface {
	Search(ctx context.Context, merchantID, query string, limit, maxChars int) (*Result, error)
}

// truncate cuts s to at most max bytes, backing up so a multi-byte rune
// is never split. Knowledge content is largely CJK, where a byte-index
// cut would hand the prompt invalid UTF-8.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}

	if len(s) <= max {
		return s
	}

	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}

	return s[:max]
}
