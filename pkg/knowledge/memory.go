package knowledge

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Entry is one stored knowledge snippet.
type Entry struct {
	ID         string
	MerchantID string
	Title      string
	Category   string
	Content    string
}

// MemoryIndex is the in-process Index used by tests and local runs.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string][]Entry // by merchant id
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string][]Entry)}
}

func (i *MemoryIndex) Add(entry Entry) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.entries[entry.MerchantID] = append(i.entries[entry.MerchantID], entry)
}

func (i *MemoryIndex) Search(_ context.Context, merchantID, query string, limit, maxChars int) (*Result, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 3
	}

	if maxChars <= 0 {
		maxChars = 2000
	}

	terms := queryTerms(query)

	type scored struct {
		entry Entry
		score int
	}

	var matches []scored

	for _, entry := range i.entries[merchantID] {
		haystack := strings.ToLower(entry.Title + " " + entry.Content)
		score := 0

		for _, term := range terms {
			if strings.Contains(haystack, term) {
				score++
			}
		}

		if score > 0 {
			matches = append(matches, scored{entry: entry, score: score})
		}
	}

	sort.SliceStable(matches, func(a, b int) bool {
		return matches[a].score > matches[b].score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	result := &Result{}

	var b strings.Builder

	for _, m := range matches {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}

		remaining := maxChars - b.Len()
		if remaining <= 0 {
			break
		}

		b.WriteString(truncate(m.entry.Content, remaining))
		result.Sources = append(result.Sources, Source{
			ID:       m.entry.ID,
			Title:    m.entry.Title,
			Category: m.entry.Category,
		})
	}

	result.Text = b.String()

	return result, nil
}

// queryTerms splits a query into lowercase match terms. Whitespace-
// separated words for latin text, rune bigrams for CJK text that carries
// no word boundaries.
func queryTerms(query string) []string {
	lowered := strings.ToLower(strings.TrimSpace(query))

	terms := strings.Fields(lowered)

	for _, word := range strings.Fields(lowered) {
		runes := []rune(word)
		if len(runes) < 2 || runes[0] < 0x2E80 {
			continue
		}

		for idx := 0; idx+1 < len(runes); idx++ {
			terms = append(terms, string(runes[idx:idx+2]))
		}
	}

	if len(terms) == 0 && lowered != "" {
		terms = []string{lowered}
	}

	return terms
}
