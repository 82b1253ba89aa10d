package search

import (
	"strings"

	"github.com/pders01/cutboard/internal/storage"
)

// Engine matches case-insensitive substrings of an entry's text body.
// It needs no index.
type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

func (e *Engine) Filter(query string, candidates []*storage.Entry) ([]*storage.Entry, error) {
	if query == "" {
		return candidates, nil
	}
	needle := strings.ToLower(query)
	out := make([]*storage.Entry, 0, len(candidates))
	for _, entry := range candidates {
		if Matches(entry, needle) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// Matches reports whether the entry's text contains the lower-cased needle.
// Image entries never match a text query.
func Matches(entry *storage.Entry, needle string) bool {
	if entry.Kind != storage.KindText || entry.TextBody == "" {
		return false
	}
	return strings.Contains(strings.ToLower(entry.TextBody), needle)
}
