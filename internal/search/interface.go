package search

import "github.com/pders01/cutboard/internal/storage"

// Searcher narrows candidate entries to those whose text matches query,
// preserving the candidates' order.
type Searcher interface {
	Filter(query string, candidates []*storage.Entry) ([]*storage.Entry, error)
}

// UpdateListener can be implemented by search engines that maintain
// an external index and want to be notified about new entries.
type UpdateListener interface {
	OnEntriesAdded(entries []*storage.Entry)
}

// DeleteListener can be implemented to get notified when entries are removed.
type DeleteListener interface {
	OnEntriesDeleted(ids []int64)
}

// DebugStatser provides lightweight stats for visibility/debugging.
type DebugStatser interface {
	DocCount() (int, error)
}
