package browse

import (
	"context"

	"github.com/pders01/cutboard/internal/storage"
)

// Store is the content store the executor reads from. Pages are 1-based.
type Store interface {
	CountEntries(ctx context.Context, f storage.Filter) (storage.Counts, error)
	ListEntries(ctx context.Context, f storage.Filter, page, pageSize int) ([]*storage.Entry, error)
	ListFavoriteEntries(ctx context.Context, kind storage.ContentKind, page, pageSize int) ([]*storage.Entry, error)
	CountFavorites(ctx context.Context) (storage.Counts, error)
	ListSourceDomains(ctx context.Context, bucketID int64) ([]storage.SourceDomain, error)

	ToggleFavorite(ctx context.Context, entryID int64) error
	ToggleSensitive(ctx context.Context, entryID int64) error
	DeleteEntry(ctx context.Context, entryID int64) error
	DeleteEntriesByDomain(ctx context.Context, bucketID int64, domain string) error
}
