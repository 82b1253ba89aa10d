package library

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/pders01/cutboard/internal/cache"
	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/search"
	"github.com/pders01/cutboard/internal/storage"
	"github.com/pders01/cutboard/internal/validation"
)

const DefaultImageCacheSize = 100

type Options struct {
	ImagesDir      string
	Product        string
	ImageCacheSize int
}

// Library serves browsing, mutation and export over the local store.
type Library struct {
	store     *storage.Store
	searcher  search.Searcher
	imagesDir string
	product   string
	images    *cache.Bounded[string, *Image]
	hub       *hub
}

func New(store *storage.Store, searcher search.Searcher, opts Options) *Library {
	if searcher == nil {
		searcher = search.NewEngine()
	}
	if opts.ImageCacheSize < 1 {
		opts.ImageCacheSize = DefaultImageCacheSize
	}
	if opts.Product == "" {
		opts.Product = "cutboard"
	}
	return &Library{
		store:     store,
		searcher:  searcher,
		imagesDir: opts.ImagesDir,
		product:   opts.Product,
		images:    cache.NewBounded[string, *Image](opts.ImageCacheSize),
		hub:       newHub(),
	}
}

// Store exposes the underlying database, e.g. as durable prefs storage.
func (l *Library) Store() *storage.Store { return l.store }

// ImagesDir is where image handles resolve.
func (l *Library) ImagesDir() string { return l.imagesDir }

// Changes delivers a signal whenever entries are added or a bucket is cleared.
func (l *Library) Changes() (<-chan struct{}, func()) {
	return l.hub.subscribeChanges()
}

func (l *Library) filter(ctx context.Context, f storage.Filter) ([]*storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := l.store.Entries(func(e *storage.Entry) bool {
		if e.BucketID != f.BucketID {
			return false
		}
		if f.Kind != "" && e.Kind != f.Kind {
			return false
		}
		return f.Domain == "" || MatchesDomain(e.SourceURL, f.Domain)
	})
	if err != nil {
		return nil, fmt.Errorf("loading entries: %w", err)
	}
	if f.Search == "" {
		return entries, nil
	}
	matched, err := l.searcher.Filter(f.Search, entries)
	if err != nil {
		return nil, fmt.Errorf("searching %q: %w", f.Search, err)
	}
	return matched, nil
}

func paginate(entries []*storage.Entry, page, pageSize int) []*storage.Entry {
	if pageSize < 1 {
		return entries
	}
	start := (max(1, page) - 1) * pageSize
	if start >= len(entries) {
		return []*storage.Entry{}
	}
	return entries[start:min(len(entries), start+pageSize)]
}

func tally(entries []*storage.Entry) storage.Counts {
	var c storage.Counts
	for _, e := range entries {
		switch e.Kind {
		case storage.KindText:
			c.Text++
		case storage.KindImage:
			c.Image++
		}
	}
	return c
}

// CountEntries counts both kinds under f, whatever f.Kind says.
func (l *Library) CountEntries(ctx context.Context, f storage.Filter) (storage.Counts, error) {
	f.Kind = ""
	entries, err := l.filter(ctx, f)
	if err != nil {
		return storage.Counts{}, err
	}
	return tally(entries), nil
}

// ListEntries returns one page, favorites first and then newest first.
func (l *Library) ListEntries(ctx context.Context, f storage.Filter, page, pageSize int) ([]*storage.Entry, error) {
	entries, err := l.filter(ctx, f)
	if err != nil {
		return nil, err
	}
	return paginate(entries, page, pageSize), nil
}

// favorites are favorite entries plus every entry of a favorite bucket.
func (l *Library) favorites(ctx context.Context) ([]*storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	buckets, err := l.store.GetBuckets()
	if err != nil {
		return nil, fmt.Errorf("loading buckets: %w", err)
	}
	favBuckets := make(map[int64]bool)
	for _, b := range buckets {
		if b.IsFavorite {
			favBuckets[b.ID] = true
		}
	}
	entries, err := l.store.Entries(func(e *storage.Entry) bool {
		return e.IsFavorite || favBuckets[e.BucketID]
	})
	if err != nil {
		return nil, fmt.Errorf("loading favorites: %w", err)
	}
	storage.SortEntries(entries, false)
	return entries, nil
}

func (l *Library) ListFavoriteEntries(ctx context.Context, kind storage.ContentKind, page, pageSize int) ([]*storage.Entry, error) {
	entries, err := l.favorites(ctx)
	if err != nil {
		return nil, err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Kind == kind {
			kept = append(kept, e)
		}
	}
	return paginate(kept, page, pageSize), nil
}

func (l *Library) CountFavorites(ctx context.Context) (storage.Counts, error) {
	entries, err := l.favorites(ctx)
	if err != nil {
		return storage.Counts{}, err
	}
	return tally(entries), nil
}

// ListSourceDomains groups the bucket's source URLs by registrable domain,
// most entries first.
func (l *Library) ListSourceDomains(ctx context.Context, bucketID int64) ([]storage.SourceDomain, error) {
	entries, err := l.filter(ctx, storage.Filter{BucketID: bucketID})
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int)
	for _, e := range entries {
		if e.SourceURL == "" {
			continue
		}
		if d := ExtractDomain(e.SourceURL); d != "" {
			counts[d]++
		}
	}
	out := make([]storage.SourceDomain, 0, len(counts))
	for d, n := range counts {
		out = append(out, storage.SourceDomain{Domain: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Domain < out[j].Domain
	})
	return out, nil
}

func (l *Library) ToggleFavorite(ctx context.Context, entryID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.store.ToggleEntryFavorite(entryID)
	return err
}

func (l *Library) ToggleSensitive(ctx context.Context, entryID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := l.store.ToggleEntrySensitive(entryID)
	return err
}

func (l *Library) DeleteEntry(ctx context.Context, entryID int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed, err := l.store.DeleteEntry(entryID)
	if err != nil {
		return err
	}
	l.afterDelete([]*storage.Entry{removed})
	return nil
}

// DeleteEntriesByDomain removes the bucket's entries from domain or its
// subdomains.
func (l *Library) DeleteEntriesByDomain(ctx context.Context, bucketID int64, domain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	removed, err := l.store.DeleteEntries(func(e *storage.Entry) bool {
		return e.BucketID == bucketID && MatchesDomain(e.SourceURL, domain)
	})
	if err != nil {
		return fmt.Errorf("deleting entries from %s: %w", domain, err)
	}
	l.afterDelete(removed)
	return nil
}

// ClearBucket removes every entry of a bucket and returns how many went.
func (l *Library) ClearBucket(ctx context.Context, bucketID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	removed, err := l.store.DeleteEntries(func(e *storage.Entry) bool { return e.BucketID == bucketID })
	if err != nil {
		return 0, fmt.Errorf("clearing bucket %d: %w", bucketID, err)
	}
	l.afterDelete(removed)
	l.hub.notifyChanged()
	return len(removed), nil
}

// afterDelete drops image files, index documents and emptied buckets.
func (l *Library) afterDelete(removed []*storage.Entry) {
	if len(removed) == 0 {
		return
	}
	ids := make([]int64, 0, len(removed))
	for _, e := range removed {
		ids = append(ids, e.ID)
		if e.Kind != storage.KindImage || e.ImagePath == "" || l.imagesDir == "" {
			continue
		}
		l.images.Remove(e.ImagePath)
		path, err := validation.ResolveWithin(l.imagesDir, e.ImagePath)
		if err != nil {
			debuglog.Warnf("skipping image cleanup for %q: %v", e.ImagePath, err)
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			debuglog.Warnf("removing image %s: %v", path, err)
		}
	}
	if dl, ok := l.searcher.(search.DeleteListener); ok {
		dl.OnEntriesDeleted(ids)
	}
	if _, err := l.store.PruneEmptyBuckets(); err != nil {
		debuglog.Warnf("pruning empty buckets: %v", err)
	}
}

func (l *Library) Buckets(ctx context.Context) ([]*storage.Bucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return l.store.GetBuckets()
}

func (l *Library) ToggleBucketFavorite(ctx context.Context, bucketID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return l.store.ToggleBucketFavorite(bucketID)
}

// AddEntry files e under the bucket named bucketName, creating it if needed.
func (l *Library) AddEntry(ctx context.Context, bucketName, exePath string, e *storage.Entry) error {
	if err := l.addEntry(ctx, bucketName, exePath, e); err != nil {
		return err
	}
	l.hub.notifyChanged()
	return nil
}

func (l *Library) addEntry(ctx context.Context, bucketName, exePath string, e *storage.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := l.store.EnsureBucket(bucketName, exePath)
	if err != nil {
		return err
	}
	e.BucketID = b.ID
	if err := l.store.AddEntry(e); err != nil {
		return fmt.Errorf("adding entry: %w", err)
	}
	if ul, ok := l.searcher.(search.UpdateListener); ok {
		ul.OnEntriesAdded([]*storage.Entry{e})
	}
	return nil
}
