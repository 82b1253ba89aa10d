package browse

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/query"
	"github.com/pders01/cutboard/internal/storage"
)

const DefaultPageSize = 20

// TotalPages is never below 1, even for an empty result.
func TotalPages(count, pageSize int) int {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return max(1, (count+pageSize-1)/pageSize)
}

// View is what the user currently sees. Entries and Counts always come from
// the same response.
type View struct {
	Query      query.Query
	Entries    []*storage.Entry
	Counts     storage.Counts
	TotalPages int
	Sources    []storage.SourceDomain
	// Loaded is false until the first page has been applied.
	Loaded bool
}

// Executor fetches pages for settled queries. Every request takes a
// sequence number from its axis and its response is applied only if that
// number is still the latest; superseded responses are dropped on arrival.
type Executor struct {
	store    Store
	pageSize int

	mu         sync.Mutex
	entriesSeq uint64
	sourcesSeq uint64
	view       View
	onUpdate   func(View)
}

func NewExecutor(store Store, pageSize int) *Executor {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &Executor{
		store:    store,
		pageSize: pageSize,
		view:     View{TotalPages: 1},
	}
}

func (e *Executor) PageSize() int { return e.pageSize }

// OnUpdate registers a callback invoked after every applied change.
func (e *Executor) OnUpdate(fn func(View)) {
	e.mu.Lock()
	e.onUpdate = fn
	e.mu.Unlock()
}

func (e *Executor) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// Fetch loads the page and counts for q concurrently and applies them
// together. On failure the previous view stays in place. A successful
// apply is followed by a source-domain refresh.
func (e *Executor) Fetch(ctx context.Context, q query.Query) error {
	e.mu.Lock()
	e.entriesSeq++
	seq := e.entriesSeq
	e.mu.Unlock()

	entries, counts, err := e.load(ctx, q)
	if err != nil {
		debuglog.WithFields(map[string]any{"axis": "entries", "seq": seq}).
			Warnf("fetch failed, keeping last page: %v", err)
		return fmt.Errorf("fetching page %d: %w", q.Page, err)
	}

	e.mu.Lock()
	if seq != e.entriesSeq {
		latest := e.entriesSeq
		e.mu.Unlock()
		debuglog.Debugf("browse: discarded stale entries response seq=%d latest=%d", seq, latest)
		return nil
	}
	e.view.Query = q
	e.view.Entries = entries
	e.view.Counts = counts
	e.view.TotalPages = TotalPages(counts.For(q.Kind), e.pageSize)
	e.view.Loaded = true
	e.notifyLocked()

	return e.RefreshSources(ctx, q)
}

func (e *Executor) load(ctx context.Context, q query.Query) ([]*storage.Entry, storage.Counts, error) {
	var (
		entries []*storage.Entry
		counts  storage.Counts
	)
	page := max(1, q.Page)

	g, gctx := errgroup.WithContext(ctx)
	if q.Target.Favorites {
		g.Go(func() error {
			var err error
			entries, err = e.store.ListFavoriteEntries(gctx, q.Kind, page, e.pageSize)
			return err
		})
		g.Go(func() error {
			var err error
			counts, err = e.store.CountFavorites(gctx)
			return err
		})
	} else {
		f := q.Filter()
		g.Go(func() error {
			var err error
			entries, err = e.store.ListEntries(gctx, f, page, e.pageSize)
			return err
		})
		g.Go(func() error {
			var err error
			counts, err = e.store.CountEntries(gctx, f)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storage.Counts{}, err
	}
	return entries, counts, nil
}

// RefreshSources reloads the domain list of q's bucket on its own axis.
// The favorites view has no domain list.
func (e *Executor) RefreshSources(ctx context.Context, q query.Query) error {
	e.mu.Lock()
	e.sourcesSeq++
	seq := e.sourcesSeq
	if q.Target.Favorites {
		e.view.Sources = nil
		e.notifyLocked()
		return nil
	}
	e.mu.Unlock()

	sources, err := e.store.ListSourceDomains(ctx, q.Target.BucketID)
	if err != nil {
		debuglog.WithFields(map[string]any{"axis": "sources", "seq": seq}).
			Warnf("source refresh failed: %v", err)
		return fmt.Errorf("listing source domains: %w", err)
	}

	e.mu.Lock()
	if seq != e.sourcesSeq {
		e.mu.Unlock()
		debuglog.Debugf("browse: discarded stale sources response seq=%d", seq)
		return nil
	}
	e.view.Sources = sources
	e.notifyLocked()
	return nil
}

// notifyLocked releases e.mu before running the callback.
func (e *Executor) notifyLocked() {
	v, fn := e.view, e.onUpdate
	e.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}

// Delete removes the entry from the view at once, then asks the store.
// The view is reloaded either way; on failure that reload is the rollback.
func (e *Executor) Delete(ctx context.Context, q query.Query, entryID int64) error {
	e.mu.Lock()
	// in-flight responses predate the removal
	e.entriesSeq++
	kept := make([]*storage.Entry, 0, len(e.view.Entries))
	for _, entry := range e.view.Entries {
		if entry.ID != entryID {
			kept = append(kept, entry)
			continue
		}
		if entry.Kind == storage.KindImage {
			e.view.Counts.Image = max(0, e.view.Counts.Image-1)
		} else {
			e.view.Counts.Text = max(0, e.view.Counts.Text-1)
		}
	}
	e.view.Entries = kept
	e.view.TotalPages = TotalPages(e.view.Counts.For(e.view.Query.Kind), e.pageSize)
	e.notifyLocked()

	if err := e.store.DeleteEntry(ctx, entryID); err != nil {
		debuglog.Warnf("delete entry %d failed, reloading: %v", entryID, err)
		if ferr := e.Fetch(ctx, q); ferr != nil {
			debuglog.Errorf("rollback reload after failed delete: %v", ferr)
		}
		return fmt.Errorf("deleting entry %d: %w", entryID, err)
	}
	return e.Fetch(ctx, q)
}

// ToggleFavorite reloads on success since favorites sort first.
func (e *Executor) ToggleFavorite(ctx context.Context, q query.Query, entryID int64) error {
	if err := e.store.ToggleFavorite(ctx, entryID); err != nil {
		debuglog.Warnf("toggle favorite %d failed: %v", entryID, err)
		return fmt.Errorf("toggling favorite on entry %d: %w", entryID, err)
	}
	return e.Fetch(ctx, q)
}

// ToggleSensitive flips the flag in place on success.
func (e *Executor) ToggleSensitive(ctx context.Context, entryID int64) error {
	if err := e.store.ToggleSensitive(ctx, entryID); err != nil {
		debuglog.Warnf("toggle sensitive %d failed: %v", entryID, err)
		return fmt.Errorf("toggling sensitive on entry %d: %w", entryID, err)
	}

	e.mu.Lock()
	entries := make([]*storage.Entry, len(e.view.Entries))
	for i, entry := range e.view.Entries {
		if entry.ID == entryID {
			flipped := *entry
			flipped.IsSensitive = !flipped.IsSensitive
			entry = &flipped
		}
		entries[i] = entry
	}
	e.view.Entries = entries
	e.notifyLocked()
	return nil
}

// DeleteByDomain removes every entry of q's bucket sourced from domain.
func (e *Executor) DeleteByDomain(ctx context.Context, q query.Query, domain string) error {
	if q.Target.Favorites {
		return fmt.Errorf("deleting by domain needs a bucket")
	}
	if err := e.store.DeleteEntriesByDomain(ctx, q.Target.BucketID, domain); err != nil {
		debuglog.Warnf("delete domain %s in bucket %d failed: %v", domain, q.Target.BucketID, err)
		return fmt.Errorf("deleting entries from %s: %w", domain, err)
	}
	return e.Fetch(ctx, q)
}

// Watch refetches current() whenever the store signals a content change.
// It returns when ctx is done or changes is closed.
func (e *Executor) Watch(ctx context.Context, changes <-chan struct{}, current func() query.Query) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if err := e.Fetch(ctx, current()); err != nil {
				debuglog.Warnf("refetch after content change: %v", err)
			}
		}
	}
}
