package library

import (
	"context"
	"os"

	"github.com/pders01/cutboard/internal/search"
)

// Stats describes local storage usage.
type Stats struct {
	DatabaseBytes int64
	ImageCount    int
	ImageBytes    int64
	Buckets       int
	Entries       int
	// IndexedDocs is -1 when the search engine keeps no index.
	IndexedDocs int
}

func (l *Library) Stats(ctx context.Context) (Stats, error) {
	st := Stats{IndexedDocs: -1}

	if info, err := os.Stat(l.store.Path()); err == nil {
		st.DatabaseBytes = info.Size()
	}

	if l.imagesDir != "" {
		dirEntries, err := os.ReadDir(l.imagesDir)
		if err != nil && !os.IsNotExist(err) {
			return st, err
		}
		for _, de := range dirEntries {
			if de.IsDir() {
				continue
			}
			if info, err := de.Info(); err == nil {
				st.ImageCount++
				st.ImageBytes += info.Size()
			}
		}
	}

	buckets, err := l.Buckets(ctx)
	if err != nil {
		return st, err
	}
	st.Buckets = len(buckets)
	for _, b := range buckets {
		st.Entries += b.EntryCount
	}

	if ds, ok := l.searcher.(search.DebugStatser); ok {
		if n, err := ds.DocCount(); err == nil {
			st.IndexedDocs = n
		}
	}
	return st, nil
}
