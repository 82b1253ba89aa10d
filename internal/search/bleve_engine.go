package search

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	bleveQuery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/pders01/cutboard/internal/storage"
)

// maxHits bounds a single index lookup; candidates beyond it fall back to
// substring matching.
const maxHits = 10000

type bleveEngine struct {
	store *storage.Store
	idx   bleve.Index
}

// NewBleveEngine creates or opens a Bleve index at indexPath and indexes current data.
func NewBleveEngine(store *storage.Store, indexPath string) (Searcher, error) {
	var idx bleve.Index
	var err error

	if err := os.MkdirAll(filepath.Dir(indexPath), 0o755); err != nil {
		return nil, err
	}

	idx, err = bleve.Open(indexPath)
	if err != nil {
		idx, err = bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, err
		}
	}

	be := &bleveEngine{store: store, idx: idx}
	if err := be.reindexAll(); err != nil {
		return nil, err
	}
	return be, nil
}

func buildIndexMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	im.DefaultAnalyzer = standard.Name

	dm := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false

	bucket := bleve.NewNumericFieldMapping()
	bucket.Store = true

	dm.AddFieldMappingsAt("text", text)
	dm.AddFieldMappingsAt("bucket_id", bucket)

	im.DefaultMapping = dm
	return im
}

func (b *bleveEngine) reindexAll() error {
	entries, err := b.store.Entries(func(e *storage.Entry) bool { return e.Kind == storage.KindText })
	if err != nil {
		return err
	}
	batch := b.idx.NewBatch()
	for _, e := range entries {
		_ = batch.Index(docID(e.ID), document(e))
	}
	return b.idx.Batch(batch)
}

func document(e *storage.Entry) map[string]any {
	return map[string]any{
		"text":      e.TextBody,
		"bucket_id": float64(e.BucketID),
	}
}

func (b *bleveEngine) Filter(query string, candidates []*storage.Entry) ([]*storage.Entry, error) {
	if query == "" {
		return candidates, nil
	}
	tokens := strings.Fields(strings.ToLower(query))
	var qs []bleveQuery.Query
	for _, tok := range tokens {
		m := bleve.NewMatchQuery(tok)
		m.SetField("text")
		p := bleve.NewPrefixQuery(tok)
		p.SetField("text")
		qs = append(qs, bleve.NewDisjunctionQuery(m, p))
	}
	if len(qs) == 0 {
		return candidates, nil
	}
	req := bleve.NewSearchRequestOptions(bleve.NewConjunctionQuery(qs...), maxHits, 0, false)
	res, err := b.idx.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make(map[int64]struct{}, len(res.Hits))
	for _, h := range res.Hits {
		if id, convErr := strconv.ParseInt(strings.TrimPrefix(h.ID, "entry:"), 10, 64); convErr == nil {
			hits[id] = struct{}{}
		}
	}

	needle := strings.ToLower(query)
	out := make([]*storage.Entry, 0, len(hits))
	for _, e := range candidates {
		if _, ok := hits[e.ID]; ok {
			out = append(out, e)
			continue
		}
		// phrases spanning token boundaries ("foo-ba") still match as substrings
		if Matches(e, needle) {
			out = append(out, e)
		}
	}
	return out, nil
}

// OnEntriesAdded indexes the provided text entries.
func (b *bleveEngine) OnEntriesAdded(entries []*storage.Entry) {
	batch := b.idx.NewBatch()
	for _, e := range entries {
		if e.Kind != storage.KindText {
			continue
		}
		_ = batch.Index(docID(e.ID), document(e))
	}
	_ = b.idx.Batch(batch)
}

// OnEntriesDeleted removes the given entries from the index.
func (b *bleveEngine) OnEntriesDeleted(ids []int64) {
	batch := b.idx.NewBatch()
	for _, id := range ids {
		batch.Delete(docID(id))
	}
	_ = b.idx.Batch(batch)
}

// DocCount reports total documents in the index.
func (b *bleveEngine) DocCount() (int, error) {
	n, err := b.idx.DocCount()
	return int(n), err
}

// Close releases the index files.
func (b *bleveEngine) Close() error {
	return b.idx.Close()
}

func docID(id int64) string { return "entry:" + strconv.FormatInt(id, 10) }
