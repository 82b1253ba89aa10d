package library

import (
	"archive/zip"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/cutboard/internal/browse"
	"github.com/pders01/cutboard/internal/export"
	"github.com/pders01/cutboard/internal/storage"
)

var (
	_ browse.Store  = (*Library)(nil)
	_ export.Source = (*Library)(nil)
)

type fixture struct {
	lib       *Library
	store     *storage.Store
	imagesDir string
	dir       string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "test.db"), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	imagesDir := filepath.Join(dir, "images")
	require.NoError(t, os.MkdirAll(imagesDir, 0o755))

	lib := New(store, nil, Options{ImagesDir: imagesDir, Product: "CutBoard"})
	return &fixture{lib: lib, store: store, imagesDir: imagesDir, dir: dir}
}

func (f *fixture) add(t *testing.T, app string, e *storage.Entry) *storage.Entry {
	t.Helper()
	require.NoError(t, f.lib.addEntry(context.Background(), app, "", e))
	return e
}

func (f *fixture) writePNG(t *testing.T, name string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	out, err := os.Create(filepath.Join(f.imagesDir, name))
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, img))
	require.NoError(t, out.Close())
}

func text(body, url, created string) *storage.Entry {
	return &storage.Entry{Kind: storage.KindText, TextBody: body, SourceURL: url, CreatedAt: created}
}

func TestListEntriesFiltersAndPages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var bucketID int64
	for i := 0; i < 45; i++ {
		e := f.add(t, "Code.exe", text("line", "", time.Date(2024, 1, 1, 0, 0, i, 0, time.UTC).Format(storage.CreatedAtLayout)))
		bucketID = e.BucketID
	}
	f.add(t, "Code.exe", &storage.Entry{Kind: storage.KindImage, ImagePath: "a.png"})

	flt := storage.Filter{BucketID: bucketID, Kind: storage.KindText}
	page1, err := f.lib.ListEntries(ctx, flt, 1, 20)
	require.NoError(t, err)
	assert.Len(t, page1, 20)
	assert.Equal(t, "2024-01-01 00:00:44", page1[0].CreatedAt)

	page3, err := f.lib.ListEntries(ctx, flt, 3, 20)
	require.NoError(t, err)
	assert.Len(t, page3, 5)

	beyond, err := f.lib.ListEntries(ctx, flt, 9, 20)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	counts, err := f.lib.CountEntries(ctx, flt)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Text: 45, Image: 1}, counts)
}

func TestSearchAndDomainFilter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.add(t, "Browser", text("golang generics", "https://go.dev/blog", ""))
	f.add(t, "Browser", text("rust traits", "https://doc.rust-lang.org/book", ""))
	f.add(t, "Browser", text("go modules", "https://pkg.go.dev/x", ""))
	f.add(t, "Browser", text("unrelated", "", ""))

	got, err := f.lib.ListEntries(ctx, storage.Filter{BucketID: a.BucketID, Kind: storage.KindText, Search: "go"}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = f.lib.ListEntries(ctx, storage.Filter{BucketID: a.BucketID, Kind: storage.KindText, Domain: "go.dev"}, 1, 20)
	require.NoError(t, err)
	assert.Len(t, got, 2, "subdomains match the domain filter")

	counts, err := f.lib.CountEntries(ctx, storage.Filter{BucketID: a.BucketID, Search: "modules", Domain: "go.dev"})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Text)
}

func TestListSourceDomains(t *testing.T) {
	f := newFixture(t)
	e := f.add(t, "Browser", text("1", "https://github.com/a", ""))
	f.add(t, "Browser", text("2", "https://gist.github.com/b", ""))
	f.add(t, "Browser", text("3", "https://www.bbc.co.uk/news", ""))
	f.add(t, "Browser", text("4", "", ""))
	f.add(t, "Other", text("5", "https://github.com/c", ""))

	got, err := f.lib.ListSourceDomains(context.Background(), e.BucketID)
	require.NoError(t, err)
	assert.Equal(t, []storage.SourceDomain{
		{Domain: "github.com", Count: 2},
		{Domain: "bbc.co.uk", Count: 1},
	}, got)
}

func TestFavoritesIncludeFavoriteBuckets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	fav := f.add(t, "A", text("starred", "", "2024-01-01 00:00:01"))
	require.NoError(t, f.lib.ToggleFavorite(ctx, fav.ID))
	f.add(t, "A", text("plain", "", "2024-01-01 00:00:02"))
	inFavBucket := f.add(t, "B", text("from fav bucket", "", "2024-01-01 00:00:03"))
	f.add(t, "B", &storage.Entry{Kind: storage.KindImage, ImagePath: "b.png", CreatedAt: "2024-01-01 00:00:04"})
	_, err := f.lib.ToggleBucketFavorite(ctx, inFavBucket.BucketID)
	require.NoError(t, err)

	got, err := f.lib.ListFavoriteEntries(ctx, storage.KindText, 1, 20)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, inFavBucket.ID, got[0].ID, "newest first")
	assert.Equal(t, fav.ID, got[1].ID)

	counts, err := f.lib.CountFavorites(ctx)
	require.NoError(t, err)
	assert.Equal(t, storage.Counts{Text: 2, Image: 1}, counts)
}

func TestDeleteRemovesImageAndPrunesBucket(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.writePNG(t, "shot.png", 2, 2)
	e := f.add(t, "Snip", &storage.Entry{Kind: storage.KindImage, ImagePath: "shot.png"})

	_, err := f.lib.LoadImage("shot.png")
	require.NoError(t, err)

	require.NoError(t, f.lib.DeleteEntry(ctx, e.ID))
	_, err = os.Stat(filepath.Join(f.imagesDir, "shot.png"))
	assert.True(t, os.IsNotExist(err))
	assert.False(t, f.lib.images.Has("shot.png"))

	buckets, err := f.lib.Buckets(ctx)
	require.NoError(t, err)
	assert.Empty(t, buckets)

	assert.ErrorIs(t, f.lib.DeleteEntry(ctx, e.ID), storage.ErrNotFound)
}

func TestDeleteEntriesByDomainAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.add(t, "Browser", text("1", "https://github.com/a", ""))
	f.add(t, "Browser", text("2", "https://api.github.com/b", ""))
	f.add(t, "Browser", text("3", "https://go.dev", ""))

	require.NoError(t, f.lib.DeleteEntriesByDomain(ctx, e.BucketID, "github.com"))
	counts, err := f.lib.CountEntries(ctx, storage.Filter{BucketID: e.BucketID})
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Text)

	changes, release := f.lib.Changes()
	defer release()

	n, err := f.lib.ClearBucket(ctx, e.BucketID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	select {
	case <-changes:
	default:
		t.Fatal("clearing a bucket should signal a content change")
	}
}

func TestLoadImage(t *testing.T) {
	f := newFixture(t)
	f.writePNG(t, "pic.png", 3, 5)

	img, err := f.lib.LoadImage("pic.png")
	require.NoError(t, err)
	assert.Equal(t, 3, img.Width)
	assert.Equal(t, 5, img.Height)
	assert.Equal(t, "png", img.Format)

	again, err := f.lib.LoadImage("pic.png")
	require.NoError(t, err)
	assert.Same(t, img, again)

	_, err = f.lib.LoadImage("../escape.png")
	assert.Error(t, err)

	batch := f.lib.LoadImages([]string{"pic.png", "missing.png", "../x"})
	assert.Len(t, batch, 1)
	assert.Contains(t, batch, "pic.png")
}

func TestExportMarkdown(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	e := f.add(t, "Code.exe", text("first", "", "2024-01-01 10:00:00"))
	f.add(t, "Code.exe", &storage.Entry{
		Kind:      storage.KindText,
		TextBody:  "plain fallback",
		HTMLBody:  `<p>Hello <strong>bold</strong></p><script>alert(1)</script>`,
		CreatedAt: "2024-01-02 10:00:00",
	})

	progress, release := f.lib.SubscribeProgress("job-1")
	defer release()

	dest := filepath.Join(f.dir, "out.md")
	path, err := f.lib.Export(ctx, "job-1", export.Request{BucketID: e.BucketID, BucketName: "Code.exe", Kind: storage.KindText, Destination: dest})
	require.NoError(t, err)
	assert.Equal(t, dest, path)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	doc := string(data)
	assert.True(t, strings.HasPrefix(doc, "# CutBoard - Code.exe text entries\n\n"))
	assert.Contains(t, doc, "### 2024-01-01 10:00:00\n\nfirst\n\n")
	assert.Contains(t, doc, "**bold**")
	assert.NotContains(t, doc, "alert")
	assert.Less(t, strings.Index(doc, "2024-01-02"), strings.Index(doc, "2024-01-01"), "newest first")

	var seen []int
	for len(progress) > 0 {
		seen = append(seen, <-progress)
	}
	assert.Equal(t, []int{50, 100}, seen)
}

func TestExportZip(t *testing.T) {
	f := newFixture(t)
	f.writePNG(t, "one.png", 1, 1)
	e := f.add(t, "Snip", &storage.Entry{Kind: storage.KindImage, ImagePath: "one.png"})
	f.add(t, "Snip", &storage.Entry{Kind: storage.KindImage, ImagePath: "gone.png"})

	dest := filepath.Join(f.dir, "out.zip")
	_, err := f.lib.Export(context.Background(), "job-2", export.Request{BucketID: e.BucketID, Kind: storage.KindImage, Destination: dest})
	require.NoError(t, err)

	zr, err := zip.OpenReader(dest)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	assert.Equal(t, "one.png", zr.File[0].Name)
}

func TestExportErrors(t *testing.T) {
	f := newFixture(t)
	e := f.add(t, "Code.exe", text("only text", "", ""))

	_, err := f.lib.Export(context.Background(), "j", export.Request{BucketID: e.BucketID, Kind: storage.KindImage, Destination: filepath.Join(f.dir, "x.zip")})
	assert.True(t, errors.Is(err, ErrNothingToExport))

	_, err = f.lib.Export(context.Background(), "j", export.Request{BucketID: e.BucketID, Kind: storage.KindText, Destination: filepath.Join(f.dir, "missing", "x.md")})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dest := filepath.Join(f.dir, "cancelled.md")
	_, err = f.lib.Export(ctx, "j", export.Request{BucketID: e.BucketID, Kind: storage.KindText, Destination: dest})
	assert.ErrorIs(t, err, context.Canceled)
	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportThroughRunner(t *testing.T) {
	f := newFixture(t)
	e := f.add(t, "Code.exe", text("via runner", "", ""))
	r := export.NewRunner(f.lib)

	dest := filepath.Join(f.dir, "runner.md")
	jobID, err := r.Start(context.Background(), export.Request{BucketID: e.BucketID, BucketName: "Code.exe", Kind: storage.KindText, Destination: dest})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))

	st := r.Status()
	assert.Equal(t, export.StateDone, st.State)
	assert.Equal(t, dest, st.Path)
	assert.Zero(t, f.lib.hub.progressListeners(jobID), "subscription released on completion")
}

func TestImport(t *testing.T) {
	f := newFixture(t)
	input := `[
		{"app": "Code.exe", "content_type": "text", "text_content": "hello", "source_url": "https://go.dev"},
		{"app": "Code.exe", "content_type": "image", "image_path": "a.png"},
		{"app": "", "content_type": "text", "text_content": "no app"},
		{"app": "X", "content_type": "video", "text_content": "bad kind"},
		{"app": "X", "content_type": "text"}
	]`

	changes, release := f.lib.Changes()
	defer release()

	n, err := f.lib.Import(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, changes, 1)

	buckets, err := f.lib.Buckets(context.Background())
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	assert.Equal(t, 2, buckets[0].EntryCount)

	_, err = f.lib.Import(context.Background(), strings.NewReader("{broken"))
	assert.Error(t, err)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.writePNG(t, "s.png", 1, 1)
	f.add(t, "A", text("x", "", ""))
	f.add(t, "B", &storage.Entry{Kind: storage.KindImage, ImagePath: "s.png"})

	st, err := f.lib.Stats(context.Background())
	require.NoError(t, err)
	assert.Positive(t, st.DatabaseBytes)
	assert.Equal(t, 1, st.ImageCount)
	assert.Positive(t, st.ImageBytes)
	assert.Equal(t, 2, st.Buckets)
	assert.Equal(t, 2, st.Entries)
	assert.Equal(t, -1, st.IndexedDocs)
}
