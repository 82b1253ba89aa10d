package tui

import (
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/cutboard/internal/config"
	"github.com/pders01/cutboard/internal/export"
	"github.com/pders01/cutboard/internal/library"
	"github.com/pders01/cutboard/internal/storage"
)

func newTestApp(t *testing.T) (*App, *library.Library) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.TestConfig(dir)

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, os.MkdirAll(cfg.Database.ImagesDir, 0o755))

	lib := library.New(store, nil, library.Options{ImagesDir: cfg.Database.ImagesDir, Product: cfg.Export.Product})
	app := NewApp(lib, nil, cfg)
	app.Init()
	app.resize(120, 40)
	t.Cleanup(app.Close)
	return app, lib
}

func addText(t *testing.T, lib *library.Library, bucket, body, url, created string) {
	t.Helper()
	e := &storage.Entry{Kind: storage.KindText, TextBody: body, SourceURL: url, CreatedAt: created}
	require.NoError(t, lib.AddEntry(context.Background(), bucket, "/usr/bin/"+strings.ToLower(bucket), e))
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func press(app *App, msg tea.Msg) tea.Cmd {
	_, cmd := app.Update(msg)
	return cmd
}

// openFirstBucket loads buckets and enters the first real one.
func openFirstBucket(t *testing.T, app *App, want int) {
	t.Helper()
	press(app, app.loadBuckets()())
	require.NotEmpty(t, app.buckets)
	app.bucketList.Select(1)
	press(app, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewEntries, app.view)
	waitForEntries(t, app, want)
}

func waitForEntries(t *testing.T, app *App, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		v := app.executor.View()
		return v.Loaded && len(v.Entries) == want
	}, 2*time.Second, 5*time.Millisecond)
	press(app, refreshMsg{})
}

func seed(t *testing.T, lib *library.Library) {
	t.Helper()
	addText(t, lib, "Terminal", "go test ./...", "", "2025-01-01 10:00:00")
	addText(t, lib, "Terminal", "foo bar", "https://docs.example.com/a", "2025-01-01 11:00:00")
	addText(t, lib, "Terminal", "food truck", "https://news.example.org/b", "2025-01-01 12:00:00")
}

func TestViewStateTransitions(t *testing.T) {
	tests := []struct {
		name         string
		msgs         []tea.Msg
		expectedView View
	}{
		{
			name:         "entries to buckets on Escape",
			msgs:         []tea.Msg{tea.KeyMsg{Type: tea.KeyEsc}},
			expectedView: ViewBuckets,
		},
		{
			name:         "entries to preview on Enter",
			msgs:         []tea.Msg{tea.KeyMsg{Type: tea.KeyEnter}},
			expectedView: ViewPreview,
		},
		{
			name:         "preview back to entries on Escape",
			msgs:         []tea.Msg{tea.KeyMsg{Type: tea.KeyEnter}, tea.KeyMsg{Type: tea.KeyEsc}},
			expectedView: ViewEntries,
		},
		{
			name:         "entries to delete confirm on ctrl+x",
			msgs:         []tea.Msg{tea.KeyMsg{Type: tea.KeyCtrlX}},
			expectedView: ViewDeleteConfirm,
		},
		{
			name:         "delete confirm back to entries on Escape",
			msgs:         []tea.Msg{tea.KeyMsg{Type: tea.KeyCtrlX}, tea.KeyMsg{Type: tea.KeyEsc}},
			expectedView: ViewEntries,
		},
		{
			name:         "entries to export on ctrl+e",
			msgs:         []tea.Msg{tea.KeyMsg{Type: tea.KeyCtrlE}},
			expectedView: ViewExport,
		},
		{
			name:         "export back to entries on Escape",
			msgs:         []tea.Msg{tea.KeyMsg{Type: tea.KeyCtrlE}, tea.KeyMsg{Type: tea.KeyEsc}},
			expectedView: ViewEntries,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, lib := newTestApp(t)
			seed(t, lib)
			openFirstBucket(t, app, 3)

			for _, msg := range tt.msgs {
				press(app, msg)
			}
			assert.Equal(t, tt.expectedView, app.view)
		})
	}
}

func TestBucketsViewListsFavoritesFirst(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)

	press(app, app.loadBuckets()())

	items := app.bucketList.Items()
	require.Len(t, items, 2)
	assert.True(t, items[0].(bucketItem).favorites)
	assert.Equal(t, "Terminal", items[1].(bucketItem).name())
	assert.Contains(t, app.View(), "Terminal")
}

func TestEmptyLibraryShowsWelcome(t *testing.T) {
	app, _ := newTestApp(t)
	press(app, app.loadBuckets()())
	assert.Contains(t, app.View(), "cutboard import")
}

func TestSearchTextSettlesIntoQuery(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	openFirstBucket(t, app, 3)

	press(app, keyRune('/'))
	require.True(t, app.searchInput.Focused())
	for _, r := range "foo" {
		press(app, keyRune(r))
	}
	assert.Equal(t, "foo", app.controller.Query().RawSearch)

	require.Eventually(t, func() bool {
		return app.controller.Query().Search == "foo"
	}, 2*time.Second, 5*time.Millisecond)
	waitForEntries(t, app, 2)

	assert.Len(t, app.entryList.Items(), 2)
	assert.Equal(t, 1, app.controller.Query().Page)

	press(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, app.searchInput.Focused())
	assert.Equal(t, ViewEntries, app.view)
}

func TestKindToggleAndPageClamp(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	openFirstBucket(t, app, 3)

	press(app, keyRune('n'))
	assert.Equal(t, 1, app.controller.Query().Page, "single page clamps")

	press(app, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, storage.KindImage, app.controller.Query().Kind)
	waitForEntries(t, app, 0)
	assert.Contains(t, app.View(), MsgNoEntries)

	press(app, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, storage.KindText, app.controller.Query().Kind)
}

func TestDomainChipsCycleAndClear(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	openFirstBucket(t, app, 3)

	require.Eventually(t, func() bool {
		return len(app.executor.View().Sources) == 2
	}, 2*time.Second, 5*time.Millisecond)
	press(app, refreshMsg{})

	press(app, keyRune(']'))
	first := app.controller.Query().Domain
	assert.NotEmpty(t, first)
	waitForEntries(t, app, 1)
	assert.Contains(t, app.View(), first)

	// Escape clears the filter before leaving the bucket
	press(app, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, "", app.controller.Query().Domain)
	assert.Equal(t, ViewEntries, app.view)
}

func TestDeleteDomainShowsRemainingEntries(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	openFirstBucket(t, app, 3)

	app.controller.SetDomainFilter("example.com")
	waitForEntries(t, app, 1)
	// let the seed's change signals drain so only the delete reloads
	time.Sleep(100 * time.Millisecond)

	msg := app.deleteDomain("example.com")()
	assert.Equal(t, statusMsg{text: MsgDomainDeleted("example.com"), kind: StatusSuccess}, msg)

	assert.Equal(t, "", app.controller.Query().Domain)
	v := app.executor.View()
	assert.Equal(t, "", v.Query.Domain, "view must follow the cleared filter")
	assert.Len(t, v.Entries, 2)
	for _, e := range v.Entries {
		assert.NotContains(t, e.SourceURL, "example.com")
	}
}

func TestCopyEntry(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	openFirstBucket(t, app, 3)

	var copied []string
	app.copyText = func(s string) error {
		copied = append(copied, s)
		return nil
	}

	selected := app.selectedEntry()
	require.NotNil(t, selected)
	cmd := press(app, keyRune('y'))
	require.NotNil(t, cmd)
	assert.Equal(t, statusMsg{text: MsgCopied, kind: StatusSuccess}, cmd())
	assert.Equal(t, []string{selected.TextBody}, copied)

	press(app, tea.KeyMsg{Type: tea.KeyEnter})
	require.Equal(t, ViewPreview, app.view)
	cmd = press(app, keyRune('y'))
	require.NotNil(t, cmd)
	cmd()
	assert.Len(t, copied, 2)

	app.copyText = func(string) error { return errors.New("no clipboard") }
	msg := app.copyEntry(selected)()
	require.IsType(t, errorMsg{}, msg)
	assert.ErrorContains(t, msg.(errorMsg).err, "copying to clipboard")
}

func TestImagePageShowsDimensions(t *testing.T) {
	app, lib := newTestApp(t)

	img := image.NewRGBA(image.Rect(0, 0, 3, 4))
	out, err := os.Create(filepath.Join(lib.ImagesDir(), "pic.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(out, img))
	require.NoError(t, out.Close())

	e := &storage.Entry{Kind: storage.KindImage, ImagePath: "pic.png", CreatedAt: "2025-01-01 10:00:00"}
	require.NoError(t, lib.AddEntry(context.Background(), "Screenshot", "/usr/bin/screenshot", e))
	openFirstBucket(t, app, 0)

	press(app, tea.KeyMsg{Type: tea.KeyTab})
	waitForEntries(t, app, 1)
	assert.NotContains(t, app.View(), "PNG 3×4")

	cmd := app.loadPageImages()
	require.NotNil(t, cmd)
	press(app, cmd())
	assert.Contains(t, app.View(), "PNG 3×4")
	assert.Nil(t, app.loadPageImages(), "loaded handles are not requested again")
}

func TestDeleteEntryAfterConfirm(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	openFirstBucket(t, app, 3)

	press(app, tea.KeyMsg{Type: tea.KeyCtrlX})
	require.Equal(t, ViewDeleteConfirm, app.view)
	assert.Contains(t, app.View(), "Delete Entry")

	cmd := press(app, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, ViewEntries, app.view)

	msg := cmd()
	assert.Equal(t, statusMsg{text: MsgEntryDeleted, kind: StatusSuccess}, msg)
	waitForEntries(t, app, 2)

	counts, err := lib.CountEntries(context.Background(), storage.Filter{BucketID: app.controller.Query().Target.BucketID})
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Text)
}

func TestToggleFavoriteReloads(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	openFirstBucket(t, app, 3)

	app.entryList.Select(2)
	target := app.selectedEntry()
	require.NotNil(t, target)

	cmd := press(app, tea.KeyMsg{Type: tea.KeyCtrlF})
	require.NotNil(t, cmd)
	assert.Nil(t, cmd())
	press(app, refreshMsg{})

	first := app.current.Entries[0]
	assert.Equal(t, target.ID, first.ID, "favorites sort first")
	assert.True(t, first.IsFavorite)
}

func TestExportFromEntries(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	openFirstBucket(t, app, 3)

	press(app, tea.KeyMsg{Type: tea.KeyCtrlE})
	dest := app.destInput.Value()
	assert.True(t, strings.HasSuffix(dest, ".md"), dest)
	assert.Contains(t, filepath.Base(dest), "cutboard_Terminal_")

	press(app, tea.KeyMsg{Type: tea.KeyEnter})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, app.runner.Wait(ctx))

	press(app, refreshMsg{})
	assert.Equal(t, export.StateDone, app.exportStatus.State)
	assert.Equal(t, MsgExported(dest), app.status)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Contains(t, string(data), "food truck")
}

func TestFavoritesViewDisablesExport(t *testing.T) {
	app, lib := newTestApp(t)
	seed(t, lib)
	press(app, app.loadBuckets()())

	app.bucketList.Select(0)
	press(app, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, app.controller.Query().Target.Favorites)

	press(app, tea.KeyMsg{Type: tea.KeyCtrlE})
	assert.Equal(t, ViewEntries, app.view)
}

func TestErrorShowsInStatusBar(t *testing.T) {
	app, _ := newTestApp(t)
	press(app, errorMsg{err: wrapErr("loading buckets", os.ErrPermission)})
	assert.Contains(t, app.View(), "✗ loading buckets")

	press(app, statusMsg{text: "ok", kind: StatusSuccess})
	assert.Nil(t, app.err)
}

func TestRetryOperation(t *testing.T) {
	calls := 0
	err := retryOperation(func() error {
		calls++
		if calls < 2 {
			return os.ErrDeadlineExceeded
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestTextUtil(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"end fits", truncateEnd("abc", 5), "abc"},
		{"end cut", truncateEnd("abcdef", 4), "abc…"},
		{"end zero", truncateEnd("abc", 0), ""},
		{"middle cut", truncateMiddle("abcdefgh", 5), "ab…gh"},
		{"single line", singleLine("a\n\n  b\tc", 10), "a b c"},
		{"single line cut", singleLine("hello world", 6), "hello…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}
