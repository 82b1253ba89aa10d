package tui

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/pders01/cutboard/internal/config"
	"github.com/pders01/cutboard/internal/export"
	"github.com/pders01/cutboard/internal/storage"
)

type KeyHandler struct {
	app         *App
	config      *config.Config
	modifierKey string
}

func NewKeyHandler(app *App, cfg *config.Config) *KeyHandler {
	modifierKey := cfg.Keys.Modifier + "+"
	return &KeyHandler{app: app, config: cfg, modifierKey: modifierKey}
}

func (kh *KeyHandler) HandleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	if kh.isInTextInputMode() {
		return kh.handleTextInputMode(msg)
	}

	// the bucket filter owns the keyboard while it is being typed
	if kh.app.view == ViewBuckets && kh.app.bucketList.FilterState() == list.Filtering {
		return kh.delegateToCharm(msg)
	}

	if model, cmd, handled := kh.handleCustomKeys(key); handled {
		return model, cmd
	}

	return kh.delegateToCharm(msg)
}

func (kh *KeyHandler) isInTextInputMode() bool {
	switch kh.app.view {
	case ViewEntries:
		return kh.app.searchInput.Focused()
	case ViewExport:
		return kh.app.destInput.Focused()
	default:
		return false
	}
}

func (kh *KeyHandler) handleTextInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return kh.app, tea.Quit
	case "esc":
		if kh.app.view == ViewEntries {
			kh.app.searchInput.Blur()
			return kh.app, nil
		}
		return kh.navigateBack()
	case "enter":
		return kh.handleTextInputEnter()
	case "tab", "down":
		if kh.app.view == ViewEntries {
			kh.app.searchInput.Blur()
			return kh.app, nil
		}
		return kh.delegateToTextInput(msg)
	default:
		return kh.delegateToTextInput(msg)
	}
}

func (kh *KeyHandler) handleTextInputEnter() (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewEntries:
		kh.app.searchInput.Blur()
		return kh.app, nil

	case ViewExport:
		dest := strings.TrimSpace(kh.app.destInput.Value())
		if dest == "" {
			return kh.app, nil
		}
		return kh.app, kh.app.startExport(dest)

	default:
		return kh.app, nil
	}
}

// delegateToTextInput passes the key to the focused text input. Search edits
// go to the query controller, which debounces them.
func (kh *KeyHandler) delegateToTextInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch kh.app.view {
	case ViewEntries:
		prev := kh.sanitizeSearchInput(kh.app.searchInput.Value())
		newSearchInput, cmd := kh.app.searchInput.Update(msg)
		kh.app.searchInput = newSearchInput

		if next := kh.sanitizeSearchInput(kh.app.searchInput.Value()); next != prev {
			kh.app.controller.SetSearchText(next)
		}
		return kh.app, cmd

	case ViewExport:
		newDestInput, cmd := kh.app.destInput.Update(msg)
		kh.app.destInput = newDestInput
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// handleCustomKeys handles only our custom action keys
func (kh *KeyHandler) handleCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "ctrl+c", "q":
		return kh.app, tea.Quit, true
	case "esc":
		model, cmd := kh.navigateBack()
		return model, cmd, true
	}

	switch kh.app.view {
	case ViewBuckets:
		return kh.handleBucketsCustomKeys(key)
	case ViewEntries:
		return kh.handleEntriesCustomKeys(key)
	case ViewPreview:
		return kh.handlePreviewCustomKeys(key)
	case ViewExport:
		return kh.handleExportCustomKeys(key)
	case ViewDeleteConfirm:
		return kh.handleDeleteConfirmKeys(key)
	default:
		return kh.app, nil, false
	}
}

func (kh *KeyHandler) selectedBucket() (bucketItem, bool) {
	i, ok := kh.app.bucketList.SelectedItem().(bucketItem)
	return i, ok
}

func (kh *KeyHandler) handleBucketsCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	switch key {
	case "enter":
		if i, ok := kh.selectedBucket(); ok {
			kh.app.openTarget(i)
			kh.app.setStatus("", StatusInfo)
		}
		return kh.app, nil, true
	case kh.modifierKey + "f":
		if i, ok := kh.selectedBucket(); ok && !i.favorites {
			return kh.app, kh.app.toggleBucketFavorite(i.bucket), true
		}
	case kh.modifierKey + "x":
		if i, ok := kh.selectedBucket(); ok && !i.favorites {
			kh.app.pending = &pendingDelete{kind: clearBucket, bucket: i.bucket}
			kh.app.previousView = ViewBuckets
			kh.app.view = ViewDeleteConfirm
			return kh.app, nil, true
		}
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleEntriesCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	app := kh.app
	q := app.controller.Query()

	switch key {
	case "/":
		app.searchInput.Focus()
		return app, nil, true
	case "tab":
		kind := storage.KindImage
		if q.Kind == storage.KindImage {
			kind = storage.KindText
		}
		app.controller.SetContentKind(kind)
		return app, nil, true
	case "n":
		app.controller.SetPage(q.Page+1, app.current.TotalPages)
		return app, nil, true
	case "p":
		app.controller.SetPage(q.Page-1, app.current.TotalPages)
		return app, nil, true
	case "]", "[":
		app.controller.SetDomainFilter(kh.cycleDomain(q.Domain, key == "]"))
		return app, nil, true
	case "enter":
		if e := app.selectedEntry(); e != nil {
			return app, app.openPreview(e), true
		}
		return app, nil, true
	case "y":
		if e := app.selectedEntry(); e != nil {
			return app, app.copyEntry(e), true
		}
		return app, nil, true
	case kh.modifierKey + "f":
		if e := app.selectedEntry(); e != nil {
			return app, app.toggleFavorite(e), true
		}
	case kh.modifierKey + "l":
		if e := app.selectedEntry(); e != nil {
			return app, app.toggleSensitive(e), true
		}
	case kh.modifierKey + "x":
		if e := app.selectedEntry(); e != nil {
			kh.confirm(&pendingDelete{kind: deleteEntry, entry: e})
			return app, nil, true
		}
	case kh.modifierKey + "d":
		if q.Domain != "" && !q.Target.Favorites {
			kh.confirm(&pendingDelete{kind: deleteDomain, domain: q.Domain})
			return app, nil, true
		}
	case kh.modifierKey + "e":
		if !q.Target.Favorites {
			return app, kh.enterExport(q.Kind), true
		}
	case kh.modifierKey + "o":
		if e := app.selectedEntry(); e != nil {
			return app, app.openEntry(e), true
		}
	case kh.modifierKey + "r":
		if e := app.selectedEntry(); e != nil && e.Kind == storage.KindImage {
			return app, app.revealImage(e), true
		}
	}
	return app, nil, false
}

// cycleDomain steps through the source chips, with "" as the unfiltered stop.
func (kh *KeyHandler) cycleDomain(current string, forward bool) string {
	stops := []string{""}
	for _, s := range kh.app.current.Sources {
		stops = append(stops, s.Domain)
	}
	at := 0
	for i, d := range stops {
		if d == current {
			at = i
			break
		}
	}
	if forward {
		at = (at + 1) % len(stops)
	} else {
		at = (at - 1 + len(stops)) % len(stops)
	}
	return stops[at]
}

func (kh *KeyHandler) handlePreviewCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	e := kh.app.previewEntry
	if e == nil {
		return kh.app, nil, false
	}
	switch key {
	case "y":
		return kh.app, kh.app.copyEntry(e), true
	case kh.modifierKey + "o":
		return kh.app, kh.app.openEntry(e), true
	case kh.modifierKey + "r":
		if e.Kind == storage.KindImage {
			return kh.app, kh.app.revealImage(e), true
		}
	case kh.modifierKey + "f":
		e.IsFavorite = !e.IsFavorite
		return kh.app, kh.app.toggleFavorite(e), true
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleExportCustomKeys(key string) (tea.Model, tea.Cmd, bool) {
	s := kh.app.exportStatus
	switch key {
	case "enter":
		if s.State != export.StateRunning {
			kh.app.destInput.Focus()
		}
		return kh.app, nil, true
	case kh.modifierKey + "r":
		if s.State == export.StateDone {
			return kh.app, kh.app.revealPath(s.Path), true
		}
	}
	return kh.app, nil, false
}

func (kh *KeyHandler) handleDeleteConfirmKeys(key string) (tea.Model, tea.Cmd, bool) {
	if key != "enter" || kh.app.pending == nil {
		return kh.app, nil, false
	}
	p := kh.app.pending
	kh.app.pending = nil
	kh.app.view = kh.app.previousView

	switch p.kind {
	case deleteEntry:
		kh.app.setStatus(MsgDeleting, StatusInfo)
		return kh.app, kh.app.deleteEntry(p.entry), true
	case deleteDomain:
		kh.app.setStatus(MsgDeleting, StatusInfo)
		return kh.app, kh.app.deleteDomain(p.domain), true
	case clearBucket:
		kh.app.setStatus(MsgClearing, StatusInfo)
		return kh.app, kh.app.clearBucket(p.bucket), true
	}
	return kh.app, nil, true
}

func (kh *KeyHandler) confirm(p *pendingDelete) {
	kh.app.pending = p
	kh.app.previousView = kh.app.view
	kh.app.view = ViewDeleteConfirm
}

// enterExport prefills the destination with the dated default filename.
func (kh *KeyHandler) enterExport(kind storage.ContentKind) tea.Cmd {
	app := kh.app
	name := export.DefaultFilename(kh.config.Export.Product, app.target.name(), kind, time.Now())
	app.destInput.SetValue(filepath.Join(kh.config.Export.Directory, name))
	app.destInput.CursorEnd()
	app.destInput.Focus()
	app.previousView = app.view
	app.view = ViewExport
	return nil
}

// navigateBack implements smart back navigation
func (kh *KeyHandler) navigateBack() (tea.Model, tea.Cmd) {
	app := kh.app
	switch app.view {
	case ViewDeleteConfirm:
		app.pending = nil
		app.view = app.previousView
		return app, nil

	case ViewExport:
		if app.exportStatus.State == export.StateRunning {
			app.runner.Cancel()
			return app, nil
		}
		app.destInput.Blur()
		app.view = app.previousView
		return app, nil

	case ViewPreview:
		app.previewEntry = nil
		app.view = ViewEntries
		return app, nil

	case ViewEntries:
		if q := app.controller.Query(); q.Domain != "" {
			app.controller.SetDomainFilter("")
			return app, nil
		}
		app.view = ViewBuckets
		return app, app.loadBuckets()

	case ViewBuckets:
		if app.bucketList.FilterState() != list.Unfiltered {
			app.bucketList.ResetFilter()
			return app, nil
		}
		return app, tea.Quit

	default:
		return app, tea.Quit
	}
}

// delegateToCharm lets Charm handle all keys we don't intercept
func (kh *KeyHandler) delegateToCharm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch kh.app.view {
	case ViewBuckets:
		kh.app.bucketList, cmd = kh.app.bucketList.Update(msg)
		return kh.app, cmd

	case ViewEntries:
		kh.app.entryList, cmd = kh.app.entryList.Update(msg)
		return kh.app, cmd

	case ViewPreview:
		kh.app.viewport, cmd = kh.app.viewport.Update(msg)
		return kh.app, cmd

	default:
		return kh.app, nil
	}
}

// sanitizeSearchInput sanitizes and limits search input length
func (kh *KeyHandler) sanitizeSearchInput(input string) string {
	input = strings.TrimSpace(input)

	if len(input) > 256 {
		input = input[:256]
	}

	input = strings.ReplaceAll(input, "\n", " ")
	input = strings.ReplaceAll(input, "\r", " ")
	input = strings.ReplaceAll(input, "\t", " ")

	for strings.Contains(input, "  ") {
		input = strings.ReplaceAll(input, "  ", " ")
	}

	return strings.TrimSpace(input)
}

// GetHelpForCurrentView returns only our custom help text (Charm handles the rest)
func (kh *KeyHandler) GetHelpForCurrentView() []string {
	m := kh.modifierKey
	switch kh.app.view {
	case ViewBuckets:
		if len(kh.app.buckets) == 0 {
			return []string{"q: quit"}
		}
		return []string{"enter: open", m + "f: star bucket", m + "x: clear"}

	case ViewEntries:
		if kh.app.searchInput.Focused() {
			return []string{"type to search", "enter/tab: results", "esc: done"}
		}
		q := kh.app.controller.Query()
		help := []string{"/: search", "tab: text/image", "n/p: page", "[/]: source", "y: copy", m + "f: star", m + "l: sensitive", m + "x: delete", m + "o: open"}
		if q.Domain != "" && !q.Target.Favorites {
			help = append(help, m+"d: delete source")
		}
		if !q.Target.Favorites {
			help = append(help, m+"e: export")
		}
		return help

	case ViewPreview:
		help := []string{"y: copy", m + "o: open", m + "f: star"}
		if kh.app.previewEntry != nil && kh.app.previewEntry.Kind == storage.KindImage {
			help = append(help, m+"r: reveal")
		}
		return append(help, "esc: back")

	case ViewExport:
		if kh.app.exportStatus.State == export.StateDone {
			return []string{m + "r: reveal", "esc: back"}
		}
		return []string{"enter: export", "esc: back"}

	case ViewDeleteConfirm:
		return []string{"enter: confirm", "esc: cancel"}

	default:
		return []string{}
	}
}
