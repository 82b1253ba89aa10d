package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/export"
	"github.com/pders01/cutboard/internal/library"
	"github.com/pders01/cutboard/internal/storage"
	"github.com/pders01/cutboard/internal/validation"
)

func (a *App) loadBuckets() tea.Cmd {
	return func() tea.Msg {
		buckets, err := a.lib.Buckets(a.ctx)
		if err != nil {
			return errorMsg{err: wrapErr("loading buckets", err)}
		}
		return bucketsLoadedMsg{buckets: buckets}
	}
}

// waitForRefresh blocks until the executor or the export runner changed.
func (a *App) waitForRefresh() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-a.changed:
			return refreshMsg{}
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) waitForStoreChange(changes <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		select {
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			return storeChangedMsg{changes: changes}
		case <-a.ctx.Done():
			return nil
		}
	}
}

func (a *App) resolveIcon(domain string) tea.Cmd {
	return func() tea.Msg {
		result, err := a.favicons.Resolve(a.ctx, domain)
		if err != nil {
			debuglog.Debugf("favicon %s: %v", domain, err)
		}
		return faviconMsg{domain: domain, result: result}
	}
}

// loadPageImages reads the dimensions of the page's images that have not
// been tried yet.
func (a *App) loadPageImages() tea.Cmd {
	var handles []string
	for _, e := range a.current.Entries {
		if e.Kind != storage.KindImage || e.ImagePath == "" || a.images.Has(e.ImagePath) {
			continue
		}
		handles = append(handles, e.ImagePath)
	}
	if len(handles) == 0 {
		return nil
	}
	return func() tea.Msg {
		return imagesLoadedMsg{handles: handles, images: a.lib.LoadImages(handles)}
	}
}

// openPreview shows a private copy of e so star toggles can update it in place.
func (a *App) openPreview(e *storage.Entry) tea.Cmd {
	entry := *e
	a.previewEntry = &entry
	a.view = ViewPreview
	a.viewport.SetContent(renderMuted("Loading…"))

	r, err := a.getRenderer()
	if err != nil {
		return func() tea.Msg { return errorMsg{err: wrapErr("initializing renderer", err)} }
	}

	return func() tea.Msg {
		var content strings.Builder
		fmt.Fprintf(&content, "# %s\n\n", entry.CreatedAt)
		if entry.SourceURL != "" {
			fmt.Fprintf(&content, "*Source: %s*\n\n", entry.SourceURL)
		}
		content.WriteString("---\n\n")

		switch {
		case entry.Kind == storage.KindImage:
			img, err := a.lib.LoadImage(entry.ImagePath)
			if err != nil {
				fmt.Fprintf(&content, "Image unavailable: %v\n", err)
				break
			}
			fmt.Fprintf(&content, "**%s** %d×%d, %d bytes\n\n`%s`\n", strings.ToUpper(img.Format), img.Width, img.Height, len(img.Data), entry.ImagePath)
		case entry.IsSensitive:
			content.WriteString("*Sensitive entry. Unmark it to show the text.*\n")
		default:
			content.WriteString(library.MarkdownBody(&entry))
		}

		rendered, err := r.Render(content.String())
		if err != nil {
			return previewRenderedMsg{content: fmt.Sprintf("Failed to render entry: %v\n\nPress Escape to go back.", err)}
		}
		return previewRenderedMsg{content: rendered}
	}
}

func (a *App) toggleFavorite(e *storage.Entry) tea.Cmd {
	q := a.controller.Query()
	return func() tea.Msg {
		if err := a.executor.ToggleFavorite(a.ctx, q, e.ID); err != nil {
			return errorMsg{err: err}
		}
		return nil
	}
}

func (a *App) toggleSensitive(e *storage.Entry) tea.Cmd {
	return func() tea.Msg {
		if err := a.executor.ToggleSensitive(a.ctx, e.ID); err != nil {
			return errorMsg{err: err}
		}
		return nil
	}
}

// deleteEntry removes the row at once; a failed delete is rolled back by
// the executor's reload.
func (a *App) deleteEntry(e *storage.Entry) tea.Cmd {
	q := a.controller.Query()
	return func() tea.Msg {
		if err := a.executor.Delete(a.ctx, q, e.ID); err != nil {
			return errorMsg{err: err}
		}
		return statusMsg{text: MsgEntryDeleted, kind: StatusSuccess}
	}
}

func (a *App) deleteDomain(domain string) tea.Cmd {
	// the chip is gone once its entries are; the reload must use the
	// cleared query or it would outrank the controller's own fetch
	a.controller.SetDomainFilter("")
	q := a.controller.Query()
	return func() tea.Msg {
		if err := a.executor.DeleteByDomain(a.ctx, q, domain); err != nil {
			return errorMsg{err: err}
		}
		return statusMsg{text: MsgDomainDeleted(domain), kind: StatusSuccess}
	}
}

func (a *App) clearBucket(b *storage.Bucket) tea.Cmd {
	return func() tea.Msg {
		var removed int
		err := retryOperation(func() error {
			n, err := a.lib.ClearBucket(a.ctx, b.ID)
			removed = n
			return err
		})
		if err != nil {
			return errorMsg{err: err}
		}
		return bucketClearedMsg{name: b.Name, removed: removed}
	}
}

func (a *App) toggleBucketFavorite(b *storage.Bucket) tea.Cmd {
	return func() tea.Msg {
		err := retryOperation(func() error {
			_, err := a.lib.ToggleBucketFavorite(a.ctx, b.ID)
			return err
		})
		if err != nil {
			return errorMsg{err: err}
		}
		return a.loadBuckets()()
	}
}

func (a *App) startExport(dest string) tea.Cmd {
	q := a.controller.Query()
	_, err := a.runner.Start(a.ctx, export.Request{
		BucketID:    q.Target.BucketID,
		BucketName:  a.target.name(),
		Kind:        q.Kind,
		Destination: dest,
	})
	if err != nil {
		a.err = wrapErr("export", err)
		return nil
	}
	a.destInput.Blur()
	a.setStatus(MsgExporting, StatusInfo)
	return a.progress.SetPercent(0)
}

// copyEntry puts a text entry back on the clipboard. Images go as their
// file path, since the clipboard library only carries text.
func (a *App) copyEntry(e *storage.Entry) tea.Cmd {
	return func() tea.Msg {
		text, msg := e.TextBody, MsgCopied
		if e.Kind == storage.KindImage {
			path, err := validation.ResolveWithin(a.lib.ImagesDir(), e.ImagePath)
			if err != nil {
				return errorMsg{err: err}
			}
			text, msg = path, MsgCopiedPath
		}
		if text == "" {
			return statusMsg{text: MsgNothingToCopy, kind: StatusWarn}
		}
		if err := a.copyText(text); err != nil {
			return errorMsg{err: wrapErr("copying to clipboard", err)}
		}
		return statusMsg{text: msg, kind: StatusSuccess}
	}
}

// openEntry opens an image with the configured viewer, or a text entry's
// source page.
func (a *App) openEntry(e *storage.Entry) tea.Cmd {
	return func() tea.Msg {
		target := e.SourceURL
		if e.Kind == storage.KindImage {
			path, err := validation.ResolveWithin(a.lib.ImagesDir(), e.ImagePath)
			if err != nil {
				return errorMsg{err: err}
			}
			target = path
		}
		if target == "" {
			return statusMsg{text: MsgNothingToOpen, kind: StatusWarn}
		}
		if err := a.launcher.Open(target); err != nil {
			return errorMsg{err: fmt.Errorf("failed to open %s: %w", target, err)}
		}
		return nil
	}
}

func (a *App) revealImage(e *storage.Entry) tea.Cmd {
	path, err := validation.ResolveWithin(a.lib.ImagesDir(), e.ImagePath)
	if err != nil {
		return func() tea.Msg { return errorMsg{err: err} }
	}
	return a.revealPath(path)
}

func (a *App) revealPath(path string) tea.Cmd {
	return func() tea.Msg {
		if err := a.launcher.Reveal(path); err != nil {
			return errorMsg{err: fmt.Errorf("failed to reveal %s: %w", path, err)}
		}
		return nil
	}
}

// retryOperation retries a database operation up to 3 times with exponential backoff
func retryOperation(operation func() error) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if err := operation(); err != nil {
			lastErr = err
			if i < maxRetries-1 {
				time.Sleep(baseDelay * time.Duration(1<<i))
			}
			continue
		}
		return nil
	}
	return lastErr
}

// wrapErr formats an error with a contextual prefix.
func wrapErr(context string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}
