package library

import (
	"archive/zip"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/microcosm-cc/bluemonday"

	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/export"
	"github.com/pders01/cutboard/internal/storage"
	"github.com/pders01/cutboard/internal/validation"
)

// ErrNothingToExport means the bucket holds no entries of the requested kind.
var ErrNothingToExport = errors.New("no entries to export")

var htmlPolicy = bluemonday.UGCPolicy()

// SubscribeProgress implements export.Source.
func (l *Library) SubscribeProgress(jobID string) (<-chan int, func()) {
	return l.hub.subscribeProgress(jobID)
}

// Export writes every entry of req.Kind in the bucket to req.Destination,
// as Markdown for text and a ZIP of image files for images. The file only
// appears at the destination once complete.
func (l *Library) Export(ctx context.Context, jobID string, req export.Request) (string, error) {
	dest, err := validation.ValidateDestination(req.Destination)
	if err != nil {
		return "", fmt.Errorf("export destination: %w", err)
	}

	entries, err := l.filter(ctx, storage.Filter{BucketID: req.BucketID, Kind: req.Kind})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", ErrNothingToExport
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".cutboard-export-*")
	if err != nil {
		return "", fmt.Errorf("creating export file: %w", err)
	}
	defer os.Remove(tmp.Name())

	report := func(i int) {
		l.hub.publishProgress(jobID, (i+1)*100/len(entries))
	}

	switch req.Kind {
	case storage.KindImage:
		err = l.writeZip(ctx, tmp, entries, report)
	case storage.KindText:
		err = l.writeMarkdown(ctx, tmp, req.BucketName, entries, report)
	default:
		err = fmt.Errorf("unknown content kind %q", req.Kind)
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", fmt.Errorf("moving export into place: %w", err)
	}
	debuglog.WithFields(map[string]any{"job": jobID, "entries": len(entries)}).Infof("exported to %s", dest)
	return dest, nil
}

func (l *Library) writeMarkdown(ctx context.Context, w io.Writer, bucketName string, entries []*storage.Entry, report func(int)) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s - %s text entries\n\n", l.product, bucketName)

	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if body := MarkdownBody(e); body != "" {
			fmt.Fprintf(bw, "### %s\n\n%s\n\n", e.CreatedAt, body)
		}
		report(i)
	}
	return bw.Flush()
}

// MarkdownBody renders an entry's rich HTML as Markdown, falling back to
// the plain text.
func MarkdownBody(e *storage.Entry) string {
	if strings.TrimSpace(e.HTMLBody) != "" {
		md, err := htmltomarkdown.ConvertString(htmlPolicy.Sanitize(e.HTMLBody))
		if err == nil && strings.TrimSpace(md) != "" {
			return strings.TrimSpace(md)
		}
		if err != nil {
			debuglog.Debugf("converting html of entry %d: %v", e.ID, err)
		}
	}
	return e.TextBody
}

func (l *Library) writeZip(ctx context.Context, w io.Writer, entries []*storage.Entry, report func(int)) error {
	zw := zip.NewWriter(w)
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := l.addImage(zw, e); err != nil {
			zw.Close()
			return err
		}
		report(i)
	}
	return zw.Close()
}

// addImage skips entries whose file is missing.
func (l *Library) addImage(zw *zip.Writer, e *storage.Entry) error {
	if e.ImagePath == "" {
		return nil
	}
	path, err := validation.ResolveWithin(l.imagesDir, e.ImagePath)
	if err != nil {
		debuglog.Warnf("export: skipping image %q: %v", e.ImagePath, err)
		return nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening image %s: %w", e.ImagePath, err)
	}
	defer f.Close()

	out, err := zw.Create(e.ImagePath)
	if err != nil {
		return fmt.Errorf("adding %s to archive: %w", e.ImagePath, err)
	}
	if _, err := io.Copy(out, f); err != nil {
		return fmt.Errorf("writing %s to archive: %w", e.ImagePath, err)
	}
	return nil
}
