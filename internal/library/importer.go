package library

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/storage"
)

// ImportRecord is one entry in an import file.
type ImportRecord struct {
	App        string `json:"app"`
	ExePath    string `json:"exe_path,omitempty"`
	Kind       string `json:"content_type"`
	Text       string `json:"text_content,omitempty"`
	ImagePath  string `json:"image_path,omitempty"`
	HTML       string `json:"html_content,omitempty"`
	SourceURL  string `json:"source_url,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	IsFavorite bool   `json:"is_favorite,omitempty"`
	Sensitive  bool   `json:"is_sensitive,omitempty"`
}

// Import reads a JSON array of ImportRecord and stores each valid record.
// Invalid records are skipped; the count of stored entries is returned.
func (l *Library) Import(ctx context.Context, r io.Reader) (int, error) {
	var records []ImportRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decoding import file: %w", err)
	}

	added := 0
	for i, rec := range records {
		kind, err := storage.ParseContentKind(rec.Kind)
		if err != nil || strings.TrimSpace(rec.App) == "" {
			debuglog.Warnf("import: skipping record %d: app=%q kind=%q", i, rec.App, rec.Kind)
			continue
		}
		if (kind == storage.KindText && rec.Text == "") || (kind == storage.KindImage && rec.ImagePath == "") {
			debuglog.Warnf("import: skipping record %d without content", i)
			continue
		}
		e := &storage.Entry{
			Kind:        kind,
			TextBody:    rec.Text,
			ImagePath:   rec.ImagePath,
			HTMLBody:    rec.HTML,
			SourceURL:   rec.SourceURL,
			CreatedAt:   rec.CreatedAt,
			IsFavorite:  rec.IsFavorite,
			IsSensitive: rec.Sensitive,
		}
		if err := l.addEntry(ctx, rec.App, rec.ExePath, e); err != nil {
			return added, fmt.Errorf("importing record %d: %w", i, err)
		}
		added++
	}
	if added > 0 {
		l.hub.notifyChanged()
	}
	return added, nil
}
