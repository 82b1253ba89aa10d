package storage

import (
	"fmt"
	"strings"
)

type ContentKind string

const (
	KindText  ContentKind = "text"
	KindImage ContentKind = "image"
)

// ParseContentKind accepts "text" or "image" in any case.
func ParseContentKind(s string) (ContentKind, error) {
	switch ContentKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindText:
		return KindText, nil
	case KindImage:
		return KindImage, nil
	default:
		return "", fmt.Errorf("unknown content kind %q", s)
	}
}

// CreatedAtLayout is the store's timestamp format. Values sort lexically.
const CreatedAtLayout = "2006-01-02 15:04:05"

// Bucket groups entries by the application they were copied from.
type Bucket struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	ExePath    string `json:"exe_path"`
	IconBlob   []byte `json:"icon_blob,omitempty"`
	EntryCount int    `json:"entry_count"`
	IsFavorite bool   `json:"is_favorite"`
}

type Entry struct {
	ID          int64       `json:"id"`
	BucketID    int64       `json:"bucket_id"`
	Kind        ContentKind `json:"content_type"`
	TextBody    string      `json:"text_content,omitempty"`
	ImagePath   string      `json:"image_path,omitempty"`
	CreatedAt   string      `json:"created_at"`
	SourceURL   string      `json:"source_url,omitempty"`
	IsFavorite  bool        `json:"is_favorite"`
	IsSensitive bool        `json:"is_sensitive"`
	HTMLBody    string      `json:"html_content,omitempty"`
}

type SourceDomain struct {
	Domain string `json:"domain"`
	Count  int    `json:"count"`
}

// Counts holds per-kind totals for a filter.
type Counts struct {
	Text  int `json:"text_count"`
	Image int `json:"image_count"`
}

// For returns the total for kind.
func (c Counts) For(kind ContentKind) int {
	if kind == KindImage {
		return c.Image
	}
	return c.Text
}

// Filter narrows entries of one bucket. Empty Search and Domain match all.
type Filter struct {
	BucketID int64
	Kind     ContentKind
	Search   string
	Domain   string
}
