package tui

import "github.com/pders01/cutboard/internal/storage"

type View int

const (
	ViewBuckets View = iota
	ViewEntries
	ViewPreview
	ViewExport
	ViewDeleteConfirm
)

type deleteKind int

const (
	deleteEntry deleteKind = iota
	deleteDomain
	clearBucket
)

// pendingDelete is the destructive action awaiting confirmation.
type pendingDelete struct {
	kind   deleteKind
	entry  *storage.Entry
	domain string
	bucket *storage.Bucket
}
