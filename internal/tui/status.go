package tui

import (
	"fmt"
	"strings"
)

// Canonical short status messages used across the app.
const (
	MsgDeleting      = "Deleting…"
	MsgClearing      = "Clearing bucket…"
	MsgExporting     = "Exporting…"
	MsgExportCancel  = "Export cancelled"
	MsgNoEntries     = "No entries"
	MsgEntryDeleted  = "Entry deleted"
	MsgNothingToOpen = "Nothing to open"
	MsgNothingToCopy = "Nothing to copy"
	MsgCopied        = "Copied to clipboard"
	MsgCopiedPath    = "Copied image path"
)

func MsgBucketCleared(name string, n int) string {
	return fmt.Sprintf("Cleared '%s' (%d entries)", strings.TrimSpace(name), n)
}

func MsgExported(path string) string {
	return "Exported to " + path
}

func MsgDomainDeleted(domain string) string {
	return fmt.Sprintf("Deleted entries from %s", domain)
}

func MsgPage(page, total int) string {
	return fmt.Sprintf("page %d/%d", page, total)
}
