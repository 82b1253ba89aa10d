package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pders01/cutboard/internal/storage"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether s ends a job.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Request exports every entry of one kind in a bucket. Paging and search
// text never narrow an export.
type Request struct {
	BucketID    int64
	BucketName  string
	Kind        storage.ContentKind
	Destination string
}

// Status is a snapshot of the runner's current job.
type Status struct {
	JobID    string
	State    State
	Progress int
	Path     string
	Err      error
}

// Source performs exports and publishes per-job progress percentages.
type Source interface {
	// SubscribeProgress returns the job's progress stream and its release func.
	SubscribeProgress(jobID string) (<-chan int, func())
	Export(ctx context.Context, jobID string, req Request) (string, error)
}

// Extension is "zip" for image exports and "md" otherwise.
func Extension(kind storage.ContentKind) string {
	if kind == storage.KindImage {
		return "zip"
	}
	return "md"
}

// DefaultFilename builds <product>_<bucket>_<YYYYMMDD>.<ext>.
func DefaultFilename(product, bucketName string, kind storage.ContentKind, day time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", product, filenameSafe(bucketName), day.Format("20060102"), Extension(kind))
}

func filenameSafe(name string) string {
	name = strings.TrimSuffix(strings.TrimSpace(name), ".exe")
	if name == "" {
		return "entries"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			return '-'
		}
		return r
	}, name)
}
