package export

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/pders01/cutboard/internal/debuglog"
)

// ErrJobRunning rejects a start while another job is running.
var ErrJobRunning = errors.New("an export is already running")

// Runner runs one export job at a time. The progress subscription of a job
// is released exactly once, whichever of finish, failure, Cancel or Dispose
// gets there first. After a job ends the runner keeps its terminal status
// until the next Start.
type Runner struct {
	src Source

	mu       sync.Mutex
	status   Status
	release  func()
	cancel   context.CancelFunc
	done     chan struct{}
	onUpdate func(Status)
}

func NewRunner(src Source) *Runner {
	return &Runner{src: src}
}

// OnUpdate registers a callback for every status change.
func (r *Runner) OnUpdate(fn func(Status)) {
	r.mu.Lock()
	r.onUpdate = fn
	r.mu.Unlock()
}

func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Start launches req in the background and returns the new job id.
func (r *Runner) Start(ctx context.Context, req Request) (string, error) {
	r.mu.Lock()
	if r.status.State == StateRunning {
		r.mu.Unlock()
		return "", ErrJobRunning
	}

	jobID := uuid.NewString()
	progress, unsubscribe := r.src.SubscribeProgress(jobID)
	release := sync.OnceFunc(unsubscribe)
	jctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	r.status = Status{JobID: jobID, State: StateRunning}
	r.release = release
	r.cancel = cancel
	r.done = done

	debuglog.WithFields(map[string]any{"job": jobID, "bucket": req.BucketName, "kind": req.Kind}).
		Infof("export started to %s", req.Destination)
	r.notifyLocked()

	exported := make(chan struct{})
	drained := make(chan struct{})
	go r.forward(jobID, progress, exported, drained)
	go r.run(jctx, jobID, req, exported, drained, done)
	return jobID, nil
}

// forward republishes progress until the export call returns, then takes
// whatever is still buffered before closing drained.
func (r *Runner) forward(jobID string, progress <-chan int, exported <-chan struct{}, drained chan struct{}) {
	defer close(drained)
	for {
		select {
		case <-exported:
			for {
				select {
				case p, ok := <-progress:
					if !ok {
						return
					}
					r.publish(jobID, p)
				default:
					return
				}
			}
		case p, ok := <-progress:
			if !ok {
				return
			}
			r.publish(jobID, p)
		}
	}
}

func (r *Runner) publish(jobID string, p int) {
	r.mu.Lock()
	if r.status.JobID != jobID || r.status.State != StateRunning {
		r.mu.Unlock()
		return
	}
	r.status.Progress = p
	r.notifyLocked()
}

func (r *Runner) run(ctx context.Context, jobID string, req Request, exported, drained, done chan struct{}) {
	defer close(done)
	path, err := r.src.Export(ctx, jobID, req)
	close(exported)
	<-drained

	r.mu.Lock()
	if r.status.JobID != jobID || r.status.State != StateRunning {
		// cancelled or disposed while the export was still working
		r.mu.Unlock()
		return
	}
	r.release()
	r.cancel()
	switch {
	case err == nil:
		r.status.State = StateDone
		r.status.Progress = 100
		r.status.Path = path
		debuglog.Infof("export %s finished: %s", jobID, path)
	case errors.Is(err, context.Canceled):
		r.status.State = StateCancelled
		r.status.Err = err
	default:
		r.status.State = StateFailed
		r.status.Err = err
		debuglog.Errorf("export %s failed: %v", jobID, err)
	}
	r.notifyLocked()
}

// Cancel stops the running job. Any late result from it is ignored.
func (r *Runner) Cancel() {
	r.mu.Lock()
	if r.status.State != StateRunning {
		r.mu.Unlock()
		return
	}
	r.cancel()
	r.release()
	r.status.State = StateCancelled
	r.status.Err = context.Canceled
	debuglog.Infof("export %s cancelled", r.status.JobID)
	r.notifyLocked()
}

// Dispose tears the runner down. Safe to call repeatedly and after a job
// has ended.
func (r *Runner) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	if r.release != nil {
		r.release()
	}
	r.onUpdate = nil
}

// Wait blocks until the current job's export call has returned and its
// outcome is recorded.
func (r *Runner) Wait(ctx context.Context) error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// notifyLocked releases r.mu before running the callback.
func (r *Runner) notifyLocked() {
	st, fn := r.status, r.onUpdate
	r.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
