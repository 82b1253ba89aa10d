package export

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/cutboard/internal/storage"
)

type exportResult struct {
	path string
	err  error
}

type fakeSource struct {
	mu       sync.Mutex
	progress map[string]chan int
	releases map[string]int
	requests []Request
	results  chan exportResult
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		progress: map[string]chan int{},
		releases: map[string]int{},
		results:  make(chan exportResult, 1),
	}
}

func (f *fakeSource) SubscribeProgress(jobID string) (<-chan int, func()) {
	ch := make(chan int)
	f.mu.Lock()
	f.progress[jobID] = ch
	f.mu.Unlock()
	return ch, func() {
		f.mu.Lock()
		f.releases[jobID]++
		f.mu.Unlock()
	}
}

func (f *fakeSource) Export(ctx context.Context, _ string, req Request) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	select {
	case res := <-f.results:
		return res.path, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeSource) send(jobID string, p int) {
	f.mu.Lock()
	ch := f.progress[jobID]
	f.mu.Unlock()
	ch <- p
}

func (f *fakeSource) releaseCount(jobID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.releases[jobID]
}

func textRequest() Request {
	return Request{BucketID: 7, BucketName: "Code.exe", Kind: storage.KindText, Destination: "/tmp/out.md"}
}

func waitFor(t *testing.T, r *Runner) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, r.Wait(ctx))
}

func TestRunnerSuccess(t *testing.T) {
	src := newFakeSource()
	r := NewRunner(src)
	assert.Equal(t, StateIdle, r.Status().State)

	var mu sync.Mutex
	var seen []int
	r.OnUpdate(func(s Status) {
		mu.Lock()
		seen = append(seen, s.Progress)
		mu.Unlock()
	})

	jobID, err := r.Start(context.Background(), textRequest())
	require.NoError(t, err)
	st := r.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, 0, st.Progress)

	for _, p := range []int{10, 50, 100} {
		src.send(jobID, p)
		want := p
		require.Eventually(t, func() bool { return r.Status().Progress == want }, time.Second, time.Millisecond)
	}

	src.results <- exportResult{path: "/tmp/out.md"}
	waitFor(t, r)

	st = r.Status()
	assert.Equal(t, StateDone, st.State)
	assert.Equal(t, "/tmp/out.md", st.Path)
	assert.Equal(t, 1, src.releaseCount(jobID))

	r.Dispose()
	r.Dispose()
	assert.Equal(t, 1, src.releaseCount(jobID), "dispose after done must not release again")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 10, 50, 100, 100}, seen)
}

// burstSource buffers its progress and publishes it all before Export
// returns, the way the library hub does for small exports.
type burstSource struct {
	steps []int
	ch    chan int
}

func (b *burstSource) SubscribeProgress(string) (<-chan int, func()) {
	b.ch = make(chan int, 16)
	return b.ch, func() {}
}

func (b *burstSource) Export(_ context.Context, _ string, req Request) (string, error) {
	for _, p := range b.steps {
		b.ch <- p
	}
	return req.Destination, nil
}

func TestRunnerRepublishesBufferedProgress(t *testing.T) {
	for i := 0; i < 50; i++ {
		src := &burstSource{steps: []int{25, 50, 75, 100}}
		r := NewRunner(src)

		var mu sync.Mutex
		var running []int
		r.OnUpdate(func(s Status) {
			if s.State != StateRunning {
				return
			}
			mu.Lock()
			running = append(running, s.Progress)
			mu.Unlock()
		})

		_, err := r.Start(context.Background(), textRequest())
		require.NoError(t, err)
		waitFor(t, r)

		st := r.Status()
		assert.Equal(t, StateDone, st.State)
		assert.Equal(t, 100, st.Progress)

		mu.Lock()
		assert.Equal(t, []int{0, 25, 50, 75, 100}, running, "run %d", i)
		mu.Unlock()
	}
}

func TestRunnerFailure(t *testing.T) {
	src := newFakeSource()
	r := NewRunner(src)

	jobID, err := r.Start(context.Background(), textRequest())
	require.NoError(t, err)
	src.results <- exportResult{err: errors.New("disk full")}
	waitFor(t, r)

	st := r.Status()
	assert.Equal(t, StateFailed, st.State)
	assert.EqualError(t, st.Err, "disk full")
	assert.Equal(t, 1, src.releaseCount(jobID))
}

func TestRunnerRejectsSecondStart(t *testing.T) {
	src := newFakeSource()
	r := NewRunner(src)

	jobID, err := r.Start(context.Background(), textRequest())
	require.NoError(t, err)
	src.send(jobID, 40)
	require.Eventually(t, func() bool { return r.Status().Progress == 40 }, time.Second, time.Millisecond)

	_, err = r.Start(context.Background(), textRequest())
	assert.ErrorIs(t, err, ErrJobRunning)

	st := r.Status()
	assert.Equal(t, jobID, st.JobID)
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, 40, st.Progress)

	src.results <- exportResult{path: "done"}
	waitFor(t, r)
}

func TestRunnerRestartAfterTerminal(t *testing.T) {
	src := newFakeSource()
	r := NewRunner(src)

	first, err := r.Start(context.Background(), textRequest())
	require.NoError(t, err)
	src.send(first, 70)
	src.results <- exportResult{err: errors.New("boom")}
	waitFor(t, r)
	require.Equal(t, StateFailed, r.Status().State)

	second, err := r.Start(context.Background(), textRequest())
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	st := r.Status()
	assert.Equal(t, StateRunning, st.State)
	assert.Equal(t, 0, st.Progress)
	assert.NoError(t, st.Err)

	src.results <- exportResult{path: "ok"}
	waitFor(t, r)
}

func TestRunnerCancel(t *testing.T) {
	src := newFakeSource()
	r := NewRunner(src)

	jobID, err := r.Start(context.Background(), textRequest())
	require.NoError(t, err)

	r.Cancel()
	assert.Equal(t, StateCancelled, r.Status().State)
	waitFor(t, r)

	assert.Equal(t, StateCancelled, r.Status().State)
	assert.Equal(t, 1, src.releaseCount(jobID))

	r.Cancel()
	r.Dispose()
	assert.Equal(t, 1, src.releaseCount(jobID))
}

func TestRunnerDisposeWhileRunning(t *testing.T) {
	src := newFakeSource()
	r := NewRunner(src)

	jobID, err := r.Start(context.Background(), textRequest())
	require.NoError(t, err)

	r.Dispose()
	assert.Equal(t, 1, src.releaseCount(jobID))
	waitFor(t, r)

	// the export saw the cancelled context, the release stays single
	assert.Equal(t, 1, src.releaseCount(jobID))
	assert.Equal(t, StateCancelled, r.Status().State)
}

func TestRunnerPassesRequestThrough(t *testing.T) {
	src := newFakeSource()
	r := NewRunner(src)
	req := Request{BucketID: 3, BucketName: "Photos", Kind: storage.KindImage, Destination: "/tmp/p.zip"}

	_, err := r.Start(context.Background(), req)
	require.NoError(t, err)
	src.results <- exportResult{path: req.Destination}
	waitFor(t, r)

	require.Len(t, src.requests, 1)
	assert.Equal(t, req, src.requests[0])
}

func TestDefaultFilename(t *testing.T) {
	day := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		bucket string
		kind   storage.ContentKind
		want   string
	}{
		{"Code.exe", storage.KindText, "cutboard_Code_20240309.md"},
		{"My App", storage.KindImage, "cutboard_My-App_20240309.zip"},
		{"a/b", storage.KindText, "cutboard_a-b_20240309.md"},
		{"", storage.KindText, "cutboard_entries_20240309.md"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultFilename("cutboard", tt.bucket, tt.kind, day))
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "running", StateRunning.String())
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateRunning.Terminal())
}
