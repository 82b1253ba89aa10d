package library

import "sync"

// hub fans out export progress per job and content-change signals.
// Sends never block. A full progress channel drops its oldest value, so a
// slow listener still sees the latest percentage.
type hub struct {
	mu       sync.Mutex
	progress map[string]map[chan int]struct{}
	changes  map[chan struct{}]struct{}
}

func newHub() *hub {
	return &hub{
		progress: make(map[string]map[chan int]struct{}),
		changes:  make(map[chan struct{}]struct{}),
	}
}

func (h *hub) subscribeProgress(jobID string) (<-chan int, func()) {
	ch := make(chan int, 16)
	h.mu.Lock()
	if h.progress[jobID] == nil {
		h.progress[jobID] = make(map[chan int]struct{})
	}
	h.progress[jobID][ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.progress[jobID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.progress, jobID)
		}
		close(ch)
	}
}

func (h *hub) publishProgress(jobID string, pct int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.progress[jobID] {
		select {
		case ch <- pct:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- pct:
		default:
		}
	}
}

func (h *hub) subscribeChanges() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.changes[ch] = struct{}{}
	h.mu.Unlock()

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.changes[ch]; ok {
			delete(h.changes, ch)
			close(ch)
		}
	}
}

// notifyChanged coalesces: a pending signal already covers this one.
func (h *hub) notifyChanged() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.changes {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (h *hub) progressListeners(jobID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.progress[jobID])
}
