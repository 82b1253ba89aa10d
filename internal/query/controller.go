package query

import (
	"sync"
	"time"

	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/storage"
)

// DefaultDebounce is the quiet period before typed search text settles.
const DefaultDebounce = 300 * time.Millisecond

// Target is either a single bucket or the favorites view.
type Target struct {
	BucketID  int64
	Favorites bool
}

func BucketTarget(id int64) Target { return Target{BucketID: id} }

func FavoritesTarget() Target { return Target{Favorites: true} }

// Query is the filter state for one view.
type Query struct {
	Target    Target
	Kind      storage.ContentKind
	RawSearch string
	// Search is the settled search text used for fetching.
	Search string
	Domain string
	Page   int
}

// Filter returns the store filter for q, ignoring paging.
func (q Query) Filter() storage.Filter {
	return storage.Filter{
		BucketID: q.Target.BucketID,
		Kind:     q.Kind,
		Search:   q.Search,
		Domain:   q.Domain,
	}
}

// Controller owns a Query and the debounce timer feeding its search text.
// The settle callback runs after every change that should trigger a fetch:
// synchronously for target, kind, domain and page changes, and from the
// scheduler once a burst of search edits goes quiet.
type Controller struct {
	mu       sync.Mutex
	q        Query
	sched    Scheduler
	window   time.Duration
	pending  Timer
	gen      uint64
	onSettle func(Query)
}

func NewController(sched Scheduler, window time.Duration, target Target) *Controller {
	if sched == nil {
		sched = WallClock{}
	}
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Controller{
		q:      Query{Target: target, Kind: storage.KindText, Page: 1},
		sched:  sched,
		window: window,
	}
}

// OnSettle registers the callback invoked with each settled query.
func (c *Controller) OnSettle(fn func(Query)) {
	c.mu.Lock()
	c.onSettle = fn
	c.mu.Unlock()
}

func (c *Controller) Query() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.q
}

// Pending reports whether a debounce timer is armed.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// SetSearchText records raw immediately and restarts the debounce window.
func (c *Controller) SetSearchText(raw string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.q.RawSearch = raw
	c.cancelLocked()

	gen := c.gen
	c.pending = c.sched.AfterFunc(c.window, func() { c.settleSearch(gen) })
}

func (c *Controller) settleSearch(gen uint64) {
	c.mu.Lock()
	// a later edit or a target switch owns the window now
	if gen != c.gen {
		c.mu.Unlock()
		debuglog.Debugf("query: dropped superseded debounce generation %d", gen)
		return
	}
	c.pending = nil
	c.q.Search = c.q.RawSearch
	c.q.Page = 1
	q, fn := c.q, c.onSettle
	c.mu.Unlock()

	if fn != nil {
		fn(q)
	}
}

// cancelLocked stops the pending timer. The generation bump covers a timer
// that already fired and is waiting on the lock.
func (c *Controller) cancelLocked() {
	c.gen++
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// SetTarget switches bucket or favorites view. Search text and the domain
// filter belong to the previous target and are cleared.
func (c *Controller) SetTarget(t Target) {
	c.apply(func(q *Query) {
		c.cancelLocked()
		q.Target = t
		q.RawSearch = ""
		q.Search = ""
		q.Domain = ""
		q.Page = 1
	})
}

func (c *Controller) SetContentKind(kind storage.ContentKind) {
	c.apply(func(q *Query) {
		q.Kind = kind
		q.Page = 1
	})
}

// SetDomainFilter narrows to domain; empty clears the filter.
func (c *Controller) SetDomainFilter(domain string) {
	c.apply(func(q *Query) {
		q.Domain = domain
		q.Page = 1
	})
}

// SetPage clamps n into [1, totalPages] and returns the page applied.
func (c *Controller) SetPage(n, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	n = max(1, min(n, totalPages))
	c.apply(func(q *Query) { q.Page = n })
	return n
}

func (c *Controller) apply(mutate func(*Query)) {
	c.mu.Lock()
	mutate(&c.q)
	q, fn := c.q, c.onSettle
	c.mu.Unlock()

	if fn != nil {
		fn(q)
	}
}
