package favicon

import (
	"context"
	"fmt"

	"github.com/pders01/cutboard/internal/debuglog"
)

type Phase int

const (
	TryingStatic Phase = iota
	TryingResolver
	Resolved
	Failed
)

func (p Phase) String() string {
	switch p {
	case TryingStatic:
		return "trying-static"
	case TryingResolver:
		return "trying-resolver"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Resolver looks up an icon URL for a domain. An empty URL means none.
type Resolver interface {
	Resolve(ctx context.Context, domain string) (string, error)
}

type origin int

const (
	fromStatic origin = iota
	fromConfirmed
	fromResolver
)

// Cascade walks one domain through the static candidates, then the
// resolver tier, then the resolver itself, ending in Resolved or Failed.
// The caller loads Current and reports back with Loaded or LoadFailed.
type Cascade struct {
	domain     string
	candidates []string
	tiers      *Tiers
	resolver   Resolver

	phase  Phase
	index  int
	url    string
	origin origin
	asked  bool
}

func NewCascade(domain string, candidates []string, tiers *Tiers, resolver Resolver) *Cascade {
	c := &Cascade{
		domain:     domain,
		candidates: candidates,
		tiers:      tiers,
		resolver:   resolver,
	}
	if url, ok := tiers.Confirmed.Get(domain); ok {
		c.phase, c.url, c.origin = Resolved, url, fromConfirmed
		return c
	}
	c.enterStatic(context.Background(), 0)
	return c
}

func (c *Cascade) Domain() string { return c.domain }

func (c *Cascade) Phase() Phase { return c.phase }

// Index is the static candidate being tried.
func (c *Cascade) Index() int { return c.index }

// Current is the URL to load next, empty once Failed.
func (c *Cascade) Current() string {
	if c.phase == Failed {
		return ""
	}
	return c.url
}

// Loaded records that Current loaded and confirms it.
func (c *Cascade) Loaded() {
	if c.phase == Failed || c.url == "" {
		return
	}
	c.tiers.Confirmed.Put(c.domain, c.url)
	c.phase = Resolved
}

// LoadFailed advances past the URL that did not load. Reaching the end of
// the static list may call the resolver, once per cascade.
func (c *Cascade) LoadFailed(ctx context.Context) {
	switch {
	case c.phase == Failed:
		return
	case c.phase == Resolved && c.origin == fromConfirmed:
		// a confirmed URL went stale, start over from the static list
		c.enterStatic(ctx, 0)
	case c.phase == TryingStatic && c.index+1 < len(c.candidates):
		c.enterStatic(ctx, c.index+1)
	case c.phase == TryingStatic:
		c.afterStatic(ctx)
	default:
		c.fail()
	}
}

func (c *Cascade) enterStatic(ctx context.Context, i int) {
	if i >= len(c.candidates) {
		c.afterStatic(ctx)
		return
	}
	c.phase, c.index, c.url, c.origin = TryingStatic, i, c.candidates[i], fromStatic
}

func (c *Cascade) afterStatic(ctx context.Context) {
	if url, ok := c.tiers.Resolved.Get(c.domain); ok {
		c.phase, c.url, c.origin = Resolved, url, fromResolver
		return
	}
	if c.asked || c.resolver == nil {
		c.fail()
		return
	}

	c.phase, c.url, c.asked = TryingResolver, "", true
	url, err := c.resolver.Resolve(ctx, c.domain)
	if err != nil || url == "" {
		if err != nil {
			debuglog.Debugf("favicon resolver for %s: %v", c.domain, err)
		}
		c.fail()
		return
	}
	c.tiers.Resolved.Put(c.domain, url)
	c.phase, c.url, c.origin = Resolved, url, fromResolver
}

func (c *Cascade) fail() {
	c.phase, c.url = Failed, ""
}

// Badge is the placeholder for a Failed cascade.
func (c *Cascade) Badge() Badge {
	return BadgeFor(c.domain)
}
