package favicon

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const maxPageBytes = 1 << 20

// HTTPResolver finds an icon by reading the <link rel="icon"> tags of a
// domain's home page.
type HTTPResolver struct {
	client    *http.Client
	userAgent string
	// Scheme defaults to https.
	Scheme string
}

func NewHTTPResolver(timeout time.Duration, userAgent string) *HTTPResolver {
	return &HTTPResolver{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		Scheme:    "https",
	}
}

func (r *HTTPResolver) Resolve(ctx context.Context, domain string) (string, error) {
	base := &url.URL{Scheme: r.Scheme, Host: domain, Path: "/"}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base.String(), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching %s: status %d", base, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", base, err)
	}

	// redirects move the base for relative hrefs
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}
	return pickIcon(doc, base), nil
}

// pickIcon prefers rel="icon", then "shortcut icon", then apple-touch-icon.
func pickIcon(doc *goquery.Document, base *url.URL) string {
	best, bestRank := "", 0
	doc.Find("link[rel][href]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(strings.TrimSpace(s.AttrOr("rel", "")))
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		rank := 0
		switch {
		case rel == "icon":
			rank = 3
		case strings.Contains(rel, "icon") && strings.Contains(rel, "shortcut"):
			rank = 2
		case strings.Contains(rel, "icon"):
			rank = 1
		}
		if rank <= bestRank {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		best, bestRank = base.ResolveReference(ref).String(), rank
	})
	return best
}

// Prober checks that a URL serves an image.
type Prober interface {
	Probe(ctx context.Context, url string) error
}

type HTTPProber struct {
	client    *http.Client
	userAgent string
}

func NewHTTPProber(timeout time.Duration, userAgent string) *HTTPProber {
	return &HTTPProber{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

func (p *HTTPProber) Probe(ctx context.Context, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("loading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPageBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("loading %s: status %d", rawURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); strings.HasPrefix(ct, "text/") {
		return fmt.Errorf("loading %s: not an image (%s)", rawURL, ct)
	}
	return nil
}
