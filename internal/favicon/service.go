package favicon

import (
	"context"
	"fmt"

	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/validation"
)

// Result is either a loadable URL or a placeholder badge.
type Result struct {
	Domain string
	URL    string
	Badge  Badge
}

// Failed reports whether the badge stands in for an icon.
func (r Result) Failed() bool { return r.URL == "" }

// Service drives cascades to completion by probing each candidate.
type Service struct {
	tiers     *Tiers
	providers Providers
	resolver  Resolver
	prober    Prober
	hosts     *validation.HostValidator
}

func NewService(tiers *Tiers, providers Providers, resolver Resolver, prober Prober) *Service {
	return &Service{
		tiers:     tiers,
		providers: providers,
		resolver:  resolver,
		prober:    prober,
		hosts:     validation.NewHostValidator(),
	}
}

// Cascade starts a cascade for domain without driving it.
func (s *Service) Cascade(domain string) *Cascade {
	return NewCascade(domain, s.providers.Candidates(domain), s.tiers, s.resolver)
}

// Resolve runs domain's cascade until it resolves or fails. Invalid domains
// go straight to the badge.
func (s *Service) Resolve(ctx context.Context, domain string) (Result, error) {
	host, err := s.hosts.ValidateDomain(domain)
	if err != nil {
		return Result{Domain: domain, Badge: BadgeFor(domain)}, fmt.Errorf("invalid domain: %w", err)
	}

	c := s.Cascade(host)
	for c.Phase() != Failed {
		if err := ctx.Err(); err != nil {
			return Result{Domain: host, Badge: c.Badge()}, err
		}
		candidate := c.Current()
		if err := s.prober.Probe(ctx, candidate); err != nil {
			debuglog.Debugf("favicon %s: %s failed (%s): %v", host, candidate, c.Phase(), err)
			c.LoadFailed(ctx)
			continue
		}
		c.Loaded()
		return Result{Domain: host, URL: candidate}, nil
	}
	return Result{Domain: host, Badge: c.Badge()}, nil
}
