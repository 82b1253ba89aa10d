package favicon

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed providers.toml
var providersTOML []byte

// Provider is a templated icon source. The URL is a pure function of the domain.
type Provider struct {
	Name string `toml:"name"`
	URL  string `toml:"url"`
}

type providersFile struct {
	Providers []Provider `toml:"providers"`
}

// Expand fills the provider template for domain.
func (p Provider) Expand(domain string) string {
	return strings.ReplaceAll(p.URL, "{domain}", domain)
}

// Providers is the ordered static candidate list.
type Providers []Provider

// Candidates expands every provider for domain, in order.
func (ps Providers) Candidates(domain string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.Expand(domain))
	}
	return out
}

// LoadProviders returns overrides when given, otherwise the built-in list,
// replaced by ~/.config/cutboard/providers.toml when that file exists.
func LoadProviders(overrides []string) (Providers, error) {
	if len(overrides) > 0 {
		ps := make(Providers, 0, len(overrides))
		for i, u := range overrides {
			ps = append(ps, Provider{Name: fmt.Sprintf("custom%d", i+1), URL: u})
		}
		return ps, nil
	}

	builtin, err := parseProviders(providersTOML)
	if err != nil {
		return nil, fmt.Errorf("parsing providers.toml: %w", err)
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "cutboard", "providers.toml")
		if data, err := os.ReadFile(path); err == nil {
			if user, err := parseProviders(data); err == nil && len(user) > 0 {
				return user, nil
			}
		}
	}
	return builtin, nil
}

func parseProviders(data []byte) (Providers, error) {
	var f providersFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	ps := make(Providers, 0, len(f.Providers))
	for _, p := range f.Providers {
		if strings.Contains(p.URL, "{domain}") {
			ps = append(ps, p)
		}
	}
	return ps, nil
}
