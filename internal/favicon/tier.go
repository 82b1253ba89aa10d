package favicon

import (
	"encoding/json"
	"sync"

	"github.com/pders01/cutboard/internal/cache"
	"github.com/pders01/cutboard/internal/debuglog"
)

const (
	DefaultTierCapacity = 200

	confirmedKey = "favicon.confirmed"
	resolvedKey  = "favicon.resolved"
)

// Prefs is durable key-value storage.
type Prefs interface {
	GetPref(key string) ([]byte, error)
	PutPref(key string, value []byte) error
}

type tierRecord struct {
	Domain string `json:"domain"`
	URL    string `json:"url"`
}

// Tier is a bounded domain to URL map persisted under one prefs key as a
// JSON list, oldest first. It loads on first use; unreadable data counts
// as empty.
type Tier struct {
	prefs    Prefs
	key      string
	capacity int

	once    sync.Once
	mu      sync.Mutex
	entries *cache.Bounded[string, string]
}

func NewTier(prefs Prefs, key string, capacity int) *Tier {
	return &Tier{prefs: prefs, key: key, capacity: capacity}
}

func (t *Tier) load() {
	t.once.Do(func() {
		t.entries = cache.NewBounded[string, string](t.capacity)

		data, err := t.prefs.GetPref(t.key)
		if err != nil {
			debuglog.Warnf("favicon tier %s unreadable, starting empty: %v", t.key, err)
			return
		}
		if len(data) == 0 {
			return
		}
		var records []tierRecord
		if err := json.Unmarshal(data, &records); err != nil {
			debuglog.Warnf("favicon tier %s corrupt, starting empty: %v", t.key, err)
			return
		}
		for _, r := range records {
			if r.Domain != "" && r.URL != "" {
				t.entries.Put(r.Domain, r.URL)
			}
		}
	})
}

func (t *Tier) Get(domain string) (string, bool) {
	t.load()
	return t.entries.Get(domain)
}

// Put stores and persists domain's URL. Persist failures are logged only.
func (t *Tier) Put(domain, url string) {
	t.load()
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries.Put(domain, url)

	keys := t.entries.Keys()
	records := make([]tierRecord, 0, len(keys))
	for _, k := range keys {
		if v, ok := t.entries.Get(k); ok {
			records = append(records, tierRecord{Domain: k, URL: v})
		}
	}
	data, err := json.Marshal(records)
	if err != nil {
		debuglog.Warnf("encoding favicon tier %s: %v", t.key, err)
		return
	}
	if err := t.prefs.PutPref(t.key, data); err != nil {
		debuglog.Warnf("persisting favicon tier %s: %v", t.key, err)
	}
}

func (t *Tier) Len() int {
	t.load()
	return t.entries.Len()
}

// Tiers holds the confirmed-URL tier and the resolver-result tier.
type Tiers struct {
	Confirmed *Tier
	Resolved  *Tier
}

func NewTiers(prefs Prefs, capacity int) *Tiers {
	if capacity < 1 {
		capacity = DefaultTierCapacity
	}
	return &Tiers{
		Confirmed: NewTier(prefs, confirmedKey, capacity),
		Resolved:  NewTier(prefs, resolvedKey, capacity),
	}
}
