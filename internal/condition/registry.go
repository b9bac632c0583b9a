package condition

import (
	"sort"
	"strings"
	"sync"

	"github.com/bytedance/gg/gmap"
)

// Registry maps literal condition paths to providers. Aliases resolve to a
// canonical key and are not listed by Keys.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	aliases   map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider, 8),
		aliases:   make(map[string]string),
	}
}

func (r *Registry) Register(key string, p Provider) {
	key = normalizeKey(key)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[key] = p
}

// Alias makes alias resolve to the provider registered under key.
func (r *Registry) Alias(alias, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.aliases[normalizeKey(alias)] = normalizeKey(key)
}

func (r *Registry) Lookup(key string) (Provider, bool) {
	key = normalizeKey(key)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if canonical, ok := r.aliases[key]; ok {
		key = canonical
	}
	p, ok := r.providers[key]
	return p, ok
}

// Keys returns the canonical keys, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := gmap.ToSlice(r.providers, func(k string, _ Provider) string { return k })
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if len(key) > 1 {
		key = strings.TrimRight(key, "/")
	}
	return key
}
