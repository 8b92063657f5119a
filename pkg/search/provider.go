// Package search implements the multi-provider web-search layer:
// provider adapters behind a common interface, a keyed LRU result
// cache, fallback/profile orchestration strategies, and domain-aware
// provider profiles.
package search

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/delverhq/delver/pkg/models"
)

// Provider is one web-search backend. Implementations are shared
// read-only singletons; Search must be safe for concurrent use.
type Provider interface {
	// Name is the canonical provider name used in profiles and result
	// tagging.
	Name() string

	// IsAvailable reports whether the provider is usable (credentials
	// present and valid-looking).
	IsAvailable() bool

	// Search runs one query and returns normalized results.
	Search(ctx context.Context, query string, maxResults int) ([]models.SearchResult, error)
}

// placeholderKeys are key values that signal an unconfigured provider.
var placeholderKeys = map[string]struct{}{
	"your-api-key":     {},
	"your_api_key":     {},
	"changeme":         {},
	"change-me":        {},
	"placeholder":      {},
	"xxx":              {},
	"none":             {},
	"<your-api-key>":   {},
	"sk-your-api-key":  {},
	"insert-key-here":  {},
	"replace-with-key": {},
}

// ValidateAPIKey rejects empty keys, obvious placeholders, and keys
// shorter than 10 characters.
func ValidateAPIKey(provider, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%s: api key is not configured", provider)
	}
	if _, ok := placeholderKeys[strings.ToLower(key)]; ok {
		return fmt.Errorf("%s: api key looks like a placeholder", provider)
	}
	if len(key) < 10 {
		return fmt.Errorf("%s: api key is too short", provider)
	}
	return nil
}

// Registry holds the configured providers by canonical name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider, replacing any previous one with the same
// name. Registration order is preserved for Names.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.providers[p.Name()] = p
}

// Get returns the provider registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// Names returns all registered provider names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Available returns the names of providers currently reporting
// availability, in registration order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for _, name := range r.order {
		if r.providers[name].IsAvailable() {
			out = append(out, name)
		}
	}
	return out
}
