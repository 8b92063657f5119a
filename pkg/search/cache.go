package search

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/delverhq/delver/pkg/models"
)

// defaultCacheSize bounds the per-process search cache. Eviction is
// LRU; no TTL, matching the lifetime of a research run.
const defaultCacheSize = 256

// Cache memoizes orchestrator calls keyed by strategy, result count,
// profile, and query. Hits return deep copies so callers can mutate
// results freely.
type Cache struct {
	entries *lru.Cache[string, []models.SearchResult]
}

// NewCache creates a bounded cache; size <= 0 uses the default.
func NewCache(size int) *Cache {
	if size <= 0 {
		size = defaultCacheSize
	}
	// Only errors on non-positive size, which is guarded above.
	entries, _ := lru.New[string, []models.SearchResult](size)
	return &Cache{entries: entries}
}

func cacheKey(strategy string, maxResults int, profile []string, query string) string {
	return fmt.Sprintf("%s|%d|%s|%s", strategy, maxResults, strings.Join(profile, ","), query)
}

// Get returns a deep copy of the cached results for the key.
func (c *Cache) Get(strategy string, maxResults int, profile []string, query string) ([]models.SearchResult, bool) {
	cached, ok := c.entries.Get(cacheKey(strategy, maxResults, profile, query))
	if !ok {
		return nil, false
	}
	out := make([]models.SearchResult, len(cached))
	copy(out, cached)
	return out, true
}

// Put stores a copy of the results for the key.
func (c *Cache) Put(strategy string, maxResults int, profile []string, query string, results []models.SearchResult) {
	stored := make([]models.SearchResult, len(results))
	copy(stored, results)
	c.entries.Add(cacheKey(strategy, maxResults, profile, query), stored)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
