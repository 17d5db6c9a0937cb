// Package cache memoizes enrichment results by venue identity for the lifetime of the process.
package cache

import (
	"strings"
	"sync"

	"github.com/gastromap/location-enricher/pkg/enrich"
)

// Cache maps a normalized (name, address, city, country) identity to the last result
// produced for it. Enrichment options are not part of the key.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*enrich.Result
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[string]*enrich.Result)}
}

// Key returns the identity key for l.
func Key(l enrich.LocationRecord) string {
	return strings.Join([]string{
		normalize(l.Name),
		normalize(l.Address),
		normalize(l.City),
		normalize(l.Country),
	}, "|")
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Get returns the cached result for l's identity. It never triggers I/O.
func (c *Cache) Get(l enrich.LocationRecord) (*enrich.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[Key(l)]
	return r, ok
}

// Set stores r under l's identity, replacing any previous entry.
func (c *Cache) Set(l enrich.LocationRecord, r *enrich.Result) {
	if r == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[Key(l)] = r
}

// Clear drops all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*enrich.Result)
}

// Len returns the number of cached identities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
