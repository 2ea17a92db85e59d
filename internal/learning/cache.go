package learning

import (
	"sort"
	"strings"
	"sync"

	"github.com/MrWong99/quillfix/pkg/correction"
)

// Cached is the correction currently held in memory for one original word.
type Cached struct {
	Corrected  string
	Confidence float64
}

// Cache maps lower-cased original words to their current best correction.
// At most one correction is held per original word. Readers run concurrently;
// writers are exclusive.
//
// The zero value is an empty, usable cache.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Cached
}

// newCacheFrom builds a populated cache from entries ordered confidence
// descending (as [correction.Store.GetCorrections] returns them). The first
// entry seen for an original wins.
func newCacheFrom(entries []correction.Entry) map[string]Cached {
	m := make(map[string]Cached, len(entries))
	for _, e := range entries {
		key := strings.ToLower(e.Original)
		if _, ok := m[key]; ok {
			continue
		}
		m[key] = Cached{Corrected: e.Corrected, Confidence: e.Confidence}
	}
	return m
}

// Get returns the cached correction for word, ignoring case.
func (c *Cache) Get(word string) (Cached, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[strings.ToLower(word)]
	return v, ok
}

// Set writes or overwrites the correction for original.
func (c *Cache) Set(original string, v Cached) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries == nil {
		c.entries = make(map[string]Cached)
	}
	c.entries[strings.ToLower(original)] = v
}

// Remove drops the entry for word and reports whether one existed.
func (c *Cache) Remove(word string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(word)
	_, ok := c.entries[key]
	delete(c.entries, key)
	return ok
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = nil
}

// Len returns the number of cached originals.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// replace swaps in a fully built map. Callers build m without holding the
// lock so that readers are blocked only for the pointer swap.
func (c *Cache) replace(m map[string]Cached) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = m
}

// Snapshot returns a copy of every entry, sorted by original word.
func (c *Cache) Snapshot() []correction.Entry {
	c.mu.RLock()
	out := make([]correction.Entry, 0, len(c.entries))
	for k, v := range c.entries {
		out = append(out, correction.Entry{Original: k, Corrected: v.Corrected, Confidence: v.Confidence})
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Original < out[j].Original })
	return out
}

// view runs fn with the read lock held for its whole duration, giving fn a
// consistent picture of the cache across many lookups. fn must not retain
// the map or call back into c.
func (c *Cache) view(fn func(entries map[string]Cached)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.entries)
}
