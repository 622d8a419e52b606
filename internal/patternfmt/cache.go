package patternfmt

import (
	"sync"
	"time"
)

// cacheKey identifies a compiled Formatter shared across loggers.
type cacheKey struct {
	pattern     string
	timePattern string
	timezone    string
}

type cacheEntry struct {
	formatter *Formatter
	// refCount is the number of loggers currently holding this entry. Go has
	// no std::weak_ptr equivalent, so the cache releases an entry explicitly
	// once its refCount drops to zero instead of relying on a weak pointer
	// to notice the last owner went away.
	refCount int
}

// Cache shares compiled Formatters between loggers with identical
// (pattern, time pattern, timezone) tuples.
type Cache struct {
	mu      sync.Mutex
	entries map[cacheKey]*cacheEntry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[cacheKey]*cacheEntry)}
}

// Acquire returns the Formatter for the given tuple, compiling and caching
// it on first use, and increments its refcount. Every Acquire must be
// matched by a later Release.
func (c *Cache) Acquire(pattern, timePattern string, timezone *time.Location) *Formatter {
	if timezone == nil {
		timezone = time.Local
	}
	key := cacheKey{pattern: pattern, timePattern: timePattern, timezone: timezone.String()}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{formatter: Compile(pattern, timePattern, timezone)}
		c.entries[key] = entry
	}
	entry.refCount++
	return entry.formatter
}

// Release decrements the refcount for the given tuple and evicts the entry
// once no logger holds it anymore.
func (c *Cache) Release(pattern, timePattern string, timezone *time.Location) {
	if timezone == nil {
		timezone = time.Local
	}
	key := cacheKey{pattern: pattern, timePattern: timePattern, timezone: timezone.String()}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return
	}
	entry.refCount--
	if entry.refCount <= 0 {
		delete(c.entries, key)
	}
}

// Len returns the number of distinct formatters currently cached, used by
// tests to assert on eviction.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
