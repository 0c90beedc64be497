package compiler

import (
	"crypto/sha256"
	"sync"
)

// Cache memoizes compilations by file name and source, so that a watch
// loop only recompiles the files that changed. It is safe for concurrent
// use.
type Cache struct {
	cfg *Config

	mu      sync.Mutex
	entries map[string]*cacheEntry
	stats   CacheStats
}

type cacheEntry struct {
	sum [sha256.Size]byte
	res *Result
	err error
}

// CacheStats counts cache lookups.
type CacheStats struct {
	Hits   int
	Misses int
}

// NewCache returns an empty cache compiling with the given options.
func NewCache(opts ...Option) (*Cache, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	return &Cache{cfg: cfg, entries: make(map[string]*cacheEntry)}, nil
}

// Compile returns the cached result for filename when src is unchanged,
// and compiles it otherwise. Results are shared and must not be modified.
func (c *Cache) Compile(filename, src string) (*Result, error) {
	sum := sha256.Sum256([]byte(src))
	c.mu.Lock()
	if e, ok := c.entries[filename]; ok && e.sum == sum {
		c.stats.Hits++
		c.mu.Unlock()
		return e.res, e.err
	}
	c.stats.Misses++
	c.mu.Unlock()

	res, err := c.cfg.Compile(filename, src)

	c.mu.Lock()
	c.entries[filename] = &cacheEntry{sum: sum, res: res, err: err}
	c.mu.Unlock()
	return res, err
}

// Delete removes the entry of filename.
func (c *Cache) Delete(filename string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, filename)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns the lookup counts.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
