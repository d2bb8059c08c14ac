package executor

import (
	"sync"

	"github.com/SiL3nTL00p/shinchan.ai/pkg/duck"
)

// ResultCache maps exact SQL text to a previously computed result. It is
// a saturation guard, not an LRU: once the cache is full, new results are
// simply not stored. Copies are made on both insert and lookup so callers
// can never mutate a cached value.
type ResultCache struct {
	mu      sync.RWMutex
	maxSize int
	entries map[string]duck.Result
}

func NewResultCache(maxSize int) *ResultCache {
	return &ResultCache{
		maxSize: maxSize,
		entries: make(map[string]duck.Result),
	}
}

// Get returns a copy of the cached result for the exact SQL text.
func (c *ResultCache) Get(sql string) (duck.Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res, ok := c.entries[sql]
	if !ok {
		return duck.Result{}, false
	}
	return res.Copy(), true
}

// Put stores a copy of the result unless the cache is full. Overwriting
// an existing key is always allowed.
func (c *ResultCache) Put(sql string, res duck.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[sql]; !exists && len(c.entries) >= c.maxSize {
		return
	}
	c.entries[sql] = res.Copy()
}

// Len returns the current number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cap returns the maximum number of entries.
func (c *ResultCache) Cap() int {
	return c.maxSize
}
