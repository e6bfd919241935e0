package planner

import (
	"container/list"
	"sync"

	"github.com/brindledata/recordquery/plan"
)

// CachedPlan is what the cache stores per fingerprint: the chosen plan
// plus its diagnostics, so a cache hit can return both without re-costing.
type CachedPlan struct {
	Node    plan.Node
	Explain plan.Explain
}

// Cache is a concurrency-safe, bounded LRU plan cache keyed by
// Fingerprint, per spec.md §4.H ("bounded size (LRU)... async-safe").
// Grounded on the teacher's internal/schema_metadata_cache.go
// RWMutex-guarded map, extended with container/list for LRU eviction
// order since that cache never needed bounding.
type Cache struct {
	mu       sync.RWMutex
	maxSize  int
	entries  map[Fingerprint]*list.Element
	order    *list.List // front = most recently used
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	key   Fingerprint
	value CachedPlan
}

func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		maxSize: maxSize,
		entries: make(map[Fingerprint]*list.Element),
		order:   list.New(),
	}
}

// Get returns the cached plan for fp, if present, bumping it to
// most-recently-used.
func (c *Cache) Get(fp Fingerprint) (CachedPlan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[fp]
	if !ok {
		c.misses++
		return CachedPlan{}, false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).value, true
}

// Put inserts or updates the cached plan for fp, evicting the least
// recently used entry if the cache is at capacity.
func (c *Cache) Put(fp Fingerprint, value CachedPlan) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[fp]; ok {
		elem.Value.(*cacheEntry).value = value
		c.order.MoveToFront(elem)
		return
	}

	elem := c.order.PushFront(&cacheEntry{key: fp, value: value})
	c.entries[fp] = elem

	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*cacheEntry).key)
		}
	}
}

// Stats reports cumulative hit/miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}
