// Package cache provides a bounded in-memory cache of analysis results.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/chess-tools/stockfishd/internal/fen"
)

// DefaultCapacity bounds the cache when no explicit capacity is configured.
const DefaultCapacity = 512

// Result is one completed engine analysis. Results are stored and returned
// by value, so a cached copy never shares mutable state with callers.
type Result struct {
	BestMove   string `json:"bestmove"`
	Evaluation int    `json:"evaluation"`
	FEN        string `json:"fen"`
	Cached     bool   `json:"cached"`
}

// Cache maps position keys to results with FIFO eviction: when full, the
// earliest-inserted entry goes first. Lookups never refresh an entry's
// position (this is deliberately not an LRU), and overwriting an existing
// key keeps its original order slot.
type Cache struct {
	mu       sync.RWMutex
	entries  map[fen.Key]Result
	order    []fen.Key
	capacity int

	hits   uint64
	misses uint64
}

// Stats holds cache counters for the stats endpoint.
type Stats struct {
	Hits     uint64
	Misses   uint64
	Size     int
	Capacity int
}

// New creates a cache holding at most capacity results. Non-positive
// capacities fall back to DefaultCapacity.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		entries:  make(map[fen.Key]Result, capacity),
		order:    make([]fen.Key, 0, capacity),
		capacity: capacity,
	}
}

// Get retrieves a result. It never evicts and never alters eviction order.
func (c *Cache) Get(key fen.Key) (Result, bool) {
	c.mu.RLock()
	r, ok := c.entries[key]
	c.mu.RUnlock()

	if ok {
		atomic.AddUint64(&c.hits, 1)
	} else {
		atomic.AddUint64(&c.misses, 1)
	}
	return r, ok
}

// Put adds or updates a result. An existing key is overwritten in place
// without touching its order slot; a new key evicts the oldest insert when
// the cache is full.
func (c *Cache) Put(key fen.Key, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		c.entries[key] = r
		return
	}

	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[key] = r
	c.order = append(c.order, key)
}

// Len returns the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns hit/miss counters and current size.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	size := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:     atomic.LoadUint64(&c.hits),
		Misses:   atomic.LoadUint64(&c.misses),
		Size:     size,
		Capacity: c.capacity,
	}
}
