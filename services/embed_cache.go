package services

import (
	"sort"
	"sync"
	"time"
)

type cachedEmbedding struct {
	vector    []float32
	timestamp time.Time
}

// EmbeddingCache is a TTL plus size bounded in-process cache mapping
// text to its embedding vector. A miss is never an error; callers
// recompute through the embedding model. Safe for concurrent use.
type EmbeddingCache struct {
	mu      sync.Mutex
	entries map[string]cachedEmbedding
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

func NewEmbeddingCache(ttl time.Duration, maxSize int) *EmbeddingCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &EmbeddingCache{
		entries: make(map[string]cachedEmbedding),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached vector for text if present and younger than
// the TTL. An expired entry is evicted on access.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[text]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		delete(c.entries, text)
		return nil, false
	}
	return entry.vector, true
}

// Put inserts or overwrites, then evicts oldest-timestamp entries while
// the cache exceeds its size bound.
func (c *EmbeddingCache) Put(text string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[text] = cachedEmbedding{vector: vector, timestamp: c.now()}
	if len(c.entries) <= c.maxSize {
		return
	}

	type aged struct {
		key string
		ts  time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, v := range c.entries {
		all = append(all, aged{key: k, ts: v.timestamp})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ts.Before(all[j].ts) })
	for _, a := range all {
		if len(c.entries) <= c.maxSize {
			break
		}
		delete(c.entries, a.key)
	}
}

// Len reports the current entry count.
func (c *EmbeddingCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
