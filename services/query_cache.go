package services

import (
	"container/list"
	"sync"

	"knowledge-assistant/models"
)

// QueryCache is a bounded LRU over exact question strings, holding the
// scored chunks a previous retrieval produced. No TTL; retrieval is
// deterministic for a fixed index generation and entries are cheap to
// recompute on miss.
type QueryCache struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	entries map[string]*list.Element
}

type queryEntry struct {
	question string
	results  []models.ScoredChunk
}

func NewQueryCache(maxSize int) *QueryCache {
	if maxSize <= 0 {
		maxSize = 128
	}
	return &QueryCache{
		maxSize: maxSize,
		order:   list.New(),
		entries: make(map[string]*list.Element),
	}
}

func (c *QueryCache) Get(question string) ([]models.ScoredChunk, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[question]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*queryEntry).results, true
}

func (c *QueryCache) Put(question string, results []models.ScoredChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[question]; ok {
		elem.Value.(*queryEntry).results = results
		c.order.MoveToFront(elem)
		return
	}

	c.entries[question] = c.order.PushFront(&queryEntry{question: question, results: results})
	if c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*queryEntry).question)
	}
}

// Reset drops every entry. Called after re-ingestion replaces indexed
// chunks, so cached results never outlive the index generation that
// produced them.
func (c *QueryCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

func (c *QueryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
