package services

import (
	"fmt"
	"testing"

	"knowledge-assistant/models"
)

func TestQueryCacheLRU(t *testing.T) {
	c := NewQueryCache(3)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("q%d", i), []models.ScoredChunk{{Score: float64(i)}})
	}

	// Touch q0 so q1 becomes the least recently used.
	if _, ok := c.Get("q0"); !ok {
		t.Fatal("q0 should be cached")
	}

	c.Put("q3", nil)
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}
	if _, ok := c.Get("q1"); ok {
		t.Fatal("q1 should have been evicted as least recently used")
	}
	if _, ok := c.Get("q0"); !ok {
		t.Fatal("q0 should have survived eviction")
	}
}

func TestQueryCacheReset(t *testing.T) {
	c := NewQueryCache(4)
	for i := 0; i < 3; i++ {
		c.Put(fmt.Sprintf("q%d", i), []models.ScoredChunk{{Score: float64(i)}})
	}

	c.Reset()
	if c.Len() != 0 {
		t.Fatalf("len after reset = %d, want 0", c.Len())
	}
	if _, ok := c.Get("q0"); ok {
		t.Fatal("entry survived reset")
	}

	// The cache must stay usable after a reset.
	c.Put("fresh", []models.ScoredChunk{{Score: 0.8}})
	if _, ok := c.Get("fresh"); !ok {
		t.Fatal("cache unusable after reset")
	}
}

func TestQueryCacheOverwrite(t *testing.T) {
	c := NewQueryCache(2)
	c.Put("q", []models.ScoredChunk{{Score: 0.5}})
	c.Put("q", []models.ScoredChunk{{Score: 0.9}})

	results, ok := c.Get("q")
	if !ok || len(results) != 1 || results[0].Score != 0.9 {
		t.Fatalf("Get = %v, %v; want single 0.9 result", results, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("overwrite grew the cache, len = %d", c.Len())
	}
}
