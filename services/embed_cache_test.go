package services

import (
	"fmt"
	"testing"
	"time"
)

func TestEmbeddingCacheTTL(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewEmbeddingCache(time.Hour, 10)
	c.now = func() time.Time { return clock }

	c.Put("question", []float32{1, 2, 3})

	if _, ok := c.Get("question"); !ok {
		t.Fatal("fresh entry should be served")
	}

	clock = clock.Add(59 * time.Minute)
	if _, ok := c.Get("question"); !ok {
		t.Fatal("entry within TTL should be served")
	}

	clock = clock.Add(2 * time.Minute)
	if _, ok := c.Get("question"); ok {
		t.Fatal("expired entry should not be served")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry should be evicted on access, len = %d", c.Len())
	}
}

func TestEmbeddingCacheEviction(t *testing.T) {
	const maxSize = 5
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewEmbeddingCache(time.Hour, maxSize)
	c.now = func() time.Time { return clock }

	for i := 0; i < maxSize*2; i++ {
		clock = clock.Add(time.Second)
		c.Put(fmt.Sprintf("text-%d", i), []float32{float32(i)})
	}

	if c.Len() != maxSize {
		t.Fatalf("len = %d, want %d", c.Len(), maxSize)
	}
	// The most recently inserted entries survive.
	for i := maxSize; i < maxSize*2; i++ {
		if _, ok := c.Get(fmt.Sprintf("text-%d", i)); !ok {
			t.Errorf("recent entry text-%d was evicted", i)
		}
	}
	for i := 0; i < maxSize; i++ {
		if _, ok := c.Get(fmt.Sprintf("text-%d", i)); ok {
			t.Errorf("oldest entry text-%d should have been evicted", i)
		}
	}
}

func TestEmbeddingCacheOverwrite(t *testing.T) {
	c := NewEmbeddingCache(time.Hour, 10)
	c.Put("q", []float32{1})
	c.Put("q", []float32{2})

	vec, ok := c.Get("q")
	if !ok || len(vec) != 1 || vec[0] != 2 {
		t.Fatalf("Get after overwrite = %v, %v", vec, ok)
	}
	if c.Len() != 1 {
		t.Fatalf("overwrite should not grow the cache, len = %d", c.Len())
	}
}
