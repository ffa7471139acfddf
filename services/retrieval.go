package services

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"knowledge-assistant/internal/search"
	"knowledge-assistant/internal/telemetry"
	"knowledge-assistant/models"
)

// Embedder turns text into a fixed-length vector. Deterministic for
// identical text; failures surface as errors and are never cached.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex answers nearest-neighbour queries over indexed chunks.
// Satisfied by search.MongoIndex.
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, limit int) ([]models.ScoredChunk, error)
	Count(ctx context.Context) (int64, error)
}

// RetrievalService queries the vector index for chunks relevant to a
// question, filtering by similarity score and deduplicating by exact
// content. Results are cached per exact question string; both caches
// are best effort and a miss simply re-queries.
type RetrievalService struct {
	embedder   Embedder
	index      VectorIndex
	embedCache *EmbeddingCache
	queryCache *QueryCache
	chunkCache *ChunkCacheService
	metrics    *telemetry.Metrics
	minScore   float64
	topK       int
}

func NewRetrievalService(
	embedder Embedder,
	index VectorIndex,
	embedCache *EmbeddingCache,
	queryCache *QueryCache,
	chunkCache *ChunkCacheService,
	metrics *telemetry.Metrics,
	minScore float64,
	topK int,
) *RetrievalService {
	if topK <= 0 {
		topK = 5
	}
	return &RetrievalService{
		embedder:   embedder,
		index:      index,
		embedCache: embedCache,
		queryCache: queryCache,
		chunkCache: chunkCache,
		metrics:    metrics,
		minScore:   minScore,
		topK:       topK,
	}
}

// Retrieve returns up to k unique chunks scoring at or above the
// relevance threshold, best first. k is clamped to the indexed chunk
// count so a small corpus is never over-requested. Index and embedding
// failures propagate; the orchestrator decides the fallback.
func (rs *RetrievalService) Retrieve(ctx context.Context, question string, k int) ([]models.ScoredChunk, error) {
	tracer := otel.Tracer("retrieval")
	ctx, span := tracer.Start(ctx, "retrieval.retrieve")
	defer span.End()

	if k <= 0 {
		k = rs.topK
	}

	if rs.queryCache != nil {
		if cached, ok := rs.queryCache.Get(question); ok {
			span.SetAttributes(attribute.String("retrieval.cache", "lru"))
			rs.metrics.CountCacheHit(ctx, "query_lru")
			return cached, nil
		}
	}
	if cached, ok := rs.chunkCache.GetCachedQueryResult(ctx, question); ok {
		span.SetAttributes(attribute.String("retrieval.cache", "redis"))
		rs.metrics.CountCacheHit(ctx, "query_redis")
		if rs.queryCache != nil {
			rs.queryCache.Put(question, cached)
		}
		return cached, nil
	}

	total, err := rs.index.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("index count failed: %w", err)
	}
	kEff := k
	if total < int64(kEff) {
		kEff = int(total)
	}
	if kEff == 0 {
		return nil, nil
	}

	vector, err := rs.embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("question embedding failed: %w", err)
	}

	candidates, err := rs.index.Query(ctx, vector, kEff*2)
	if err != nil {
		return nil, fmt.Errorf("index query failed: %w", err)
	}
	search.SortByScore(candidates)

	results := make([]models.ScoredChunk, 0, kEff)
	seen := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		if cand.Score < rs.minScore {
			continue
		}
		if _, dup := seen[cand.Text]; dup {
			continue
		}
		seen[cand.Text] = struct{}{}
		results = append(results, cand)
		if len(results) >= kEff {
			break
		}
	}

	span.SetAttributes(
		attribute.Int("retrieval.candidates", len(candidates)),
		attribute.Int("retrieval.results", len(results)),
	)

	if rs.queryCache != nil {
		rs.queryCache.Put(question, results)
	}
	// Shared cache write is fire and forget.
	_ = rs.chunkCache.CacheQueryResult(ctx, question, results)

	return results, nil
}

// embed resolves the question vector through the embedding cache,
// falling back to the embedding model on miss.
func (rs *RetrievalService) embed(ctx context.Context, text string) ([]float32, error) {
	if rs.embedCache != nil {
		if vec, ok := rs.embedCache.Get(text); ok {
			rs.metrics.CountCacheHit(ctx, "embedding")
			return vec, nil
		}
	}
	vec, err := rs.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if rs.embedCache != nil {
		rs.embedCache.Put(text, vec)
	}
	return vec, nil
}
