package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"knowledge-assistant/internal/logger"
	"knowledge-assistant/models"
)

// ChunkCacheService shares retrieval results across process instances
// through Redis. Strictly best effort: any Redis failure reads as a
// cache miss and the caller re-queries the index.
type ChunkCacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewChunkCacheService(client *redis.Client, ttl time.Duration) *ChunkCacheService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ChunkCacheService{client: client, ttl: ttl}
}

func queryKey(question string) string {
	sum := sha256.Sum256([]byte(question))
	return "query:" + hex.EncodeToString(sum[:16])
}

// CacheQueryResult stores the scored chunks for a question.
func (cc *ChunkCacheService) CacheQueryResult(ctx context.Context, question string, results []models.ScoredChunk) error {
	if cc == nil || cc.client == nil {
		return nil
	}
	data, err := json.Marshal(results)
	if err != nil {
		return err
	}
	if err := cc.client.Set(ctx, queryKey(question), data, cc.ttl).Err(); err != nil {
		logger.Debug("Redis query cache write failed", "error", err.Error())
		return err
	}
	return nil
}

// GetCachedQueryResult retrieves previously cached chunks for a
// question; false on miss or any Redis error.
func (cc *ChunkCacheService) GetCachedQueryResult(ctx context.Context, question string) ([]models.ScoredChunk, bool) {
	if cc == nil || cc.client == nil {
		return nil, false
	}
	data, err := cc.client.Get(ctx, queryKey(question)).Bytes()
	if err != nil {
		if err != redis.Nil {
			logger.Debug("Redis query cache read failed", "error", err.Error())
		}
		return nil, false
	}
	var results []models.ScoredChunk
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}

// Invalidate drops every cached query result. Called after ingestion
// changes the index, since stale results would pin the old corpus.
func (cc *ChunkCacheService) Invalidate(ctx context.Context) error {
	if cc == nil || cc.client == nil {
		return nil
	}
	iter := cc.client.Scan(ctx, 0, "query:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return cc.client.Del(ctx, keys...).Err()
}
