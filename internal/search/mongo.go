// Package search stores chunk vectors in MongoDB and answers nearest
// neighbour queries, either through an Atlas $vectorSearch index or a
// brute-force cosine scan for deployments without one.
package search

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"knowledge-assistant/models"
)

type MongoIndex struct {
	collection    *mongo.Collection
	indexName     string
	vectorEnabled bool
}

func NewMongoIndex(db *mongo.Database, indexName string, vectorEnabled bool) *MongoIndex {
	return &MongoIndex{
		collection:    db.Collection("chunks"),
		indexName:     indexName,
		vectorEnabled: vectorEnabled,
	}
}

// Upsert writes chunks keyed by chunk_id so re-ingesting a source is
// idempotent. Unordered bulk write; one bad document does not sink the
// batch.
func (idx *MongoIndex) Upsert(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := make([]mongo.WriteModel, 0, len(chunks))
	now := time.Now()
	for _, ch := range chunks {
		doc := bson.M{
			"chunk_id":   ch.ChunkID,
			"source":     ch.Source,
			"text":       ch.Text,
			"metadata":   ch.Metadata,
			"vector":     ch.Vector,
			"indexed_at": now,
		}
		batch = append(batch, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"chunk_id": ch.ChunkID}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}

	_, err := idx.collection.BulkWrite(ctx, batch, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to upsert %d chunks: %w", len(chunks), err)
	}
	return nil
}

// Query returns up to limit chunks scored by cosine similarity against
// vector, best first. Scores are in [-1, 1]; the caller applies its own
// relevance threshold.
func (idx *MongoIndex) Query(ctx context.Context, vector []float32, limit int) ([]models.ScoredChunk, error) {
	tracer := otel.Tracer("search")
	ctx, span := tracer.Start(ctx, "search.query")
	defer span.End()
	span.SetAttributes(
		attribute.Int("search.limit", limit),
		attribute.Bool("search.vector_index", idx.vectorEnabled),
	)

	if limit <= 0 {
		return nil, nil
	}
	if idx.vectorEnabled {
		return idx.vectorSearch(ctx, vector, limit)
	}
	return idx.scan(ctx, vector, limit)
}

func (idx *MongoIndex) vectorSearch(ctx context.Context, vector []float32, limit int) ([]models.ScoredChunk, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.M{
			"index":         idx.indexName,
			"path":          "vector",
			"queryVector":   vector,
			"numCandidates": limit * 20,
			"limit":         limit,
		}}},
		{{Key: "$project", Value: bson.M{
			"chunk_id": 1,
			"source":   1,
			"text":     1,
			"metadata": 1,
			"score":    bson.M{"$meta": "vectorSearchScore"},
		}}},
	}

	cursor, err := idx.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.ScoredChunk
	for cursor.Next(ctx) {
		var row struct {
			ChunkID  string            `bson:"chunk_id"`
			Source   string            `bson:"source"`
			Text     string            `bson:"text"`
			Metadata map[string]string `bson:"metadata"`
			Score    float64           `bson:"score"`
		}
		if err := cursor.Decode(&row); err != nil {
			continue
		}
		// Atlas reports (1+cos)/2 in [0,1]; map back to cosine so the
		// two query paths score on the same scale.
		results = append(results, models.ScoredChunk{
			Chunk: models.Chunk{
				ChunkID:  row.ChunkID,
				Source:   row.Source,
				Text:     row.Text,
				Metadata: row.Metadata,
			},
			Score: row.Score*2 - 1,
		})
	}
	return results, cursor.Err()
}

// scan is the index-free path: pull every stored vector and rank in
// memory. Fine for corpora in the tens of thousands of chunks.
func (idx *MongoIndex) scan(ctx context.Context, vector []float32, limit int) ([]models.ScoredChunk, error) {
	cursor, err := idx.collection.Find(ctx, bson.M{"vector": bson.M{"$exists": true}})
	if err != nil {
		return nil, fmt.Errorf("chunk scan failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.ScoredChunk
	for cursor.Next(ctx) {
		var ch models.Chunk
		if err := cursor.Decode(&ch); err != nil {
			continue
		}
		results = append(results, models.ScoredChunk{
			Chunk: ch,
			Score: CosineSimilarity(vector, ch.Vector),
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}

	SortByScore(results)
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count reports how many chunks are indexed.
func (idx *MongoIndex) Count(ctx context.Context) (int64, error) {
	return idx.collection.CountDocuments(ctx, bson.M{})
}

// DeleteBySource removes every chunk that came from source, used before
// re-ingesting a changed file.
func (idx *MongoIndex) DeleteBySource(ctx context.Context, source string) (int64, error) {
	res, err := idx.collection.DeleteMany(ctx, bson.M{"source": source})
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks for %s: %w", source, err)
	}
	return res.DeletedCount, nil
}

// CosineSimilarity between two vectors, 0 when either has zero
// magnitude or the dimensions differ.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SortByScore orders results best first, stable for equal scores.
func SortByScore(results []models.ScoredChunk) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
