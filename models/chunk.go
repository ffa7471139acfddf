package models

import "fmt"

// Chunk is a bounded-length slice of a document unit, the unit of
// indexing and retrieval. ChunkID is unique within an index generation:
// "{source}_{unit}_chunk{index}".
type Chunk struct {
	ChunkID  string            `json:"chunk_id" bson:"chunk_id"`
	Source   string            `json:"source" bson:"source"`
	Text     string            `json:"text" bson:"text"`
	Metadata map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Vector   []float32         `json:"vector,omitempty" bson:"vector,omitempty"`
}

// ChunkID builds the stable chunk identifier for the i-th chunk of a unit.
func ChunkID(unitID string, index int) string {
	return fmt.Sprintf("%s_chunk%d", unitID, index)
}

// ScoredChunk pairs a chunk with its similarity score for one query.
// Score is cosine similarity: higher means more similar.
type ScoredChunk struct {
	Chunk `json:"chunk" bson:",inline"`
	Score float64 `json:"score" bson:"score"`
}

// WebResult is one hit returned by the web-search fallback provider.
type WebResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}
