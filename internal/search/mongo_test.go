package search

import (
	"math"
	"testing"

	"knowledge-assistant/models"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0},
		{"empty", nil, nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortByScore(t *testing.T) {
	results := []models.ScoredChunk{
		{Chunk: models.Chunk{ChunkID: "low"}, Score: 0.1},
		{Chunk: models.Chunk{ChunkID: "high"}, Score: 0.9},
		{Chunk: models.Chunk{ChunkID: "mid-a"}, Score: 0.5},
		{Chunk: models.Chunk{ChunkID: "mid-b"}, Score: 0.5},
	}
	SortByScore(results)

	want := []string{"high", "mid-a", "mid-b", "low"}
	for i, id := range want {
		if results[i].ChunkID != id {
			t.Fatalf("position %d: got %s, want %s", i, results[i].ChunkID, id)
		}
	}
}
