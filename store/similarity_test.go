package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlhq/kgraph/kg"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, CosineSimilarity([]float32{1, 2, 3}, []float32{1, 2, 3}), 1e-9)
	assert.InDelta(t, -1.0, CosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 0.0, CosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)

	// Length mismatch and zero vectors score 0.
	assert.Zero(t, CosineSimilarity([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, CosineSimilarity([]float32{0, 0}, []float32{1, 2}))
}

func TestRankChunks_DescendingWithTieBreak(t *testing.T) {
	query := []float32{1, 0}
	chunks := []kg.Chunk{
		{ID: "b_chunk_0", DocumentID: "b", Ordinal: 0, Embedding: []float32{1, 1}},
		{ID: "a_chunk_1", DocumentID: "a", Ordinal: 1, Embedding: []float32{1, 0}},
		{ID: "a_chunk_0", DocumentID: "a", Ordinal: 0, Embedding: []float32{2, 0}},
		{ID: "no_embedding", DocumentID: "c", Ordinal: 0},
	}

	hits := RankChunks(chunks, query, 10)
	require.Len(t, hits, 3)

	// a_chunk_0 and a_chunk_1 both have similarity 1.0; the tie breaks on
	// ordinal. The chunk without an embedding is skipped.
	assert.Equal(t, "a_chunk_0", hits[0].Chunk.ID)
	assert.Equal(t, "a_chunk_1", hits[1].Chunk.ID)
	assert.Equal(t, "b_chunk_0", hits[2].Chunk.ID)
	assert.Greater(t, hits[1].Score, hits[2].Score)
}

func TestRankChunks_IdenticalVectorRanksFirst(t *testing.T) {
	target := []float32{0.3, -0.2, 0.9}
	chunks := []kg.Chunk{
		{ID: "x_chunk_0", DocumentID: "x", Ordinal: 0, Embedding: []float32{0.9, 0.1, 0.1}},
		{ID: "x_chunk_1", DocumentID: "x", Ordinal: 1, Embedding: target},
	}

	hits := RankChunks(chunks, target, 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "x_chunk_1", hits[0].Chunk.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestRankChunks_TopKBounds(t *testing.T) {
	chunks := []kg.Chunk{
		{ID: "d_chunk_0", DocumentID: "d", Ordinal: 0, Embedding: []float32{1}},
	}

	assert.Empty(t, RankChunks(chunks, []float32{1}, 0))
	assert.Len(t, RankChunks(chunks, []float32{1}, 5), 1)
}
