package store

import (
	"math"
	"sort"

	"github.com/prowlhq/kgraph/kg"
)

// CosineSimilarity calculates cosine similarity between two vectors. Length
// mismatch or a zero vector yields 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct float64
	var normA float64
	var normB float64

	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// RankChunks scores candidate chunks against the query vector and returns the
// topK best, descending by similarity, ties broken by document id then chunk
// ordinal. Chunks without an embedding are skipped.
func RankChunks(chunks []kg.Chunk, queryVector []float32, topK int) []kg.ChunkHit {
	if topK <= 0 {
		return []kg.ChunkHit{}
	}

	hits := make([]kg.ChunkHit, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk.Embedding == nil {
			continue
		}
		hits = append(hits, kg.ChunkHit{
			Chunk: chunk,
			Score: CosineSimilarity(queryVector, chunk.Embedding),
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Chunk.DocumentID != hits[j].Chunk.DocumentID {
			return hits[i].Chunk.DocumentID < hits[j].Chunk.DocumentID
		}
		return hits[i].Chunk.Ordinal < hits[j].Chunk.Ordinal
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK]
}

// BatchEntityIDs returns the set of entity ids present in a batch, used to
// validate relation references before insert.
func BatchEntityIDs(entities []kg.Entity) map[string]bool {
	ids := make(map[string]bool, len(entities))
	for _, e := range entities {
		ids[e.ID] = true
	}
	return ids
}
