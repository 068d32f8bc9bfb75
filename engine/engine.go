// Package engine answers retrieval queries by combining chunk similarity
// search with entity matching over the stored graph.
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/prowlhq/kgraph/kg"
	"github.com/prowlhq/kgraph/log"
	"github.com/prowlhq/kgraph/store"
)

// DefaultTopK bounds query results when the caller does not choose a limit.
const DefaultTopK = 5

// Embedder turns the query text into a vector. Degradation is acceptable for
// queries: the fallback vector still ranks deterministically.
type Embedder interface {
	Embed(ctx context.Context, text string) (vec []float32, degraded bool, err error)
	Dimension() int
}

// Engine executes retrieval queries against a graph store.
type Engine struct {
	embedder Embedder
	graph    store.Graph
}

// New creates a query engine.
func New(embedder Embedder, graph store.Graph) (*Engine, error) {
	if embedder == nil || graph == nil {
		return nil, fmt.Errorf("%w: engine requires an embedder and a graph store", kg.ErrConfiguration)
	}
	return &Engine{embedder: embedder, graph: graph}, nil
}

// Query embeds the question, ranks chunks by cosine similarity and matches
// entities against the raw query text. With includeRelations set, relations
// are attached only when their document appears among the returned chunks.
func (e *Engine) Query(ctx context.Context, query string, topK int, includeRelations bool) (*kg.QueryResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query must not be empty", kg.ErrValidation)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", kg.ErrValidation, topK)
	}

	vec, degraded, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if degraded {
		log.Warn("query embedding degraded to the deterministic fallback")
	}

	chunks, err := e.graph.SimilaritySearch(ctx, vec, topK)
	if err != nil {
		return nil, err
	}

	entities, err := e.graph.MatchEntities(ctx, query, topK)
	if err != nil {
		return nil, err
	}

	result := &kg.QueryResult{
		Query:     query,
		Chunks:    chunks,
		Entities:  entities,
		Relations: []kg.Relation{},
	}

	if includeRelations && len(entities) > 0 && len(chunks) > 0 {
		entityIDs := make([]string, len(entities))
		for i, entity := range entities {
			entityIDs[i] = entity.ID
		}

		seen := make(map[string]bool)
		var documentIDs []string
		for _, hit := range chunks {
			if !seen[hit.Chunk.DocumentID] {
				seen[hit.Chunk.DocumentID] = true
				documentIDs = append(documentIDs, hit.Chunk.DocumentID)
			}
		}

		relations, err := e.graph.RelationsForEntities(ctx, entityIDs, documentIDs)
		if err != nil {
			return nil, err
		}
		result.Relations = relations
	}

	return result, nil
}
