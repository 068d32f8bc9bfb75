package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlhq/kgraph/cache"
	"github.com/prowlhq/kgraph/embed"
	"github.com/prowlhq/kgraph/engine"
	"github.com/prowlhq/kgraph/extract"
	"github.com/prowlhq/kgraph/kg"
	"github.com/prowlhq/kgraph/loader"
	"github.com/prowlhq/kgraph/pipeline"
	"github.com/prowlhq/kgraph/store/memory"
)

// fakeCache records cache traffic in-process.
type fakeCache struct {
	graphs      map[string]*kg.DocumentGraph
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{graphs: make(map[string]*kg.DocumentGraph)}
}

func (c *fakeCache) Get(_ context.Context, documentID string) (*kg.DocumentGraph, error) {
	if graph, ok := c.graphs[documentID]; ok {
		return graph, nil
	}
	return nil, cache.ErrMiss
}

func (c *fakeCache) Put(_ context.Context, graph *kg.DocumentGraph) error {
	c.graphs[graph.DocumentID] = graph
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, documentID string) error {
	c.invalidated = append(c.invalidated, documentID)
	delete(c.graphs, documentID)
	return nil
}

func newTestService(t *testing.T, graphCache GraphCache) *Service {
	t.Helper()

	chunker, err := kg.NewChunker(300, 50)
	require.NoError(t, err)

	graph := memory.New()
	embedder := embed.NewDegradingProvider(nil, embed.NewHashProvider(embed.DefaultDimension))

	p, err := pipeline.New(pipeline.Options{
		Chunker:   chunker,
		Embedder:  embedder,
		Extractor: extract.NewDegradingProvider(nil, extract.NewPatternProvider(extract.DefaultMaxEntities)),
		Graph:     graph,
	})
	require.NoError(t, err)

	e, err := engine.New(embedder, graph)
	require.NoError(t, err)

	s, err := New(p, e, graph, graphCache)
	require.NoError(t, err)
	return s
}

func TestIngest_Validation(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	_, err := s.Ingest(ctx, kg.Document{ID: "", Content: "text"})
	assert.ErrorIs(t, err, kg.ErrValidation)

	_, err = s.Ingest(ctx, kg.Document{ID: "doc-1", Content: "  "})
	assert.ErrorIs(t, err, kg.ErrValidation)
}

func TestIngest_NormalizesMarkdown(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	result, err := s.Ingest(ctx, kg.Document{
		ID:       "doc-md",
		Content:  "# Kubernetes\n\nKubernetes schedules containers.",
		Metadata: map[string]any{loader.MetadataFormatKey: loader.FormatMarkdown},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.ChunksCreated)

	graph, err := s.GetDocumentGraph(ctx, "doc-md")
	require.NoError(t, err)
	for _, entity := range graph.Entities {
		assert.NotContains(t, entity.Text, "#")
	}
}

func TestIngest_InvalidatesCache(t *testing.T) {
	ctx := context.Background()
	c := newFakeCache()
	s := newTestService(t, c)

	_, err := s.Ingest(ctx, kg.Document{ID: "doc-1", Content: "Machine Learning is everywhere."})
	require.NoError(t, err)

	// Prime the cache, then re-ingest. The stale view must be dropped.
	_, err = s.GetDocumentGraph(ctx, "doc-1")
	require.NoError(t, err)
	assert.Contains(t, c.graphs, "doc-1")

	_, err = s.Ingest(ctx, kg.Document{ID: "doc-1", Content: "Replaced content."})
	require.NoError(t, err)
	assert.NotContains(t, c.graphs, "doc-1")
	assert.Equal(t, []string{"doc-1", "doc-1"}, c.invalidated)
}

func TestGetDocumentGraph_ServesFromCache(t *testing.T) {
	ctx := context.Background()
	c := newFakeCache()
	s := newTestService(t, c)

	_, err := s.Ingest(ctx, kg.Document{ID: "doc-1", Content: "Machine Learning is everywhere."})
	require.NoError(t, err)

	_, err = s.GetDocumentGraph(ctx, "doc-1")
	require.NoError(t, err)

	// Swap the cached copy to prove the second read comes from the cache.
	c.graphs["doc-1"] = &kg.DocumentGraph{DocumentID: "doc-1", Title: "cached"}

	second, err := s.GetDocumentGraph(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "cached", second.Title)
}

func TestGetDocumentGraph_NotFound(t *testing.T) {
	s := newTestService(t, nil)

	_, err := s.GetDocumentGraph(context.Background(), "missing-id")
	assert.ErrorIs(t, err, kg.ErrNotFound)
}

func TestQuery_RejectsNonPositiveTopK(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t, nil)

	_, err := s.Ingest(ctx, kg.Document{ID: "doc-1", Content: "Machine Learning is everywhere."})
	require.NoError(t, err)

	_, err = s.Query(ctx, "anything", 0, false)
	assert.ErrorIs(t, err, kg.ErrValidation)

	_, err = s.Query(ctx, "anything", -3, false)
	assert.ErrorIs(t, err, kg.ErrValidation)

	result, err := s.Query(ctx, "Machine Learning", 5, false)
	require.NoError(t, err)
	assert.NotEmpty(t, result.Chunks)
}

func TestHealthCheck(t *testing.T) {
	s := newTestService(t, nil)
	assert.NoError(t, s.HealthCheck(context.Background()))
}
