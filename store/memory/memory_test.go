package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prowlhq/kgraph/kg"
)

func seedDocument(t *testing.T, s *Store, docID string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.UpsertDocument(ctx, kg.Document{ID: docID, Title: docID, Content: "content"}))
	require.NoError(t, s.InsertChunks(ctx, docID, []kg.Chunk{
		{ID: kg.ChunkID(docID, 0), DocumentID: docID, Content: "c0", Ordinal: 0, Embedding: []float32{1, 0}},
		{ID: kg.ChunkID(docID, 1), DocumentID: docID, Content: "c1", Ordinal: 1, Embedding: []float32{0, 1}},
	}))
}

func TestUpsertDocument_ReplacesDerivedRows(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedDocument(t, s, "doc-1")

	_, err := s.InsertEntitiesAndRelations(ctx, "doc-1",
		[]kg.Entity{{ID: "e1", DocumentID: "doc-1", Text: "Alpha", Type: kg.EntityConcept}},
		nil)
	require.NoError(t, err)

	// Re-ingest: same id, new content. All derived rows must vanish.
	require.NoError(t, s.UpsertDocument(ctx, kg.Document{ID: "doc-1", Content: "new"}))

	graph, err := s.GetDocumentGraph(ctx, "doc-1")
	require.NoError(t, err)
	assert.Zero(t, graph.ChunksCount)
	assert.Empty(t, graph.Entities)
	assert.Empty(t, graph.Relations)
}

func TestInsertChunks_ReplacesExistingRows(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedDocument(t, s, "doc-1")

	// A second insert without a fresh UpsertDocument must not duplicate rows.
	require.NoError(t, s.InsertChunks(ctx, "doc-1", []kg.Chunk{
		{ID: kg.ChunkID("doc-1", 0), DocumentID: "doc-1", Content: "c0", Ordinal: 0, Embedding: []float32{1, 0}},
	}))

	graph, err := s.GetDocumentGraph(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 1, graph.ChunksCount)
}

func TestInsertEntitiesAndRelations_SkipsUnknownReferences(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedDocument(t, s, "doc-1")

	entities := []kg.Entity{
		{ID: "e1", DocumentID: "doc-1", Text: "Alpha", Type: kg.EntityConcept},
		{ID: "e2", DocumentID: "doc-1", Text: "Beta", Type: kg.EntityConcept},
	}
	relations := []kg.Relation{
		{ID: "r1", DocumentID: "doc-1", SourceID: "e1", TargetID: "e2", Type: "USES", Confidence: 0.9},
		{ID: "r2", DocumentID: "doc-1", SourceID: "e1", TargetID: "ghost", Type: "USES", Confidence: 0.9},
	}

	skipped, err := s.InsertEntitiesAndRelations(ctx, "doc-1", entities, relations)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)

	graph, err := s.GetDocumentGraph(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, graph.Entities, 2)
	require.Len(t, graph.Relations, 1)
	assert.Equal(t, "r1", graph.Relations[0].ID)
}

func TestInsertEntitiesAndRelations_SelfLoopAllowed(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedDocument(t, s, "doc-1")

	skipped, err := s.InsertEntitiesAndRelations(ctx, "doc-1",
		[]kg.Entity{{ID: "e1", DocumentID: "doc-1", Text: "Ouroboros", Type: kg.EntityConcept}},
		[]kg.Relation{{ID: "r1", DocumentID: "doc-1", SourceID: "e1", TargetID: "e1", Type: "CONTAINS", Confidence: 0.5}})
	require.NoError(t, err)
	assert.Zero(t, skipped)

	graph, err := s.GetDocumentGraph(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, graph.Relations, 1)
}

func TestSimilaritySearch_RanksAcrossDocuments(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedDocument(t, s, "doc-a")
	seedDocument(t, s, "doc-b")

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	// Both ordinal-0 chunks score 1.0; the tie breaks by document id.
	assert.Equal(t, "doc-a_chunk_0", hits[0].Chunk.ID)
	assert.Equal(t, "doc-b_chunk_0", hits[1].Chunk.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestMatchEntities_CaseInsensitiveSubstring(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedDocument(t, s, "doc-1")

	_, err := s.InsertEntitiesAndRelations(ctx, "doc-1", []kg.Entity{
		{ID: "e1", DocumentID: "doc-1", Text: "Machine Learning", Type: kg.EntityConcept},
		{ID: "e2", DocumentID: "doc-1", Text: "machine learning systems", Type: kg.EntityConcept},
		{ID: "e3", DocumentID: "doc-1", Text: "Databases", Type: kg.EntityConcept},
	}, nil)
	require.NoError(t, err)

	matched, err := s.MatchEntities(ctx, "Machine Learning", 10)
	require.NoError(t, err)
	require.Len(t, matched, 2)
	for _, e := range matched {
		assert.Contains(t, []string{"e1", "e2"}, e.ID)
	}

	matched, err = s.MatchEntities(ctx, "machine learning", 1)
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestRelationsForEntities_ScopedToDocuments(t *testing.T) {
	ctx := context.Background()
	s := New()
	seedDocument(t, s, "doc-1")
	seedDocument(t, s, "doc-2")

	for _, docID := range []string{"doc-1", "doc-2"} {
		_, err := s.InsertEntitiesAndRelations(ctx, docID, []kg.Entity{
			{ID: docID + "-e1", DocumentID: docID, Text: "Alpha", Type: kg.EntityConcept},
			{ID: docID + "-e2", DocumentID: docID, Text: "Beta", Type: kg.EntityConcept},
		}, []kg.Relation{
			{ID: docID + "-r1", DocumentID: docID, SourceID: docID + "-e1", TargetID: docID + "-e2", Type: "USES", Confidence: 0.9},
		})
		require.NoError(t, err)
	}

	rels, err := s.RelationsForEntities(ctx, []string{"doc-1-e1", "doc-2-e1"}, []string{"doc-1"})
	require.NoError(t, err)
	require.Len(t, rels, 1)
	assert.Equal(t, "doc-1-r1", rels[0].ID)
}

func TestGetDocumentGraph_NotFound(t *testing.T) {
	s := New()
	_, err := s.GetDocumentGraph(context.Background(), "missing-id")
	assert.ErrorIs(t, err, kg.ErrNotFound)
}
