// Package store defines the graph persistence contract shared by the
// postgres, sqlite and in-memory backends. All backends rank similarity with
// the same cosine metric so results are comparable across deployments.
package store

import (
	"context"

	"github.com/prowlhq/kgraph/kg"
)

// Graph persists documents, chunks, entities and relations, enforcing that
// every derived row belongs to exactly one document.
type Graph interface {
	// UpsertDocument replaces the document row. If the id already exists its
	// chunks, entities and relations are cascade-deleted first; a partial
	// overwrite never happens.
	UpsertDocument(ctx context.Context, doc kg.Document) error

	// InsertChunks bulk-inserts a document's chunks preserving ordinal order.
	InsertChunks(ctx context.Context, documentID string, chunks []kg.Chunk) error

	// InsertEntitiesAndRelations inserts entities first, then relations.
	// A relation referencing an entity absent from the same batch is dropped;
	// the number of dropped relations is returned so the caller can report
	// the skip.
	InsertEntitiesAndRelations(ctx context.Context, documentID string, entities []kg.Entity, relations []kg.Relation) (skipped int, err error)

	// SimilaritySearch returns up to topK chunks ranked by descending cosine
	// similarity to the query vector, ties broken by document id then chunk
	// ordinal.
	SimilaritySearch(ctx context.Context, queryVector []float32, topK int) ([]kg.ChunkHit, error)

	// MatchEntities returns up to topK entities whose text contains the given
	// substring, case-insensitively, across all documents.
	MatchEntities(ctx context.Context, text string, topK int) ([]kg.Entity, error)

	// RelationsForEntities returns relations whose source or target is among
	// entityIDs, restricted to the given document ids.
	RelationsForEntities(ctx context.Context, entityIDs, documentIDs []string) ([]kg.Relation, error)

	// GetDocumentGraph returns the document's metadata, entities, relations
	// and chunk count, or kg.ErrNotFound when the id is absent.
	GetDocumentGraph(ctx context.Context, documentID string) (*kg.DocumentGraph, error)

	// InTx runs fn against a transaction-scoped view of the store. The
	// enclosing transaction commits only when fn returns nil.
	InTx(ctx context.Context, fn func(Graph) error) error

	// Ping reports storage reachability.
	Ping(ctx context.Context) error

	// Close releases the backend's resources.
	Close() error
}
