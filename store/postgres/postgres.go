// Package postgres implements the graph store on PostgreSQL using pgx.
// Vectors and metadata are stored as JSONB; similarity is computed in-process
// over the candidate rows so the ranking matches every other backend.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/prowlhq/kgraph/kg"
	"github.com/prowlhq/kgraph/store"
)

// querier is the query surface shared by a pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DBPool defines the interface for a database connection pool
type DBPool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Store implements store.Graph on PostgreSQL.
type Store struct {
	q    querier
	pool DBPool // nil for a transaction-scoped view
}

var _ store.Graph = (*Store)(nil)

// Options configuration for the Postgres connection.
type Options struct {
	ConnString string
}

// New creates a Postgres graph store.
func New(ctx context.Context, opts Options) (*Store, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &Store{q: pool, pool: pool}, nil
}

// NewWithPool creates a store with an existing pool. Useful for testing with
// mocks.
func NewWithPool(pool DBPool) *Store {
	return &Store{q: pool, pool: pool}
}

// InitSchema creates the tables if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kg_documents (
			id TEXT PRIMARY KEY,
			title TEXT,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS kg_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES kg_documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			embedding JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS idx_kg_chunks_document ON kg_chunks (document_id, ordinal);
		CREATE TABLE IF NOT EXISTS kg_entities (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			document_id TEXT NOT NULL REFERENCES kg_documents(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			type TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_kg_entities_document ON kg_entities (document_id);
		CREATE INDEX IF NOT EXISTS idx_kg_entities_text ON kg_entities (lower(text));
		CREATE TABLE IF NOT EXISTS kg_relations (
			id TEXT PRIMARY KEY,
			seq BIGSERIAL,
			document_id TEXT NOT NULL REFERENCES kg_documents(id) ON DELETE CASCADE,
			source_id TEXT NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 1.0
		);
		CREATE INDEX IF NOT EXISTS idx_kg_relations_document ON kg_relations (document_id);
		CREATE INDEX IF NOT EXISTS idx_kg_relations_endpoints ON kg_relations (source_id, target_id);
	`
	if _, err := s.q.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func metadataJSON(m map[string]any) ([]byte, error) {
	if m == nil {
		m = map[string]any{}
	}
	return json.Marshal(m)
}

// UpsertDocument deletes any previous row for the id (the foreign keys
// cascade to chunks, entities and relations) and inserts the new one.
func (s *Store) UpsertDocument(ctx context.Context, doc kg.Document) error {
	metadata, err := metadataJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal document metadata: %w", kg.ErrStorage, err)
	}

	if _, err := s.q.Exec(ctx, `DELETE FROM kg_documents WHERE id = $1`, doc.ID); err != nil {
		return fmt.Errorf("%w: delete prior document: %w", kg.ErrStorage, err)
	}

	_, err = s.q.Exec(ctx, `
		INSERT INTO kg_documents (id, title, content, metadata)
		VALUES ($1, $2, $3, $4)
	`, doc.ID, doc.Title, doc.Content, metadata)
	if err != nil {
		return fmt.Errorf("%w: insert document: %w", kg.ErrStorage, err)
	}
	return nil
}

// InsertChunks bulk-inserts chunks in ordinal order.
func (s *Store) InsertChunks(ctx context.Context, documentID string, chunks []kg.Chunk) error {
	for _, chunk := range chunks {
		var embedding []byte
		if chunk.Embedding != nil {
			var err error
			embedding, err = json.Marshal(chunk.Embedding)
			if err != nil {
				return fmt.Errorf("%w: marshal embedding: %w", kg.ErrStorage, err)
			}
		}

		_, err := s.q.Exec(ctx, `
			INSERT INTO kg_chunks (id, document_id, content, ordinal, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`, chunk.ID, documentID, chunk.Content, chunk.Ordinal, embedding)
		if err != nil {
			return fmt.Errorf("%w: insert chunk %s: %w", kg.ErrStorage, chunk.ID, err)
		}
	}
	return nil
}

// InsertEntitiesAndRelations inserts entities first, then the relations that
// reference entities of the same batch. Relations referencing an unknown
// entity are skipped and counted, not inserted.
func (s *Store) InsertEntitiesAndRelations(ctx context.Context, documentID string, entities []kg.Entity, relations []kg.Relation) (int, error) {
	for _, entity := range entities {
		metadata, err := metadataJSON(entity.Metadata)
		if err != nil {
			return 0, fmt.Errorf("%w: marshal entity metadata: %w", kg.ErrStorage, err)
		}

		_, err = s.q.Exec(ctx, `
			INSERT INTO kg_entities (id, document_id, text, type, metadata)
			VALUES ($1, $2, $3, $4, $5)
		`, entity.ID, documentID, entity.Text, string(entity.Type), metadata)
		if err != nil {
			return 0, fmt.Errorf("%w: insert entity %s: %w", kg.ErrStorage, entity.ID, err)
		}
	}

	batch := store.BatchEntityIDs(entities)
	skipped := 0
	for _, rel := range relations {
		if !batch[rel.SourceID] || !batch[rel.TargetID] {
			skipped++
			continue
		}

		_, err := s.q.Exec(ctx, `
			INSERT INTO kg_relations (id, document_id, source_id, target_id, type, confidence)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, rel.ID, documentID, rel.SourceID, rel.TargetID, rel.Type, rel.Confidence)
		if err != nil {
			return skipped, fmt.Errorf("%w: insert relation %s: %w", kg.ErrStorage, rel.ID, err)
		}
	}
	return skipped, nil
}

// SimilaritySearch loads the embedded chunks and ranks them in-process by
// cosine similarity.
func (s *Store) SimilaritySearch(ctx context.Context, queryVector []float32, topK int) ([]kg.ChunkHit, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, document_id, content, ordinal, embedding
		FROM kg_chunks
		WHERE embedding IS NOT NULL
		ORDER BY document_id, ordinal
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: query chunks: %w", kg.ErrStorage, err)
	}
	defer rows.Close()

	var candidates []kg.Chunk
	for rows.Next() {
		var chunk kg.Chunk
		var embedding []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Ordinal, &embedding); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %w", kg.ErrStorage, err)
		}
		if err := json.Unmarshal(embedding, &chunk.Embedding); err != nil {
			return nil, fmt.Errorf("%w: unmarshal embedding for %s: %w", kg.ErrStorage, chunk.ID, err)
		}
		candidates = append(candidates, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate chunks: %w", kg.ErrStorage, err)
	}

	return store.RankChunks(candidates, queryVector, topK), nil
}

// MatchEntities performs a case-insensitive substring match over entity text.
func (s *Store) MatchEntities(ctx context.Context, text string, topK int) ([]kg.Entity, error) {
	rows, err := s.q.Query(ctx, `
		SELECT id, document_id, text, type, metadata
		FROM kg_entities
		WHERE text ILIKE '%' || $1 || '%'
		ORDER BY seq
		LIMIT $2
	`, text, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: query entities: %w", kg.ErrStorage, err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

// RelationsForEntities returns relations touching the given entities within
// the given documents, in insertion order.
func (s *Store) RelationsForEntities(ctx context.Context, entityIDs, documentIDs []string) ([]kg.Relation, error) {
	if len(entityIDs) == 0 || len(documentIDs) == 0 {
		return []kg.Relation{}, nil
	}

	rows, err := s.q.Query(ctx, `
		SELECT id, document_id, source_id, target_id, type, confidence
		FROM kg_relations
		WHERE (source_id = ANY($1) OR target_id = ANY($1)) AND document_id = ANY($2)
		ORDER BY seq
	`, entityIDs, documentIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: query relations: %w", kg.ErrStorage, err)
	}
	defer rows.Close()

	return scanRelations(rows)
}

// GetDocumentGraph returns the document's metadata with all its entities and
// relations plus the chunk count.
func (s *Store) GetDocumentGraph(ctx context.Context, documentID string) (*kg.DocumentGraph, error) {
	graph := &kg.DocumentGraph{DocumentID: documentID}

	var metadata []byte
	err := s.q.QueryRow(ctx, `
		SELECT title, metadata FROM kg_documents WHERE id = $1
	`, documentID).Scan(&graph.Title, &metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", kg.ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query document: %w", kg.ErrStorage, err)
	}
	if err := json.Unmarshal(metadata, &graph.Metadata); err != nil {
		return nil, fmt.Errorf("%w: unmarshal document metadata: %w", kg.ErrStorage, err)
	}

	entityRows, err := s.q.Query(ctx, `
		SELECT id, document_id, text, type, metadata
		FROM kg_entities WHERE document_id = $1 ORDER BY seq
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: query entities: %w", kg.ErrStorage, err)
	}
	defer entityRows.Close()
	if graph.Entities, err = scanEntities(entityRows); err != nil {
		return nil, err
	}

	relationRows, err := s.q.Query(ctx, `
		SELECT id, document_id, source_id, target_id, type, confidence
		FROM kg_relations WHERE document_id = $1 ORDER BY seq
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: query relations: %w", kg.ErrStorage, err)
	}
	defer relationRows.Close()
	if graph.Relations, err = scanRelations(relationRows); err != nil {
		return nil, err
	}

	err = s.q.QueryRow(ctx, `
		SELECT COUNT(*) FROM kg_chunks WHERE document_id = $1
	`, documentID).Scan(&graph.ChunksCount)
	if err != nil {
		return nil, fmt.Errorf("%w: count chunks: %w", kg.ErrStorage, err)
	}

	return graph, nil
}

// InTx runs fn against a transaction-scoped store. Called on an already
// transaction-scoped store it reuses the enclosing transaction.
func (s *Store) InTx(ctx context.Context, fn func(store.Graph) error) error {
	if s.pool == nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", kg.ErrStorage, err)
	}

	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit transaction: %w", kg.ErrStorage, err)
	}
	return nil
}

// Ping reports storage reachability.
func (s *Store) Ping(ctx context.Context) error {
	if s.pool == nil {
		_, err := s.q.Exec(ctx, `SELECT 1`)
		return err
	}
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", kg.ErrStorage, err)
	}
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func scanEntities(rows pgx.Rows) ([]kg.Entity, error) {
	entities := make([]kg.Entity, 0)
	for rows.Next() {
		var entity kg.Entity
		var typ string
		var metadata []byte
		if err := rows.Scan(&entity.ID, &entity.DocumentID, &entity.Text, &typ, &metadata); err != nil {
			return nil, fmt.Errorf("%w: scan entity: %w", kg.ErrStorage, err)
		}
		entity.Type = kg.EntityType(typ)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &entity.Metadata); err != nil {
				return nil, fmt.Errorf("%w: unmarshal entity metadata: %w", kg.ErrStorage, err)
			}
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate entities: %w", kg.ErrStorage, err)
	}
	return entities, nil
}

func scanRelations(rows pgx.Rows) ([]kg.Relation, error) {
	relations := make([]kg.Relation, 0)
	for rows.Next() {
		var rel kg.Relation
		if err := rows.Scan(&rel.ID, &rel.DocumentID, &rel.SourceID, &rel.TargetID, &rel.Type, &rel.Confidence); err != nil {
			return nil, fmt.Errorf("%w: scan relation: %w", kg.ErrStorage, err)
		}
		relations = append(relations, rel)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate relations: %w", kg.ErrStorage, err)
	}
	return relations, nil
}
