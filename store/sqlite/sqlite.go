// Package sqlite implements the graph store on SQLite for single-node and
// embedded deployments. Embeddings and metadata are stored as JSON text;
// similarity is ranked in-process with the same cosine metric as the other
// backends.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/prowlhq/kgraph/kg"
	"github.com/prowlhq/kgraph/store"
)

// querier is the query surface shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store implements store.Graph on SQLite.
type Store struct {
	q  querier
	db *sql.DB // nil for a transaction-scoped view
}

var _ store.Graph = (*Store)(nil)

// Open opens (or creates) the database at path. Pass ":memory:" for an
// in-process database.
func Open(path string) (*Store, error) {
	dsn := path + "?_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to open sqlite database: %w", err)
	}
	// An in-memory database exists per connection; keep a single one so every
	// statement sees the same data.
	if strings.Contains(path, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	return &Store{q: db, db: db}, nil
}

// InitSchema creates the tables if they don't exist.
func (s *Store) InitSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS kg_documents (
			id TEXT PRIMARY KEY,
			title TEXT,
			content TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS kg_chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES kg_documents(id) ON DELETE CASCADE,
			content TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			embedding TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_kg_chunks_document ON kg_chunks (document_id, ordinal);
		CREATE TABLE IF NOT EXISTS kg_entities (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES kg_documents(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			type TEXT NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}'
		);
		CREATE INDEX IF NOT EXISTS idx_kg_entities_document ON kg_entities (document_id);
		CREATE TABLE IF NOT EXISTS kg_relations (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES kg_documents(id) ON DELETE CASCADE,
			source_id TEXT NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
			target_id TEXT NOT NULL REFERENCES kg_entities(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			confidence REAL NOT NULL DEFAULT 1.0
		);
		CREATE INDEX IF NOT EXISTS idx_kg_relations_document ON kg_relations (document_id);
	`
	if _, err := s.q.ExecContext(ctx, query); err != nil {
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

// UpsertDocument deletes any previous row for the id (foreign keys cascade to
// chunks, entities and relations) and inserts the new one.
func (s *Store) UpsertDocument(ctx context.Context, doc kg.Document) error {
	metadata, err := metadataJSON(doc.Metadata)
	if err != nil {
		return fmt.Errorf("%w: marshal document metadata: %w", kg.ErrStorage, err)
	}

	if _, err := s.q.ExecContext(ctx, `DELETE FROM kg_documents WHERE id = ?`, doc.ID); err != nil {
		return fmt.Errorf("%w: delete prior document: %w", kg.ErrStorage, err)
	}

	_, err = s.q.ExecContext(ctx, `
		INSERT INTO kg_documents (id, title, content, metadata)
		VALUES (?, ?, ?, ?)
	`, doc.ID, doc.Title, doc.Content, string(metadata))
	if err != nil {
		return fmt.Errorf("%w: insert document: %w", kg.ErrStorage, err)
	}
	return nil
}

// InsertChunks bulk-inserts chunks in ordinal order.
func (s *Store) InsertChunks(ctx context.Context, documentID string, chunks []kg.Chunk) error {
	for _, chunk := range chunks {
		var embedding any
		if chunk.Embedding != nil {
			raw, err := json.Marshal(chunk.Embedding)
			if err != nil {
				return fmt.Errorf("%w: marshal embedding: %w", kg.ErrStorage, err)
			}
			embedding = string(raw)
		}

		_, err := s.q.ExecContext(ctx, `
			INSERT INTO kg_chunks (id, document_id, content, ordinal, embedding)
			VALUES (?, ?, ?, ?, ?)
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

		_, err = s.q.ExecContext(ctx, `
			INSERT INTO kg_entities (id, document_id, text, type, metadata)
			VALUES (?, ?, ?, ?, ?)
		`, entity.ID, documentID, entity.Text, string(entity.Type), string(metadata))
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

		_, err := s.q.ExecContext(ctx, `
			INSERT INTO kg_relations (id, document_id, source_id, target_id, type, confidence)
			VALUES (?, ?, ?, ?, ?, ?)
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
	rows, err := s.q.QueryContext(ctx, `
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
		var embedding string
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Ordinal, &embedding); err != nil {
			return nil, fmt.Errorf("%w: scan chunk: %w", kg.ErrStorage, err)
		}
		if err := json.Unmarshal([]byte(embedding), &chunk.Embedding); err != nil {
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
	rows, err := s.q.QueryContext(ctx, `
		SELECT id, document_id, text, type, metadata
		FROM kg_entities
		WHERE lower(text) LIKE '%' || lower(?) || '%'
		ORDER BY rowid
		LIMIT ?
	`, text, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: query entities: %w", kg.ErrStorage, err)
	}
	defer rows.Close()

	return scanEntities(rows)
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// RelationsForEntities returns relations touching the given entities within
// the given documents, in insertion order.
func (s *Store) RelationsForEntities(ctx context.Context, entityIDs, documentIDs []string) ([]kg.Relation, error) {
	if len(entityIDs) == 0 || len(documentIDs) == 0 {
		return []kg.Relation{}, nil
	}

	entityIn := placeholders(len(entityIDs))
	docIn := placeholders(len(documentIDs))
	query := fmt.Sprintf(`
		SELECT id, document_id, source_id, target_id, type, confidence
		FROM kg_relations
		WHERE (source_id IN (%s) OR target_id IN (%s)) AND document_id IN (%s)
		ORDER BY rowid
	`, entityIn, entityIn, docIn)

	args := make([]any, 0, 2*len(entityIDs)+len(documentIDs))
	for _, id := range entityIDs {
		args = append(args, id)
	}
	for _, id := range entityIDs {
		args = append(args, id)
	}
	for _, id := range documentIDs {
		args = append(args, id)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
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

	var metadata string
	err := s.q.QueryRowContext(ctx, `
		SELECT title, metadata FROM kg_documents WHERE id = ?
	`, documentID).Scan(&graph.Title, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: document %s", kg.ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: query document: %w", kg.ErrStorage, err)
	}
	if err := json.Unmarshal([]byte(metadata), &graph.Metadata); err != nil {
		return nil, fmt.Errorf("%w: unmarshal document metadata: %w", kg.ErrStorage, err)
	}

	entityRows, err := s.q.QueryContext(ctx, `
		SELECT id, document_id, text, type, metadata
		FROM kg_entities WHERE document_id = ? ORDER BY rowid
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: query entities: %w", kg.ErrStorage, err)
	}
	defer entityRows.Close()
	if graph.Entities, err = scanEntities(entityRows); err != nil {
		return nil, err
	}

	relationRows, err := s.q.QueryContext(ctx, `
		SELECT id, document_id, source_id, target_id, type, confidence
		FROM kg_relations WHERE document_id = ? ORDER BY rowid
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("%w: query relations: %w", kg.ErrStorage, err)
	}
	defer relationRows.Close()
	if graph.Relations, err = scanRelations(relationRows); err != nil {
		return nil, err
	}

	err = s.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM kg_chunks WHERE document_id = ?
	`, documentID).Scan(&graph.ChunksCount)
	if err != nil {
		return nil, fmt.Errorf("%w: count chunks: %w", kg.ErrStorage, err)
	}

	return graph, nil
}

// InTx runs fn against a transaction-scoped store. Called on an already
// transaction-scoped store it reuses the enclosing transaction.
func (s *Store) InTx(ctx context.Context, fn func(store.Graph) error) error {
	if s.db == nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %w", kg.ErrStorage, err)
	}

	if err := fn(&Store{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit transaction: %w", kg.ErrStorage, err)
	}
	return nil
}

// Ping reports storage reachability.
func (s *Store) Ping(ctx context.Context) error {
	if s.db == nil {
		_, err := s.q.ExecContext(ctx, `SELECT 1`)
		return err
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: ping: %w", kg.ErrStorage, err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func scanEntities(rows *sql.Rows) ([]kg.Entity, error) {
	entities := make([]kg.Entity, 0)
	for rows.Next() {
		var entity kg.Entity
		var typ, metadata string
		if err := rows.Scan(&entity.ID, &entity.DocumentID, &entity.Text, &typ, &metadata); err != nil {
			return nil, fmt.Errorf("%w: scan entity: %w", kg.ErrStorage, err)
		}
		entity.Type = kg.EntityType(typ)
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &entity.Metadata); err != nil {
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

func scanRelations(rows *sql.Rows) ([]kg.Relation, error) {
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
