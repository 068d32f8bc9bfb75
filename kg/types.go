package kg

import (
	"fmt"
	"time"
)

// EntityType classifies an extracted entity. Types outside the known set
// normalize to EntityOther.
type EntityType string

const (
	EntityPerson       EntityType = "PERSON"
	EntityOrganization EntityType = "ORGANIZATION"
	EntityConcept      EntityType = "CONCEPT"
	EntityTechnology   EntityType = "TECHNOLOGY"
	EntityOther        EntityType = "OTHER"
)

// NormalizeEntityType maps arbitrary provider output onto the known entity
// types, defaulting to EntityOther.
func NormalizeEntityType(s string) EntityType {
	switch EntityType(s) {
	case EntityPerson, EntityOrganization, EntityConcept, EntityTechnology, EntityOther:
		return EntityType(s)
	default:
		return EntityOther
	}
}

// Document is a unit of ingested text. The ID is caller supplied and unique;
// re-ingesting the same ID replaces all derived rows.
type Document struct {
	ID        string
	Title     string
	Content   string
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chunk is a bounded, overlapping slice of a document's text. It is the unit
// of embedding and extraction and is exclusively owned by its document.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Ordinal    int
	// Embedding is nil when both the remote provider and the fallback failed
	// to produce a vector. The fallback never fails, so in practice this is
	// only nil for rows written by older versions.
	Embedding []float32
}

// ChunkID derives the stable chunk identifier from the owning document id and
// the chunk's ordinal position.
func ChunkID(documentID string, ordinal int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, ordinal)
}

// Entity is a named thing recognized within a single document. Entities are
// scoped to the document that produced them; there is no cross-document merge.
type Entity struct {
	ID         string
	DocumentID string
	Text       string
	Type       EntityType
	Metadata   map[string]any
}

// Relation is a directed, typed, confidence-scored edge between two entities
// of the same document. Confidence is always within [0,1].
type Relation struct {
	ID         string
	DocumentID string
	SourceID   string
	TargetID   string
	Type       string
	Confidence float64
}

// ClampConfidence forces a provider-reported confidence into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// DegradedStages records which pipeline stages fell back to their
// deterministic local strategy during a single ingest call.
type DegradedStages struct {
	Embedding  bool `json:"embedding"`
	Extraction bool `json:"extraction"`
}

// IngestResult summarizes one ingest call.
type IngestResult struct {
	DocumentID       string         `json:"document_id"`
	ChunksCreated    int            `json:"chunks_created"`
	EntitiesCreated  int            `json:"entities_created"`
	RelationsCreated int            `json:"relations_created"`
	RelationsSkipped int            `json:"relations_skipped"`
	DurationSeconds  float64        `json:"duration_seconds"`
	Degraded         DegradedStages `json:"degraded_flags"`
	Status           string         `json:"status"`
}

// ChunkHit is a similarity-search result: a chunk plus its score.
type ChunkHit struct {
	Chunk Chunk
	Score float64
}

// QueryResult is the merged answer to a retrieval query.
type QueryResult struct {
	Query     string
	Chunks    []ChunkHit
	Entities  []Entity
	Relations []Relation
}

// DocumentGraph is the full graph view of one document.
type DocumentGraph struct {
	DocumentID  string
	Title       string
	Metadata    map[string]any
	Entities    []Entity
	Relations   []Relation
	ChunksCount int
}
