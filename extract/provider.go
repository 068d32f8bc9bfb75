// Package extract turns chunk text into entities and relations. A remote
// provider prompts an LLM for a structured answer; a deterministic pattern
// provider is always available as a fallback. The DegradingProvider combines
// the two so a remote outage degrades per chunk instead of failing the ingest.
package extract

import (
	"context"

	"github.com/prowlhq/kgraph/kg"
)

// DefaultMaxEntities bounds how many entities one chunk may contribute.
const DefaultMaxEntities = 10

// Entity is a pre-persistence entity candidate. Identifiers are assigned
// later, at persist time.
type Entity struct {
	Text     string
	Type     kg.EntityType
	Metadata map[string]any
}

// Relation is a pre-persistence relation candidate referencing entities of
// the same Result by their text.
type Relation struct {
	Source     string
	Target     string
	Type       string
	Confidence float64
}

// Result holds one extraction call's output: entities deduplicated by
// (normalized text, type) and relations referencing only those entities.
type Result struct {
	Entities  []Entity
	Relations []Relation
}

// Provider extracts entities and relations from a chunk of text.
type Provider interface {
	Extract(ctx context.Context, text string) (Result, error)
}
