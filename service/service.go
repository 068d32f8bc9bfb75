// Package service is the transport-agnostic facade over the ingestion
// pipeline, the query engine and the graph store. It owns input validation
// and the optional document-graph cache, including its invalidation on
// re-ingest.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/prowlhq/kgraph/cache"
	"github.com/prowlhq/kgraph/engine"
	"github.com/prowlhq/kgraph/kg"
	"github.com/prowlhq/kgraph/loader"
	"github.com/prowlhq/kgraph/log"
	"github.com/prowlhq/kgraph/pipeline"
	"github.com/prowlhq/kgraph/store"
)

// GraphCache is the cache surface the service depends on. The Redis cache
// implements it; tests substitute their own.
type GraphCache interface {
	Get(ctx context.Context, documentID string) (*kg.DocumentGraph, error)
	Put(ctx context.Context, graph *kg.DocumentGraph) error
	Invalidate(ctx context.Context, documentID string) error
}

// Service exposes the ingest and retrieval operations.
type Service struct {
	pipeline *pipeline.Pipeline
	engine   *engine.Engine
	graph    store.Graph
	cache    GraphCache // may be nil
}

// New creates the service. cache may be nil when no cache is configured.
func New(p *pipeline.Pipeline, e *engine.Engine, graph store.Graph, cache GraphCache) (*Service, error) {
	if p == nil || e == nil || graph == nil {
		return nil, fmt.Errorf("%w: service requires a pipeline, engine and graph store", kg.ErrConfiguration)
	}
	return &Service{pipeline: p, engine: e, graph: graph, cache: cache}, nil
}

// Ingest normalizes the document content per its format metadata, runs the
// ingestion pipeline and invalidates the document's cached graph view.
func (s *Service) Ingest(ctx context.Context, doc kg.Document) (*kg.IngestResult, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return nil, fmt.Errorf("%w: document id must not be empty", kg.ErrValidation)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: document content must not be empty", kg.ErrValidation)
	}

	doc, err := loader.NormalizeDocument(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: normalize content: %w", kg.ErrValidation, err)
	}

	result, err := s.pipeline.Ingest(ctx, doc)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, doc.ID); err != nil {
			// The store is authoritative; a stale cache entry only costs one
			// extra read after its TTL.
			log.Warn("failed to invalidate cached graph for %s: %v", doc.ID, err)
		}
	}
	return result, nil
}

// Query answers a retrieval query. topK must be positive; callers that want a
// default pick one before calling (the CLI flag does).
func (s *Service) Query(ctx context.Context, query string, topK int, includeRelations bool) (*kg.QueryResult, error) {
	return s.engine.Query(ctx, query, topK, includeRelations)
}

// GetDocumentGraph returns the graph view of one document, serving from the
// cache when possible.
func (s *Service) GetDocumentGraph(ctx context.Context, documentID string) (*kg.DocumentGraph, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, fmt.Errorf("%w: document id must not be empty", kg.ErrValidation)
	}

	if s.cache != nil {
		graph, err := s.cache.Get(ctx, documentID)
		if err == nil {
			return graph, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			log.Warn("graph cache read for %s failed: %v", documentID, err)
		}
	}

	graph, err := s.graph.GetDocumentGraph(ctx, documentID)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, graph); err != nil {
			log.Warn("graph cache write for %s failed: %v", documentID, err)
		}
	}
	return graph, nil
}

// HealthCheck pings the graph store. Cache or provider outages degrade
// behavior but never fail the health check.
func (s *Service) HealthCheck(ctx context.Context) error {
	return s.graph.Ping(ctx)
}
