// Package memory implements the store.Graph contract with in-process maps.
// It backs tests and zero-dependency local runs; it offers no transaction
// isolation, so InTx applies operations immediately.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/prowlhq/kgraph/kg"
	"github.com/prowlhq/kgraph/store"
)

// Store is an in-memory graph store.
type Store struct {
	mu        sync.RWMutex
	documents map[string]kg.Document
	chunks    map[string][]kg.Chunk // by document id, ordinal order
	entities  []kg.Entity           // insertion order
	relations []kg.Relation         // insertion order
}

var _ store.Graph = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		documents: make(map[string]kg.Document),
		chunks:    make(map[string][]kg.Chunk),
	}
}

// UpsertDocument replaces the document and drops all its derived rows.
func (s *Store) UpsertDocument(_ context.Context, doc kg.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deleteDerived(doc.ID)
	s.documents[doc.ID] = doc
	return nil
}

func (s *Store) deleteDerived(documentID string) {
	delete(s.chunks, documentID)

	kept := s.entities[:0]
	for _, e := range s.entities {
		if e.DocumentID != documentID {
			kept = append(kept, e)
		}
	}
	s.entities = kept

	keptRel := s.relations[:0]
	for _, r := range s.relations {
		if r.DocumentID != documentID {
			keptRel = append(keptRel, r)
		}
	}
	s.relations = keptRel
}

// InsertChunks stores a document's chunks in ordinal order.
func (s *Store) InsertChunks(_ context.Context, documentID string, chunks []kg.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return fmt.Errorf("%w: document %s has no row", kg.ErrStorage, documentID)
	}

	ordered := make([]kg.Chunk, len(chunks))
	copy(ordered, chunks)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })
	s.chunks[documentID] = ordered
	return nil
}

// InsertEntitiesAndRelations stores entities, then relations that reference
// only entities of the same batch. Out-of-batch relations are skipped and
// counted.
func (s *Store) InsertEntitiesAndRelations(_ context.Context, documentID string, entities []kg.Entity, relations []kg.Relation) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[documentID]; !ok {
		return 0, fmt.Errorf("%w: document %s has no row", kg.ErrStorage, documentID)
	}

	s.entities = append(s.entities, entities...)

	batch := store.BatchEntityIDs(entities)
	skipped := 0
	for _, r := range relations {
		if !batch[r.SourceID] || !batch[r.TargetID] {
			skipped++
			continue
		}
		s.relations = append(s.relations, r)
	}
	return skipped, nil
}

// SimilaritySearch ranks all stored chunks against the query vector.
func (s *Store) SimilaritySearch(_ context.Context, queryVector []float32, topK int) ([]kg.ChunkHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docIDs := make([]string, 0, len(s.chunks))
	for id := range s.chunks {
		docIDs = append(docIDs, id)
	}
	sort.Strings(docIDs)

	var candidates []kg.Chunk
	for _, id := range docIDs {
		candidates = append(candidates, s.chunks[id]...)
	}

	return store.RankChunks(candidates, queryVector, topK), nil
}

// MatchEntities returns entities whose text contains the substring,
// case-insensitively, in insertion order.
func (s *Store) MatchEntities(_ context.Context, text string, topK int) ([]kg.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(text)
	matched := make([]kg.Entity, 0)
	for _, e := range s.entities {
		if len(matched) >= topK {
			break
		}
		if strings.Contains(strings.ToLower(e.Text), needle) {
			matched = append(matched, e)
		}
	}
	return matched, nil
}

// RelationsForEntities returns relations touching the given entities within
// the given documents.
func (s *Store) RelationsForEntities(_ context.Context, entityIDs, documentIDs []string) ([]kg.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wantEntity := make(map[string]bool, len(entityIDs))
	for _, id := range entityIDs {
		wantEntity[id] = true
	}
	wantDoc := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		wantDoc[id] = true
	}

	matched := make([]kg.Relation, 0)
	for _, r := range s.relations {
		if !wantDoc[r.DocumentID] {
			continue
		}
		if wantEntity[r.SourceID] || wantEntity[r.TargetID] {
			matched = append(matched, r)
		}
	}
	return matched, nil
}

// GetDocumentGraph returns the full graph view of one document.
func (s *Store) GetDocumentGraph(_ context.Context, documentID string) (*kg.DocumentGraph, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return nil, fmt.Errorf("%w: document %s", kg.ErrNotFound, documentID)
	}

	graph := &kg.DocumentGraph{
		DocumentID:  doc.ID,
		Title:       doc.Title,
		Metadata:    doc.Metadata,
		Entities:    make([]kg.Entity, 0),
		Relations:   make([]kg.Relation, 0),
		ChunksCount: len(s.chunks[documentID]),
	}
	for _, e := range s.entities {
		if e.DocumentID == documentID {
			graph.Entities = append(graph.Entities, e)
		}
	}
	for _, r := range s.relations {
		if r.DocumentID == documentID {
			graph.Relations = append(graph.Relations, r)
		}
	}
	return graph, nil
}

// InTx runs fn against the store itself. The memory backend has no
// transaction isolation.
func (s *Store) InTx(_ context.Context, fn func(store.Graph) error) error {
	return fn(s)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close drops all data.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = make(map[string]kg.Document)
	s.chunks = make(map[string][]kg.Chunk)
	s.entities = nil
	s.relations = nil
	return nil
}
