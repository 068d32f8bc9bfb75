// Package pipeline orchestrates document ingestion: chunking, per-chunk
// embedding and extraction with bounded fan-out, document-level entity
// deduplication and a single-transaction persist. A remote provider outage
// degrades the affected stage to its deterministic fallback; it never fails
// the ingest.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/prowlhq/kgraph/extract"
	"github.com/prowlhq/kgraph/kg"
	"github.com/prowlhq/kgraph/log"
	"github.com/prowlhq/kgraph/store"
)

// DefaultConcurrency bounds how many chunks embed and extract at once.
const DefaultConcurrency = 4

// Ingest result statuses.
const (
	StatusSuccess  = "success"
	StatusDegraded = "degraded"
)

// Embedder produces a vector for a chunk and reports whether the call fell
// back to the deterministic strategy.
type Embedder interface {
	Embed(ctx context.Context, text string) (vec []float32, degraded bool, err error)
	Dimension() int
}

// Extractor produces entities and relations for a chunk and reports whether
// the call fell back to the deterministic strategy.
type Extractor interface {
	Extract(ctx context.Context, text string) (result extract.Result, degraded bool, err error)
}

// Pipeline ingests documents into the graph store.
type Pipeline struct {
	chunker     *kg.Chunker
	embedder    Embedder
	extractor   Extractor
	graph       store.Graph
	concurrency int
}

// Options configures a Pipeline.
type Options struct {
	Chunker   *kg.Chunker
	Embedder  Embedder
	Extractor Extractor
	Graph     store.Graph
	// Concurrency bounds the chunk fan-out; DefaultConcurrency when <= 0.
	Concurrency int
}

// New creates an ingestion pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Chunker == nil || opts.Embedder == nil || opts.Extractor == nil || opts.Graph == nil {
		return nil, fmt.Errorf("%w: pipeline requires a chunker, embedder, extractor and graph store", kg.ErrConfiguration)
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &Pipeline{
		chunker:     opts.Chunker,
		embedder:    opts.Embedder,
		extractor:   opts.Extractor,
		graph:       opts.Graph,
		concurrency: concurrency,
	}, nil
}

// chunkOutput collects one chunk's enrichment results, indexed by ordinal so
// the fan-out needs no ordering lock.
type chunkOutput struct {
	embedding       []float32
	extraction      extract.Result
	embedDegraded   bool
	extractDegraded bool
}

// Ingest runs the full pipeline for one document. Re-ingesting an existing id
// replaces every derived row atomically.
func (p *Pipeline) Ingest(ctx context.Context, doc kg.Document) (*kg.IngestResult, error) {
	if doc.ID == "" {
		return nil, fmt.Errorf("%w: document id must not be empty", kg.ErrValidation)
	}
	if strings.TrimSpace(doc.Content) == "" {
		return nil, fmt.Errorf("%w: document content must not be empty", kg.ErrValidation)
	}

	start := time.Now()

	pieces := p.chunker.Split(doc.Content)
	chunks := make([]kg.Chunk, len(pieces))
	for i, piece := range pieces {
		chunks[i] = kg.Chunk{
			ID:         kg.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Content:    piece,
			Ordinal:    i,
		}
	}

	outputs := p.enrichChunks(ctx, chunks)

	var degraded kg.DegradedStages
	for i := range chunks {
		chunks[i].Embedding = outputs[i].embedding
		degraded.Embedding = degraded.Embedding || outputs[i].embedDegraded
		degraded.Extraction = degraded.Extraction || outputs[i].extractDegraded
	}

	entities, relations, unmapped := p.assemble(doc.ID, outputs)

	var storeSkipped int
	err := p.graph.InTx(ctx, func(tx store.Graph) error {
		if err := tx.UpsertDocument(ctx, doc); err != nil {
			return err
		}
		if err := tx.InsertChunks(ctx, doc.ID, chunks); err != nil {
			return err
		}
		var err error
		storeSkipped, err = tx.InsertEntitiesAndRelations(ctx, doc.ID, entities, relations)
		return err
	})
	if err != nil {
		return nil, err
	}

	result := &kg.IngestResult{
		DocumentID:       doc.ID,
		ChunksCreated:    len(chunks),
		EntitiesCreated:  len(entities),
		RelationsCreated: len(relations) - storeSkipped,
		RelationsSkipped: unmapped + storeSkipped,
		DurationSeconds:  time.Since(start).Seconds(),
		Degraded:         degraded,
		Status:           StatusSuccess,
	}
	if degraded.Embedding || degraded.Extraction {
		result.Status = StatusDegraded
	}

	log.Info("ingested document %s: %d chunks, %d entities, %d relations (%d skipped), status=%s",
		doc.ID, result.ChunksCreated, result.EntitiesCreated, result.RelationsCreated,
		result.RelationsSkipped, result.Status)
	return result, nil
}

// enrichChunks embeds and extracts every chunk with at most p.concurrency
// chunks in flight.
func (p *Pipeline) enrichChunks(ctx context.Context, chunks []kg.Chunk) []chunkOutput {
	outputs := make([]chunkOutput, len(chunks))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)
	for i := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			outputs[i] = p.enrichChunk(ctx, chunks[i])
		}(i)
	}
	wg.Wait()

	return outputs
}

func (p *Pipeline) enrichChunk(ctx context.Context, chunk kg.Chunk) chunkOutput {
	var out chunkOutput

	vec, embedDegraded, err := p.embedder.Embed(ctx, chunk.Content)
	if err != nil {
		log.Warn("embedding chunk %s failed, storing without vector: %v", chunk.ID, err)
	} else {
		out.embedding = vec
	}
	out.embedDegraded = embedDegraded

	result, extractDegraded, err := p.extractor.Extract(ctx, chunk.Content)
	if err != nil {
		log.Warn("extraction for chunk %s failed, storing without graph rows: %v", chunk.ID, err)
	} else {
		out.extraction = result
	}
	out.extractDegraded = extractDegraded

	return out
}

func entityKey(text string, typ kg.EntityType) string {
	return strings.ToLower(strings.TrimSpace(text)) + "|" + string(typ)
}

// assemble merges the per-chunk extractions into document-level rows. Entities
// deduplicate by (normalized text, type); relations resolve their endpoint
// texts to entity ids, and a relation whose endpoint did not survive the merge
// is dropped and counted.
func (p *Pipeline) assemble(documentID string, outputs []chunkOutput) ([]kg.Entity, []kg.Relation, int) {
	var entities []kg.Entity
	seen := make(map[string]bool)
	idByText := make(map[string]string)

	for _, out := range outputs {
		for _, candidate := range out.extraction.Entities {
			key := entityKey(candidate.Text, candidate.Type)
			if seen[key] {
				continue
			}
			seen[key] = true

			entity := kg.Entity{
				ID:         uuid.NewString(),
				DocumentID: documentID,
				Text:       candidate.Text,
				Type:       candidate.Type,
				Metadata:   candidate.Metadata,
			}
			entities = append(entities, entity)

			textKey := strings.ToLower(strings.TrimSpace(candidate.Text))
			if _, ok := idByText[textKey]; !ok {
				idByText[textKey] = entity.ID
			}
		}
	}

	var relations []kg.Relation
	unmapped := 0
	for _, out := range outputs {
		for _, candidate := range out.extraction.Relations {
			sourceID, okSource := idByText[strings.ToLower(strings.TrimSpace(candidate.Source))]
			targetID, okTarget := idByText[strings.ToLower(strings.TrimSpace(candidate.Target))]
			if !okSource || !okTarget {
				unmapped++
				continue
			}
			relations = append(relations, kg.Relation{
				ID:         uuid.NewString(),
				DocumentID: documentID,
				SourceID:   sourceID,
				TargetID:   targetID,
				Type:       candidate.Type,
				Confidence: kg.ClampConfidence(candidate.Confidence),
			})
		}
	}

	return entities, relations, unmapped
}
