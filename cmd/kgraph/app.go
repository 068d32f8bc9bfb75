package main

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/prowlhq/kgraph/cache"
	"github.com/prowlhq/kgraph/config"
	"github.com/prowlhq/kgraph/embed"
	"github.com/prowlhq/kgraph/engine"
	"github.com/prowlhq/kgraph/extract"
	"github.com/prowlhq/kgraph/kg"
	"github.com/prowlhq/kgraph/log"
	"github.com/prowlhq/kgraph/pipeline"
	"github.com/prowlhq/kgraph/service"
	"github.com/prowlhq/kgraph/store"
	"github.com/prowlhq/kgraph/store/memory"
	"github.com/prowlhq/kgraph/store/postgres"
	"github.com/prowlhq/kgraph/store/sqlite"
)

// app bundles the wired components plus their cleanup.
type app struct {
	cfg     *config.Config
	graph   store.Graph
	service *service.Service
	closers []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// schemaInitializer is implemented by the SQL-backed stores.
type schemaInitializer interface {
	InitSchema(ctx context.Context) error
}

func openGraph(ctx context.Context, cfg *config.Config) (store.Graph, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return postgres.New(ctx, postgres.Options{ConnString: cfg.DatabaseURL()})
	case config.DriverSQLite:
		return sqlite.Open(cfg.SQLitePath)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", kg.ErrConfiguration, cfg.Driver)
	}
}

// buildApp loads the configuration and wires the full service. Remote
// providers are only constructed when an API key is present; the
// deterministic strategies always back them.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	graph, err := openGraph(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, graph: graph}
	a.closers = append(a.closers, func() { _ = graph.Close() })

	chunker, err := kg.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		a.close()
		return nil, err
	}

	var remoteEmbed embed.Provider
	var remoteExtract extract.Provider
	if cfg.OpenRouterAPIKey != "" {
		remoteEmbed = embed.NewOpenAIProvider(embed.OpenAIOptions{
			APIKey:  cfg.OpenRouterAPIKey,
			BaseURL: cfg.OpenRouterBase,
			Model:   cfg.EmbeddingModel,
			Dim:     cfg.EmbeddingDim,
			Timeout: cfg.EmbedTimeout,
		})

		model, err := openai.New(
			openai.WithToken(cfg.OpenRouterAPIKey),
			openai.WithBaseURL(cfg.OpenRouterBase),
			openai.WithModel(cfg.ExtractionModel),
		)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create extraction model: %w", err)
		}
		remoteExtract = extract.NewLLMProvider(model, cfg.MaxEntitiesPerChunk, cfg.ExtractTimeout)
	} else {
		log.Info("no API key configured, using deterministic embedding and extraction")
	}

	embedder := embed.NewDegradingProvider(remoteEmbed, embed.NewHashProvider(cfg.EmbeddingDim))
	extractor := extract.NewDegradingProvider(remoteExtract, extract.NewPatternProvider(cfg.MaxEntitiesPerChunk))

	p, err := pipeline.New(pipeline.Options{
		Chunker:   chunker,
		Embedder:  embedder,
		Extractor: extractor,
		Graph:     graph,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	e, err := engine.New(embedder, graph)
	if err != nil {
		a.close()
		return nil, err
	}

	var graphCache service.GraphCache
	if cfg.RedisAddr != "" {
		c := cache.New(cache.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			TTL:      cfg.CacheTTL,
		})
		a.closers = append(a.closers, func() { _ = c.Close() })
		graphCache = c
	}

	svc, err := service.New(p, e, graph, graphCache)
	if err != nil {
		a.close()
		return nil, err
	}
	a.service = svc
	return a, nil
}
