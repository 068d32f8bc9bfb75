// Package cache provides a Redis-backed cache for document graph views. The
// graph of a document only changes on re-ingest, so cached views stay valid
// until the owning service invalidates them.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prowlhq/kgraph/kg"
)

// ErrMiss is returned when the requested key is not cached.
var ErrMiss = errors.New("cache miss")

// DocumentGraphCache stores serialized document graph views in Redis.
type DocumentGraphCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// Options configuration for the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "kgraph:"
	TTL      time.Duration // Expiration for cached graphs, default 0 (no expiration)
}

// New creates a Redis document graph cache.
func New(opts Options) *DocumentGraphCache {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "kgraph:"
	}

	return &DocumentGraphCache{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (c *DocumentGraphCache) graphKey(documentID string) string {
	return fmt.Sprintf("%sgraph:%s", c.prefix, documentID)
}

// Get retrieves the cached graph for a document, or ErrMiss.
func (c *DocumentGraphCache) Get(ctx context.Context, documentID string) (*kg.DocumentGraph, error) {
	data, err := c.client.Get(ctx, c.graphKey(documentID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("failed to load graph from redis: %w", err)
	}

	var graph kg.DocumentGraph
	if err := json.Unmarshal(data, &graph); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached graph: %w", err)
	}
	return &graph, nil
}

// Put stores the graph view for a document.
func (c *DocumentGraphCache) Put(ctx context.Context, graph *kg.DocumentGraph) error {
	data, err := json.Marshal(graph)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	if err := c.client.Set(ctx, c.graphKey(graph.DocumentID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save graph to redis: %w", err)
	}
	return nil
}

// Invalidate drops the cached graph for a document. Dropping an absent key is
// not an error.
func (c *DocumentGraphCache) Invalidate(ctx context.Context, documentID string) error {
	if err := c.client.Del(ctx, c.graphKey(documentID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate graph in redis: %w", err)
	}
	return nil
}

// Ping reports cache reachability.
func (c *DocumentGraphCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *DocumentGraphCache) Close() error {
	return c.client.Close()
}
