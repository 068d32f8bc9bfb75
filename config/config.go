// Package config loads the service configuration from the environment.
// Every setting has a default; only an internally inconsistent configuration
// is fatal.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/prowlhq/kgraph/kg"
)

// Storage driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Config holds the full runtime configuration.
type Config struct {
	// Storage
	Driver           string
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	SQLitePath       string

	// Remote providers. An empty API key means the deterministic fallbacks
	// run as the primary strategy.
	OpenRouterAPIKey string
	OpenRouterBase   string
	EmbeddingModel   string
	ExtractionModel  string
	EmbedTimeout     time.Duration
	ExtractTimeout   time.Duration

	// Knowledge graph
	ChunkSize           int
	ChunkOverlap        int
	EmbeddingDim        int
	MaxEntitiesPerChunk int

	// Optional Redis cache; empty Addr disables caching.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", kg.ErrConfiguration, key, v)
	}
	return n, nil
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a duration, got %q", kg.ErrConfiguration, key, v)
	}
	return d, nil
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Driver:           getenv("KG_STORE_DRIVER", DriverPostgres),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresUser:     getenv("POSTGRES_USER", "prowl_user"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "prowl_password"),
		PostgresDB:       getenv("POSTGRES_DB", "prowl_db"),
		SQLitePath:       getenv("KG_SQLITE_PATH", "kgraph.db"),
		OpenRouterAPIKey: getenv("OPENROUTER_API_KEY", ""),
		OpenRouterBase:   getenv("OPENROUTER_BASE", "https://openrouter.ai/api/v1"),
		EmbeddingModel:   getenv("EMBEDDING_MODEL", "text-embedding-3-small"),
		ExtractionModel:  getenv("EXTRACTION_MODEL", "openai/gpt-4o-mini"),
		RedisAddr:        getenv("REDIS_ADDR", ""),
		RedisPassword:    getenv("REDIS_PASSWORD", ""),
	}

	var err error
	if cfg.PostgresPort, err = getenvInt("POSTGRES_PORT", 5432); err != nil {
		return nil, err
	}
	if cfg.ChunkSize, err = getenvInt("KG_CHUNK_SIZE", 512); err != nil {
		return nil, err
	}
	if cfg.ChunkOverlap, err = getenvInt("KG_CHUNK_OVERLAP", 50); err != nil {
		return nil, err
	}
	if cfg.EmbeddingDim, err = getenvInt("KG_EMBEDDING_DIM", 384); err != nil {
		return nil, err
	}
	if cfg.MaxEntitiesPerChunk, err = getenvInt("KG_MAX_ENTITIES_PER_CHUNK", 10); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.EmbedTimeout, err = getenvDuration("KG_EMBED_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ExtractTimeout, err = getenvDuration("KG_EXTRACT_TIMEOUT", 60*time.Second); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getenvDuration("KG_CACHE_TTL", time.Hour); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Driver {
	case DriverPostgres, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("%w: unknown storage driver %q", kg.ErrConfiguration, c.Driver)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("%w: KG_CHUNK_SIZE must be positive, got %d", kg.ErrConfiguration, c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("%w: KG_CHUNK_OVERLAP %d must be within [0, chunk size %d)",
			kg.ErrConfiguration, c.ChunkOverlap, c.ChunkSize)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: KG_EMBEDDING_DIM must be positive, got %d", kg.ErrConfiguration, c.EmbeddingDim)
	}
	if c.MaxEntitiesPerChunk <= 0 {
		return fmt.Errorf("%w: KG_MAX_ENTITIES_PER_CHUNK must be positive, got %d",
			kg.ErrConfiguration, c.MaxEntitiesPerChunk)
	}

	if c.Driver == DriverPostgres && (c.PostgresHost == "" || c.PostgresDB == "") {
		return fmt.Errorf("%w: postgres driver requires POSTGRES_HOST and POSTGRES_DB", kg.ErrConfiguration)
	}
	return nil
}

// DatabaseURL builds the Postgres connection string.
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgresql://%s:%s@%s:%d/%s",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresDB)
}
