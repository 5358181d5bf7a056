package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the search engine.
type Config struct {
	PostgreSQL PostgreSQLConfig
	Server     ServerConfig
	Search     SearchConfig
	Ranking    RankingConfig
	Vector     VectorConfig
	Cache      CacheConfig
	Breaker    BreakerConfig
	Embedding  EmbeddingConfig
	OpenAI     OpenAIConfig
}

// PostgreSQLConfig holds database connection settings. An empty DSN (and
// empty host) selects the in-memory backends instead.
type PostgreSQLConfig struct {
	DSN                string
	Host               string
	Port               int
	User               string
	Password           string
	Database           string
	SSLMode            string
	MaxConnections     int
	MaxIdleConnections int
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	Host           string
	GinMode        string
	AllowedOrigins string
}

// SearchConfig holds per-request budgets and pipeline limits.
type SearchConfig struct {
	RequestBudget       time.Duration
	IntentBudget        time.Duration
	EmbedBudget         time.Duration
	VectorBudget        time.Duration
	IntentMinConfidence float64
}

// RankingConfig holds the fusion weights. The 0.4/0.6 split is a documented
// placeholder with no empirical basis, so both are tunable.
type RankingConfig struct {
	WeightFilter     float64
	WeightSimilarity float64
}

// VectorConfig holds similarity-search settings.
type VectorConfig struct {
	TopK            int
	MinSimilarity   float64
	CandidateCutoff int
}

// CacheConfig holds result-cache settings.
type CacheConfig struct {
	Enabled   bool
	TTL       time.Duration
	TTLJitter time.Duration
}

// BreakerConfig holds the intent-extraction circuit breaker settings.
type BreakerConfig struct {
	ConsecutiveFailures int
	Cooldown            time.Duration
}

// EmbeddingConfig holds batch-reindex settings.
type EmbeddingConfig struct {
	BatchSize      int
	PoolSize       int
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// OpenAIConfig holds settings for the OpenAI-compatible provider used for
// intent extraction and embeddings.
type OpenAIConfig struct {
	APIKey              string
	APIBase             string
	ChatModel           string
	EmbeddingModel      string
	EmbeddingDimensions int
	Timeout             time.Duration
	Enabled             bool
}

// Load reads configuration from environment variables, optionally seeded
// from a .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		PostgreSQL: PostgreSQLConfig{
			DSN:                getEnv("DATABASE_URL", getEnv("PG_DSN", "")),
			Host:               getEnv("PG_HOST", ""),
			Port:               getEnvAsInt("PG_PORT", 5432),
			User:               getEnv("PG_USER", "postgres"),
			Password:           getEnv("PG_PASSWORD", ""),
			Database:           getEnv("PG_DATABASE", "property_search"),
			SSLMode:            getEnv("PG_SSLMODE", "disable"),
			MaxConnections:     getEnvAsInt("PG_MAX_CONNECTIONS", 25),
			MaxIdleConnections: getEnvAsInt("PG_MAX_IDLE_CONNECTIONS", 5),
		},
		Server: ServerConfig{
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		},
		Search: SearchConfig{
			RequestBudget:       getEnvAsDuration("SEARCH_REQUEST_BUDGET_MS", 3000),
			IntentBudget:        getEnvAsDuration("SEARCH_INTENT_BUDGET_MS", 2000),
			EmbedBudget:         getEnvAsDuration("SEARCH_EMBED_BUDGET_MS", 1500),
			VectorBudget:        getEnvAsDuration("SEARCH_VECTOR_BUDGET_MS", 1500),
			IntentMinConfidence: getEnvAsFloat("INTENT_MIN_CONFIDENCE", 0.5),
		},
		Ranking: RankingConfig{
			WeightFilter:     getEnvAsFloat("RANK_WEIGHT_FILTER", 0.4),
			WeightSimilarity: getEnvAsFloat("RANK_WEIGHT_SIMILARITY", 0.6),
		},
		Vector: VectorConfig{
			TopK:            getEnvAsInt("VECTOR_TOP_K", 200),
			MinSimilarity:   getEnvAsFloat("VECTOR_MIN_SIMILARITY", 0.6),
			CandidateCutoff: getEnvAsInt("VECTOR_CANDIDATE_CUTOFF", 5000),
		},
		Cache: CacheConfig{
			Enabled:   getEnvAsBool("CACHE_ENABLED", true),
			TTL:       getEnvAsDuration("CACHE_TTL_MS", 60000),
			TTLJitter: getEnvAsDuration("CACHE_TTL_JITTER_MS", 10000),
		},
		Breaker: BreakerConfig{
			ConsecutiveFailures: getEnvAsInt("BREAKER_CONSECUTIVE_FAILURES", 5),
			Cooldown:            getEnvAsDuration("BREAKER_COOLDOWN_MS", 30000),
		},
		Embedding: EmbeddingConfig{
			BatchSize:      getEnvAsInt("EMBED_BATCH_SIZE", 64),
			PoolSize:       getEnvAsInt("EMBED_POOL_SIZE", 4),
			MaxRetries:     getEnvAsInt("EMBED_MAX_RETRIES", 3),
			RetryBaseDelay: getEnvAsDuration("EMBED_RETRY_BASE_DELAY_MS", 200),
		},
		OpenAI: OpenAIConfig{
			APIKey:              getEnv("OPENAI_API_KEY", ""),
			APIBase:             getEnv("OPENAI_API_BASE", "https://api.openai.com/v1"),
			ChatModel:           getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel:      getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimensions: getEnvAsInt("OPENAI_EMBEDDING_DIMENSIONS", 1024),
			Timeout:             getEnvAsDuration("OPENAI_TIMEOUT_MS", 10000),
			Enabled:             getEnv("OPENAI_API_KEY", "") != "",
		},
	}

	return cfg, nil
}

// UsePostgres reports whether a database backend is configured.
func (c *Config) UsePostgres() bool {
	return c.PostgreSQL.DSN != "" || c.PostgreSQL.Host != ""
}

// PostgreSQLDSN returns the connection string, assembling one from parts if
// no full DSN was given.
func (c *Config) PostgreSQLDSN() string {
	if c.PostgreSQL.DSN != "" {
		return c.PostgreSQL.DSN
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgreSQL.Host,
		c.PostgreSQL.Port,
		c.PostgreSQL.User,
		c.PostgreSQL.Password,
		c.PostgreSQL.Database,
		c.PostgreSQL.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		slog.Warn("invalid integer env value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		slog.Warn("invalid float env value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		slog.Warn("invalid bool env value, using default", "key", key, "default", defaultValue)
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultMs int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultMs)) * time.Millisecond
}
