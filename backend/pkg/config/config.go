package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"squadgraph/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port     string
	Env      string
	LogLevel string

	// Neo4j graph store
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	Neo4jDatabase string

	// SQLite session store
	SessionDBPath   string
	SessionPoolSize int

	// Cache
	CacheEnabled bool
	CacheDir     string // empty keeps the cache in memory

	// ETL batching
	RoundPageSize    int
	FlushEveryRounds int
	MaxPendingPairs  int

	// Community detection
	CommunityMinSessions int
	CommunityMinSize     int
	CommunityAlgorithm   string // "leader" or "union-find"

	// Alias detection
	AliasConfigPath string // optional YAML with weights and thresholds
	AliasTimeout    time.Duration
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		Env:                  getEnv("ENV", "development"),
		LogLevel:             getEnv("LOG_LEVEL", ""),
		Neo4jURI:             getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:            getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:        getEnv("NEO4J_PASSWORD", "password"),
		Neo4jDatabase:        getEnv("NEO4J_DATABASE", ""),
		SessionDBPath:        getEnv("SESSION_DB_PATH", "data/sessions.db"),
		SessionPoolSize:      getEnvInt("SESSION_POOL_SIZE", 4),
		CacheEnabled:         getEnvBool("CACHE_ENABLED", true),
		CacheDir:             getEnv("CACHE_DIR", ""),
		RoundPageSize:        getEnvInt("ETL_ROUND_PAGE_SIZE", 500),
		FlushEveryRounds:     getEnvInt("ETL_FLUSH_EVERY_ROUNDS", 5000),
		MaxPendingPairs:      getEnvInt("ETL_MAX_PENDING_PAIRS", 50000),
		CommunityMinSessions: getEnvInt("COMMUNITY_MIN_SESSIONS", 3),
		CommunityMinSize:     getEnvInt("COMMUNITY_MIN_SIZE", 3),
		CommunityAlgorithm:   getEnv("COMMUNITY_ALGORITHM", "leader"),
		AliasConfigPath:      getEnv("ALIAS_CONFIG_PATH", ""),
		AliasTimeout:         getEnvDuration("ALIAS_TIMEOUT", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration values are set
func (c *Config) Validate() error {
	if c.Neo4jURI == "" {
		return errors.NewConfigValidationFailed("NEO4J_URI", "is required")
	}
	if c.Neo4jUser == "" {
		return errors.NewConfigValidationFailed("NEO4J_USER", "is required")
	}
	if c.SessionDBPath == "" {
		return errors.NewConfigValidationFailed("SESSION_DB_PATH", "is required")
	}
	if c.RoundPageSize <= 0 {
		return errors.NewConfigValidationFailed("ETL_ROUND_PAGE_SIZE", fmt.Sprintf("must be positive, got %d", c.RoundPageSize))
	}
	if c.FlushEveryRounds <= 0 {
		return errors.NewConfigValidationFailed("ETL_FLUSH_EVERY_ROUNDS", fmt.Sprintf("must be positive, got %d", c.FlushEveryRounds))
	}
	if c.MaxPendingPairs <= 0 {
		return errors.NewConfigValidationFailed("ETL_MAX_PENDING_PAIRS", fmt.Sprintf("must be positive, got %d", c.MaxPendingPairs))
	}
	if c.CommunityMinSessions < 1 {
		return errors.NewConfigValidationFailed("COMMUNITY_MIN_SESSIONS", fmt.Sprintf("must be at least 1, got %d", c.CommunityMinSessions))
	}
	if c.CommunityMinSize < 2 {
		return errors.NewConfigValidationFailed("COMMUNITY_MIN_SIZE", fmt.Sprintf("must be at least 2, got %d", c.CommunityMinSize))
	}
	switch c.CommunityAlgorithm {
	case "leader", "union-find":
	default:
		return errors.NewConfigValidationFailed("COMMUNITY_ALGORITHM", fmt.Sprintf("must be 'leader' or 'union-find', got %q", c.CommunityAlgorithm))
	}
	return nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes":
		return true
	case "0", "false", "FALSE", "no":
		return false
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
