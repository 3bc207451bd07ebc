// Package config loads runtime settings from .env, the environment and CLI flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	OpenAIAPIKey  string
	OpenAIBaseURL string
	TavilyAPIKey  string

	EmbeddingProvider   string
	EmbeddingModel      string
	EmbeddingDimensions int
	OllamaHost          string
	LLMModel            string

	VectorDBType string
	DataDir      string
	SQLitePath   string
	PostgresDSN  string

	RedisURL string
	CacheTTL time.Duration

	SearchMaxResults    int
	SearchRatePerSecond float64
	FeedURLs            []string
	TagRulesPath        string

	Port          string
	PruneInterval time.Duration
	LogLevel      string
	LogFormat     string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("openai_base_url", "https://api.openai.com/v1")
	v.SetDefault("embedding_provider", "openai")
	v.SetDefault("embedding_model", "text-embedding-3-small")
	v.SetDefault("embedding_dimensions", 1536)
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("llm_model", "gpt-4o-mini")
	v.SetDefault("vector_db_type", "memory")
	v.SetDefault("data_dir", "data")
	v.SetDefault("sqlite_path", "")
	v.SetDefault("cache_ttl_minutes", 30)
	v.SetDefault("search_max_results", 50)
	v.SetDefault("search_rate_per_second", 2.0)
	v.SetDefault("port", "8990")
	v.SetDefault("prune_interval", "24h")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
}

// Load reads .env (if present) and resolves settings from v, which may already
// have CLI flags bound. Keys are the lower-case names of their env variables.
func Load(v *viper.Viper) (*Config, error) {
	_ = godotenv.Load()

	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.AutomaticEnv()

	prune, err := time.ParseDuration(v.GetString("prune_interval"))
	if err != nil {
		return nil, fmt.Errorf("PRUNE_INTERVAL: %w", err)
	}

	cfg := &Config{
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIBaseURL:       v.GetString("openai_base_url"),
		TavilyAPIKey:        v.GetString("tavily_api_key"),
		EmbeddingProvider:   strings.ToLower(v.GetString("embedding_provider")),
		EmbeddingModel:      v.GetString("embedding_model"),
		EmbeddingDimensions: v.GetInt("embedding_dimensions"),
		OllamaHost:          v.GetString("ollama_host"),
		LLMModel:            v.GetString("llm_model"),
		VectorDBType:        strings.ToLower(v.GetString("vector_db_type")),
		DataDir:             v.GetString("data_dir"),
		SQLitePath:          v.GetString("sqlite_path"),
		PostgresDSN:         v.GetString("postgres_dsn"),
		RedisURL:            v.GetString("redis_url"),
		CacheTTL:            time.Duration(v.GetInt("cache_ttl_minutes")) * time.Minute,
		SearchMaxResults:    v.GetInt("search_max_results"),
		SearchRatePerSecond: v.GetFloat64("search_rate_per_second"),
		FeedURLs:            splitList(v.GetString("feed_urls")),
		TagRulesPath:        v.GetString("tag_rules_path"),
		Port:                v.GetString("port"),
		PruneInterval:       prune,
		LogLevel:            v.GetString("log_level"),
		LogFormat:           v.GetString("log_format"),
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = strings.TrimRight(cfg.DataDir, "/") + "/events.db"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' || r == '\n' }) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks settings that do not depend on which command runs.
func (c *Config) Validate() error {
	switch c.EmbeddingProvider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("EMBEDDING_PROVIDER must be openai or ollama, got %q", c.EmbeddingProvider)
	}
	switch c.VectorDBType {
	case "memory", "sqlite":
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when VECTOR_DB_TYPE=postgres")
		}
	default:
		return fmt.Errorf("VECTOR_DB_TYPE must be memory, sqlite or postgres, got %q", c.VectorDBType)
	}
	if c.EmbeddingDimensions <= 0 {
		return fmt.Errorf("EMBEDDING_DIMENSIONS must be positive")
	}
	if c.SearchMaxResults <= 0 {
		return fmt.Errorf("SEARCH_MAX_RESULTS must be positive")
	}
	if c.SearchRatePerSecond <= 0 {
		return fmt.Errorf("SEARCH_RATE_PER_SECOND must be positive")
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL_MINUTES must not be negative")
	}
	return nil
}

// RequireSearch checks the credentials the live search pipeline needs.
func (c *Config) RequireSearch() error {
	if c.TavilyAPIKey == "" {
		return fmt.Errorf("TAVILY_API_KEY is required. Set it in .env or as an environment variable")
	}
	if c.EmbeddingProvider == "openai" && c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when EMBEDDING_PROVIDER=openai")
	}
	return nil
}
