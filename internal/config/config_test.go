package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"VECTOR_DB_TYPE", "EMBEDDING_PROVIDER", "PORT", "DATA_DIR", "SQLITE_PATH", "CACHE_TTL_MINUTES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "openai", cfg.EmbeddingProvider)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.EmbeddingDimensions)
	assert.Equal(t, "gpt-4o-mini", cfg.LLMModel)
	assert.Equal(t, "memory", cfg.VectorDBType)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 50, cfg.SearchMaxResults)
	assert.Equal(t, "8990", cfg.Port)
	assert.Equal(t, 24*time.Hour, cfg.PruneInterval)
	assert.Equal(t, "data/events.db", cfg.SQLitePath)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("VECTOR_DB_TYPE", "SQLite")
	t.Setenv("EMBEDDING_PROVIDER", "ollama")
	t.Setenv("CACHE_TTL_MINUTES", "5")
	t.Setenv("FEED_URLS", "https://a.example/rss, https://b.example/atom")
	t.Setenv("PORT", "9000")

	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.VectorDBType)
	assert.Equal(t, "ollama", cfg.EmbeddingProvider)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, []string{"https://a.example/rss", "https://b.example/atom"}, cfg.FeedURLs)
	assert.Equal(t, "9000", cfg.Port)
}

func TestLoad_FlagOverride(t *testing.T) {
	t.Setenv("PORT", "")
	v := viper.New()
	v.Set("port", "7777")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "7777", cfg.Port)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			EmbeddingProvider:   "openai",
			EmbeddingDimensions: 1536,
			VectorDBType:        "memory",
			SearchMaxResults:    50,
			SearchRatePerSecond: 1,
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad provider", func(c *Config) { c.EmbeddingProvider = "cohere" }, true},
		{"bad backend", func(c *Config) { c.VectorDBType = "chroma" }, true},
		{"postgres without dsn", func(c *Config) { c.VectorDBType = "postgres" }, true},
		{"postgres with dsn", func(c *Config) { c.VectorDBType = "postgres"; c.PostgresDSN = "postgres://x" }, false},
		{"zero dimensions", func(c *Config) { c.EmbeddingDimensions = 0 }, true},
		{"zero rate", func(c *Config) { c.SearchRatePerSecond = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if tt.wantErr {
				assert.Error(t, c.Validate())
			} else {
				assert.NoError(t, c.Validate())
			}
		})
	}
}

func TestRequireSearch(t *testing.T) {
	c := &Config{EmbeddingProvider: "openai"}
	assert.Error(t, c.RequireSearch())

	c.TavilyAPIKey = "tvly"
	assert.Error(t, c.RequireSearch())

	c.OpenAIAPIKey = "sk"
	assert.NoError(t, c.RequireSearch())

	assert.NoError(t, (&Config{EmbeddingProvider: "ollama", TavilyAPIKey: "tvly"}).RequireSearch())
}
