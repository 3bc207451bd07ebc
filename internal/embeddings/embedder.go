// Package embeddings turns events and queries into vectors.
package embeddings

import (
	"context"
	"fmt"
)

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type Config struct {
	Provider   string // openai or ollama
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	OllamaHost string
}

// New returns the embedder for cfg.Provider.
func New(cfg Config) (Embedder, error) {
	switch cfg.Provider {
	case "openai", "":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL, cfg.Model, cfg.Dimensions), nil
	case "ollama":
		return NewOllama(cfg.OllamaHost, cfg.Model, cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}
