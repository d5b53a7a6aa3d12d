package llm

import (
	"context"
	"fmt"

	"github.com/lexara-id/lexara/internal/config"
	"github.com/lexara-id/lexara/internal/core"
)

// Backend identifies an embedding provider implementation.
type Backend int

const (
	BackendGemini Backend = iota
	BackendOpenAI
	BackendOllama
)

func ParseBackend(s string) (Backend, error) {
	switch s {
	case "gemini":
		return BackendGemini, nil
	case "openai":
		return BackendOpenAI, nil
	case "ollama":
		return BackendOllama, nil
	}
	return 0, fmt.Errorf("unknown embedding backend %q", s)
}

// NewEmbedder constructs the configured embedding backend wrapped in the
// default retry policy.
func NewEmbedder(ctx context.Context, cfg *config.Config) (core.EmbeddingProvider, error) {
	backend, err := ParseBackend(cfg.EmbedBackend)
	if err != nil {
		return nil, err
	}

	var provider core.EmbeddingProvider
	switch backend {
	case BackendGemini:
		provider, err = NewGeminiEmbedder(ctx, cfg.EmbedAPIKey, cfg.EmbedModel)
	case BackendOpenAI:
		provider, err = NewOpenAIEmbedder(cfg.EmbedBaseURL, cfg.EmbedAPIKey, cfg.EmbedModel)
	case BackendOllama:
		provider, err = NewOllamaEmbedder(cfg.EmbedBaseURL, cfg.EmbedModel)
	}
	if err != nil {
		return nil, err
	}

	return WithRetry(provider, DefaultRetryPolicy()), nil
}
