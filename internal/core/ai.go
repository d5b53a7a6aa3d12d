package core

import "context"

// EmbeddingProvider converts chunk texts into dense vectors. Implementations
// must return one vector per input text, in input order.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
