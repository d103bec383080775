package core

import "context"

// EmbeddingProvider produces one vector per input text, order-preserving.
// Implementations make a single remote call per invocation; batching and
// retries live in the embedding gateway, not here.
type EmbeddingProvider interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}
