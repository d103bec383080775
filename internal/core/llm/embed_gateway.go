package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/core/retry"
)

// MaxBatchSize is dictated by the remote embedding service.
const MaxBatchSize = 100

// MaxTextLen is the hard truncation length applied to each text before the
// remote call.
const MaxTextLen = 8192

// EmbedGateway sanitizes input text and drives any EmbeddingProvider through
// the shared retry policy in fixed-size batches.
type EmbedGateway struct {
	provider  core.EmbeddingProvider
	policy    retry.Policy
	batchSize int
}

func NewEmbedGateway(provider core.EmbeddingProvider, policy retry.Policy) *EmbedGateway {
	return &EmbedGateway{provider: provider, policy: policy, batchSize: MaxBatchSize}
}

// EmbedTexts returns one vector per cleaned input text, order preserved.
// Empty/whitespace entries are dropped during sanitation, so callers that
// need strict 1:1 with their own inputs must not pass blank texts.
// Empty cleaned input returns an empty list without a remote call.
func (g *EmbedGateway) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	cleaned := make([]string, 0, len(texts))
	for _, t := range texts {
		c := sanitize(t)
		if c == "" {
			continue
		}
		cleaned = append(cleaned, c)
	}
	if len(cleaned) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := retry.CallBatched(ctx, g.policy, cleaned, g.batchSize,
		func(ctx context.Context, batch []string) ([][]float32, error) {
			return g.provider.EmbedTexts(ctx, batch)
		})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	return vectors, nil
}

// sanitize strips control characters, trims whitespace, and hard-truncates
// to MaxTextLen runes.
func sanitize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > MaxTextLen {
		s = string(runes[:MaxTextLen])
	}
	return s
}

var _ core.EmbeddingProvider = (*EmbedGateway)(nil)
