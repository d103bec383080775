package services

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/models"
)

func hit(id, docID string, chunkIndex int, score float32, text string) core.SearchHit {
	return core.SearchHit{
		ID:    id,
		Score: score,
		Payload: models.ChunkPayload{
			DocumentID: docID,
			ChunkIndex: chunkIndex,
			Text:       text,
		},
	}
}

func TestSampleMergesProbesInReadingOrder(t *testing.T) {
	store := newMemStore("col")
	store.hits = map[string][]core.SearchHit{
		"probe1": {hit("p3", "doc-b", 0, 0.9, "B0"), hit("p1", "doc-a", 2, 0.8, "A2")},
		"probe2": {hit("p2", "doc-a", 0, 0.7, "A0")},
		"probe3": {hit("p4", "doc-b", 1, 0.6, "B1")},
	}
	svc := NewSamplerService(store, probeEmbedder{}, 0.35, 4)

	out, err := svc.Sample(context.Background(), "col", nil, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, store.searches, "one search per probe query")

	// Sorted by (document id, chunk index), not by relevance.
	assert.Equal(t, "A0\n\nA2\n\nB0\n\nB1", out)
}

func TestSampleDeduplicatesByVectorID(t *testing.T) {
	store := newMemStore("col")
	shared := hit("p1", "doc-a", 0, 0.9, "A0")
	store.hits = map[string][]core.SearchHit{
		"probe1": {shared},
		"probe2": {shared},
		"probe3": {shared, hit("p2", "doc-a", 1, 0.5, "A1")},
	}
	svc := NewSamplerService(store, probeEmbedder{}, 0.35, 4)

	out, err := svc.Sample(context.Background(), "col", nil, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, "A0\n\nA1", out, "a chunk found by several probes appears once")
}

func TestSampleRestrictsToRequestedDocuments(t *testing.T) {
	store := newMemStore("col")
	store.hits = map[string][]core.SearchHit{
		"probe1": {hit("p1", "doc-a", 0, 0.9, "A0"), hit("p2", "doc-x", 0, 0.95, "X0")},
	}
	svc := NewSamplerService(store, probeEmbedder{}, 0.35, 4)

	out, err := svc.Sample(context.Background(), "col", []string{"doc-a"}, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, "A0", out)
	assert.NotContains(t, out, "X0", "hits outside the requested documents are dropped")
}

func TestSampleTruncatesOverflowChunk(t *testing.T) {
	store := newMemStore("col")
	store.hits = map[string][]core.SearchHit{
		"probe1": {
			hit("p1", "doc-a", 0, 0.9, strings.Repeat("a", 30)),
			hit("p2", "doc-a", 1, 0.8, strings.Repeat("b", 30)),
		},
	}
	// Budget of 10 tokens * 4 chars = 40 chars total.
	svc := NewSamplerService(store, probeEmbedder{}, 0.35, 4)

	out, err := svc.Sample(context.Background(), "col", nil, 10, 10)
	require.NoError(t, err)

	// First chunk fits whole; the second is truncated to the remaining
	// budget rather than dropped.
	assert.Len(t, out, 40)
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", 30)+"\n\n"))
	assert.Equal(t, strings.Repeat("b", 8), out[32:])
}

func TestSampleTruncatesOnRuneBoundary(t *testing.T) {
	store := newMemStore("col")
	// 20 three-byte runes; a 16-byte budget falls mid-rune.
	store.hits = map[string][]core.SearchHit{
		"probe1": {hit("p1", "doc-a", 0, 0.9, strings.Repeat("日", 20))},
	}
	svc := NewSamplerService(store, probeEmbedder{}, 0.35, 4)

	out, err := svc.Sample(context.Background(), "col", nil, 4, 10)
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(out), "truncation must not split a rune")
	assert.Equal(t, strings.Repeat("日", 5), out)
}

func TestSampleStopsWhenBudgetExhausted(t *testing.T) {
	store := newMemStore("col")
	store.hits = map[string][]core.SearchHit{
		"probe1": {
			hit("p1", "doc-a", 0, 0.9, strings.Repeat("a", 40)),
			hit("p2", "doc-a", 1, 0.8, "never fits"),
		},
	}
	svc := NewSamplerService(store, probeEmbedder{}, 0.35, 4)

	out, err := svc.Sample(context.Background(), "col", nil, 10, 10)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 40), out)
}

func TestSampleEmptyResultFallsBackToEmptyString(t *testing.T) {
	store := newMemStore("col")
	svc := NewSamplerService(store, probeEmbedder{}, 0.35, 4)

	out, err := svc.Sample(context.Background(), "col", nil, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, "", out, "no hits is not an error")
}

func TestSampleRejectsInvalidBudget(t *testing.T) {
	svc := NewSamplerService(newMemStore("col"), probeEmbedder{}, 0.35, 4)

	_, err := svc.Sample(context.Background(), "col", nil, 0, 10)
	assert.Error(t, err)
	_, err = svc.Sample(context.Background(), "col", nil, -5, 10)
	assert.Error(t, err)
}

func TestSampleSkipsEmptyPayloadText(t *testing.T) {
	store := newMemStore("col")
	store.hits = map[string][]core.SearchHit{
		"probe1": {hit("p1", "doc-a", 0, 0.9, ""), hit("p2", "doc-a", 1, 0.8, "A1")},
	}
	svc := NewSamplerService(store, probeEmbedder{}, 0.35, 4)

	out, err := svc.Sample(context.Background(), "col", nil, 1000, 10)
	require.NoError(t, err)
	assert.Equal(t, "A1", out)
}
