package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/vectora/internal/core"
)

// probeQueries are the fixed topic probes run against a collection to pull
// representative content: what the material is for, how it works, and where
// it does not apply.
var probeQueries = []string{
	"purpose definition and scope of this document",
	"core procedure requirements and criteria",
	"exceptions provisos and special cases",
}

// DefaultCharsPerToken converts a token budget into a character budget
// (~4 chars per token).
const DefaultCharsPerToken = 4

// SamplerService reconstitutes representative document content from a
// collection for prompt assembly: multi-query search, deduped by vector id,
// reassembled in reading order under a token budget.
type SamplerService struct {
	store         core.VectorStore
	embedder      core.EmbeddingProvider
	scoreMin      float32
	charsPerToken int
}

func NewSamplerService(store core.VectorStore, embedder core.EmbeddingProvider, scoreMin float32, charsPerToken int) *SamplerService {
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return &SamplerService{store: store, embedder: embedder, scoreMin: scoreMin, charsPerToken: charsPerToken}
}

// Sample searches collection with the probe queries, keeps hits belonging to
// documentIDs, and concatenates the surviving chunks in (document id, chunk
// index) order under a character budget of maxTokensTotal*charsPerToken.
// The chunk that would overflow the budget is truncated, not dropped. An
// empty string signals the caller to fall back to a cruder strategy.
func (s *SamplerService) Sample(ctx context.Context, collection string, documentIDs []string, maxTokensTotal, topK int) (string, error) {
	if maxTokensTotal <= 0 {
		return "", fmt.Errorf("invalid token budget %d", maxTokensTotal)
	}
	if topK <= 0 {
		topK = 15
	}

	vectors, err := s.embedder.EmbedTexts(ctx, probeQueries)
	if err != nil {
		return "", fmt.Errorf("embed probe queries: %w", err)
	}

	wanted := make(map[string]bool, len(documentIDs))
	for _, id := range documentIDs {
		wanted[id] = true
	}

	// The probes are independent searches over the shared pool; run them
	// concurrently and merge under the lock.
	var (
		mu   sync.Mutex
		seen = make(map[string]core.SearchHit)
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, vec := range vectors {
		vec := vec
		g.Go(func() error {
			hits, err := s.store.Search(gctx, collection, vec, topK, s.scoreMin)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, h := range hits {
				if len(wanted) > 0 && !wanted[h.Payload.DocumentID] {
					continue
				}
				if _, dup := seen[h.ID]; !dup {
					seen[h.ID] = h
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", fmt.Errorf("probe search: %w", err)
	}
	if len(seen) == 0 {
		return "", nil
	}

	// Restore reading order rather than relevance rank.
	hits := make([]core.SearchHit, 0, len(seen))
	for _, h := range seen {
		hits = append(hits, h)
	}
	sort.Slice(hits, func(a, b int) bool {
		if hits[a].Payload.DocumentID != hits[b].Payload.DocumentID {
			return hits[a].Payload.DocumentID < hits[b].Payload.DocumentID
		}
		return hits[a].Payload.ChunkIndex < hits[b].Payload.ChunkIndex
	})

	budget := maxTokensTotal * s.charsPerToken
	var b strings.Builder
	for _, h := range hits {
		text := h.Payload.Text
		if text == "" {
			continue
		}
		sep := ""
		if b.Len() > 0 {
			sep = "\n\n"
		}
		remaining := budget - b.Len() - len(sep)
		if remaining <= 0 {
			break
		}
		if len(text) > remaining {
			// Back up to a rune boundary so the truncated tail stays valid
			// UTF-8.
			cut := remaining
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		b.WriteString(sep)
		b.WriteString(text)
	}
	return b.String(), nil
}
