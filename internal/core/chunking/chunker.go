// Package chunking splits document text into token-bounded chunks via the
// remote chunking service.
package chunking

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/markdave123-py/vectora/internal/core/remotetask"
	"github.com/markdave123-py/vectora/internal/models"
)

// Gateway submits chunking jobs and collects their results.
type Gateway struct {
	tasks        *remotetask.Client
	maxTokens    int
	tokenizer    string
	mergePeers   bool
	pollInterval time.Duration
	maxWait      time.Duration
}

// Config tunes the chunking job descriptor and the poll loop.
type Config struct {
	MaxTokensPerChunk int
	Tokenizer         string
	MergePeers        bool
	PollInterval      time.Duration
	MaxWait           time.Duration
}

func NewGateway(tasks *remotetask.Client, cfg Config) *Gateway {
	if cfg.MaxTokensPerChunk <= 0 {
		cfg.MaxTokensPerChunk = 512
	}
	if cfg.Tokenizer == "" {
		cfg.Tokenizer = "cl100k_base"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = 10 * time.Minute
	}
	return &Gateway{
		tasks:        tasks,
		maxTokens:    cfg.MaxTokensPerChunk,
		tokenizer:    cfg.Tokenizer,
		mergePeers:   cfg.MergePeers,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
	}
}

type chunkJob struct {
	Content           string `json:"content"` // base64 of the document text
	Filename          string `json:"filename"`
	MaxTokensPerChunk int    `json:"max_tokens_per_chunk"`
	Tokenizer         string `json:"tokenizer"`
	MergePeers        bool   `json:"merge_peers"`
}

type chunkResult struct {
	Chunks []struct {
		Text      string   `json:"text"`
		NumTokens int      `json:"num_tokens"`
		Headings  []string `json:"headings"`
	} `json:"chunks"`
}

// Chunk splits text into ordered chunks. Zero returned chunks is an error,
// not a valid empty success.
func (g *Gateway) Chunk(ctx context.Context, filename, text string) ([]models.Chunk, error) {
	job := chunkJob{
		Content:           base64.StdEncoding.EncodeToString([]byte(text)),
		Filename:          filename,
		MaxTokensPerChunk: g.maxTokens,
		Tokenizer:         g.tokenizer,
		MergePeers:        g.mergePeers,
	}

	taskID, err := g.tasks.Submit(ctx, job)
	if err != nil {
		return nil, err
	}
	if err := g.tasks.PollUntilDone(ctx, taskID, g.pollInterval, g.maxWait); err != nil {
		return nil, err
	}

	var res chunkResult
	if err := g.tasks.FetchResult(ctx, taskID, &res); err != nil {
		return nil, err
	}
	if len(res.Chunks) == 0 {
		return nil, fmt.Errorf("chunking task %s returned no chunks", taskID)
	}

	chunks := make([]models.Chunk, len(res.Chunks))
	for i, c := range res.Chunks {
		chunks[i] = models.Chunk{
			Text:      c.Text,
			NumTokens: c.NumTokens,
			Headings:  c.Headings,
			Index:     i,
		}
	}
	return chunks, nil
}
