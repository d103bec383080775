package ingestion_engine

// IngestConfig tunes the ingestion pipeline.
//
// EmbedDim:      embedding dimension used when creating collections.
// Distance:      similarity metric for new collections.
// ScoreMin:      minimum relevance for sampler searches.
// CharsPerToken: character budget multiplier for the sampler (~4 chars/token).
type IngestConfig struct {
	EmbedDim      int
	Distance      string
	ScoreMin      float32
	CharsPerToken int
}
