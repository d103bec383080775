package ingestion_engine

// Progress event types, emitted in strict processing order. Consumers must
// rely on event order, not type alone: an error for document N does not
// invalidate an earlier completion for document N-1.
const (
	EventProgress         = "progress"
	EventDocumentComplete = "document_complete"
	EventError            = "error"
	EventDone             = "done"
)

// Pipeline phases, in per-document order.
const (
	PhaseChunking  = "chunking"
	PhaseEmbedding = "embedding"
	PhaseUpserting = "upserting"
	PhaseCompleted = "completed"
	PhaseError     = "error"
)

// ProgressEvent is one self-contained push event mirroring a pipeline phase
// transition.
type ProgressEvent struct {
	Type         string  `json:"type"`
	Phase        string  `json:"phase,omitempty"`
	DocumentID   string  `json:"document_id,omitempty"`
	DocumentName string  `json:"document_name,omitempty"`
	Current      int     `json:"current,omitempty"` // 1-based document index
	Total        int     `json:"total,omitempty"`
	ChunkCount   int     `json:"chunk_count,omitempty"`
	VectorCount  int     `json:"vector_count,omitempty"`
	Message      string  `json:"message,omitempty"`
	Error        string  `json:"error,omitempty"`
	Summary      *Result `json:"summary,omitempty"` // set on the final done event
}

// Stream carries progress events from one pipeline run to one consumer.
// Publish blocks until the consumer takes the event, so events are flushed
// per phase transition and never reordered; a consumer that stops reading
// must keep draining (see the SSE handler) so processing is never corrupted
// by a dropped connection.
type Stream struct {
	ch chan ProgressEvent
}

func NewStream() *Stream {
	return &Stream{ch: make(chan ProgressEvent)}
}

// Events is the receive side for the consumer.
func (s *Stream) Events() <-chan ProgressEvent {
	return s.ch
}

func (s *Stream) publish(ev ProgressEvent) {
	if s == nil {
		return
	}
	s.ch <- ev
}

// Close ends the stream after the final done event.
func (s *Stream) Close() {
	if s != nil {
		close(s.ch)
	}
}
