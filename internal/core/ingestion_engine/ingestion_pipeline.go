package ingestion_engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/models"
)

// Per-document data-integrity failures. The texts are ledgered verbatim so
// audits can tell broken chunking apart from misaligned embeddings.
var (
	ErrNoChunks = errors.New("no chunks produced")
)

// Chunker produces ordered chunks for one document's text.
type Chunker interface {
	Chunk(ctx context.Context, filename, text string) ([]models.Chunk, error)
}

// DocumentSource resolves a document id to its metadata and normalized text.
type DocumentSource interface {
	Fetch(ctx context.Context, documentID string) (*models.Document, string, error)
	SetStatus(ctx context.Context, documentID, status string) error
}

// Ledger appends ingestion attempts and answers the duplicate check; writes
// never block or abort the pipeline.
type Ledger interface {
	RecordSuccess(ctx context.Context, documentID, collection string, chunkCount int, vectorIDs []string) error
	RecordFailure(ctx context.Context, documentID, collection, errText string) error
	AlreadyUploaded(ctx context.Context, documentID, collection string) (bool, error)
}

// StatusSkipped marks a document whose (document, collection) pair already
// has a success record; re-running an ingest over it is a no-op, not an
// error.
const StatusSkipped = "skipped"

// DocumentResult is the per-document detail inside a run's aggregate result.
type DocumentResult struct {
	DocumentID   string   `json:"document_id"`
	DocumentName string   `json:"document_name,omitempty"`
	Status       string   `json:"status"` // success | failure | skipped
	ChunkCount   int      `json:"chunk_count,omitempty"`
	VectorIDs    []string `json:"vector_ids,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Result aggregates one pipeline run.
type Result struct {
	Total        int              `json:"total"`
	SuccessCount int              `json:"success_count"`
	FailureCount int              `json:"failure_count"`
	SkippedCount int              `json:"skipped_count,omitempty"`
	Documents    []DocumentResult `json:"documents"`
}

// DocumentIngestor orchestrates chunking → embedding → upserting → ledger
// for a batch of documents against one collection. Documents are processed
// sequentially to bound peak memory and downstream load; failures are
// isolated per document and never abort the batch.
type DocumentIngestor struct {
	docs     DocumentSource
	chunker  Chunker
	embedder core.EmbeddingProvider
	store    core.VectorStore
	ledger   Ledger
}

func NewDocumentIngestor(docs DocumentSource, chunker Chunker, embedder core.EmbeddingProvider, store core.VectorStore, ledger Ledger) *DocumentIngestor {
	return &DocumentIngestor{docs: docs, chunker: chunker, embedder: embedder, store: store, ledger: ledger}
}

// Run ingests documentIDs into collection, publishing progress to stream
// (which may be nil). Collection absence is a precondition failure: it
// aborts before any document is touched and is returned as the run's sole
// outcome. The stream always receives a terminal done event, even then.
func (i *DocumentIngestor) Run(ctx context.Context, collection string, documentIDs []string, stream *Stream) (*Result, error) {
	defer stream.Close()

	exists, err := i.store.CollectionExists(ctx, collection)
	if err == nil && !exists {
		err = fmt.Errorf("collection not found: %s", collection)
	}
	if err != nil {
		stream.publish(ProgressEvent{Type: EventError, Phase: PhaseError, Error: err.Error()})
		stream.publish(ProgressEvent{Type: EventDone, Summary: &Result{}})
		return nil, err
	}

	res := &Result{Total: len(documentIDs)}
	for idx, docID := range documentIDs {
		dr := i.processOne(ctx, collection, docID, idx+1, len(documentIDs), stream)
		res.Documents = append(res.Documents, dr)
		switch dr.Status {
		case models.UploadSuccess:
			res.SuccessCount++
			stream.publish(ProgressEvent{
				Type: EventDocumentComplete, Phase: PhaseCompleted,
				DocumentID: dr.DocumentID, DocumentName: dr.DocumentName,
				Current: idx + 1, Total: len(documentIDs),
				ChunkCount: dr.ChunkCount, VectorCount: len(dr.VectorIDs),
			})
		case StatusSkipped:
			res.SkippedCount++
			stream.publish(ProgressEvent{
				Type: EventDocumentComplete, Phase: PhaseCompleted,
				DocumentID: dr.DocumentID,
				Current:    idx + 1, Total: len(documentIDs),
				Message: "already ingested",
			})
		default:
			res.FailureCount++
			stream.publish(ProgressEvent{
				Type: EventError, Phase: PhaseError,
				DocumentID: dr.DocumentID, DocumentName: dr.DocumentName,
				Current: idx + 1, Total: len(documentIDs),
				Error: dr.Error,
			})
		}
	}

	stream.publish(ProgressEvent{Type: EventDone, Summary: res})
	return res, nil
}

// processOne runs the phase sequence for a single document. Every error is
// folded into a failure result and a ledger failure record; nothing escapes.
func (i *DocumentIngestor) processOne(ctx context.Context, collection, docID string, current, total int, stream *Stream) DocumentResult {
	dr := DocumentResult{DocumentID: docID}

	// Idempotence: a pair with a success record is skipped, not re-ingested.
	// A failed duplicate check is logged and the document processed anyway;
	// the worst case is re-writing identical content under new point ids.
	if done, err := i.ledger.AlreadyUploaded(ctx, docID, collection); err != nil {
		log.Printf("ingestor: duplicate check for doc %s: %v", docID, err)
	} else if done {
		dr.Status = StatusSkipped
		return dr
	}

	fail := func(err error) DocumentResult {
		dr.Status = models.UploadFailure
		dr.Error = err.Error()
		_ = i.docs.SetStatus(ctx, docID, "failed")
		if lerr := i.ledger.RecordFailure(ctx, docID, collection, dr.Error); lerr != nil {
			log.Printf("ingestor: ledger failure write for doc %s: %v", docID, lerr)
		}
		return dr
	}

	doc, text, err := i.docs.Fetch(ctx, docID)
	if err != nil {
		return fail(fmt.Errorf("load document: %w", err))
	}
	dr.DocumentName = doc.FileName
	_ = i.docs.SetStatus(ctx, docID, "processing")

	stream.publish(ProgressEvent{
		Type: EventProgress, Phase: PhaseChunking,
		DocumentID: docID, DocumentName: doc.FileName,
		Current: current, Total: total,
		Message: "requesting chunks",
	})

	chunks, err := i.chunker.Chunk(ctx, doc.FileName, text)
	if err != nil {
		return fail(err)
	}
	if len(chunks) == 0 {
		return fail(ErrNoChunks)
	}
	dr.ChunkCount = len(chunks)

	stream.publish(ProgressEvent{
		Type: EventProgress, Phase: PhaseEmbedding,
		DocumentID: docID, DocumentName: doc.FileName,
		Current: current, Total: total,
		ChunkCount: len(chunks),
		Message:    "embedding chunks",
	})

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Text
	}
	vectors, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		return fail(err)
	}
	// Guard against silent metadata/vector misalignment: never upsert when
	// the counts disagree.
	if len(vectors) != len(chunks) {
		return fail(fmt.Errorf("embedding count mismatch: %d chunks, %d vectors", len(chunks), len(vectors)))
	}

	stream.publish(ProgressEvent{
		Type: EventProgress, Phase: PhaseUpserting,
		DocumentID: docID, DocumentName: doc.FileName,
		Current: current, Total: total,
		ChunkCount: len(chunks), VectorCount: len(vectors),
		Message: "writing vectors",
	})

	points := make([]core.VectorPoint, len(chunks))
	for n, c := range chunks {
		points[n] = core.VectorPoint{
			ID:     uuid.NewString(),
			Vector: vectors[n],
			Payload: models.ChunkPayload{
				DocumentID:   doc.ID,
				DocumentName: doc.FileName,
				ChunkIndex:   c.Index,
				TokenCount:   c.NumTokens,
				Headings:     c.Headings,
				Text:         c.Text,
			},
		}
	}
	ids, err := i.store.Upsert(ctx, collection, points)
	if err != nil {
		return fail(fmt.Errorf("upsert vectors: %w", err))
	}

	dr.Status = models.UploadSuccess
	dr.VectorIDs = ids
	_ = i.docs.SetStatus(ctx, docID, "ready")

	// The store has durably accepted the vectors; the ledger is bookkeeping.
	// A failed write here is logged, never rolled back.
	if err := i.ledger.RecordSuccess(ctx, docID, collection, len(chunks), ids); err != nil {
		log.Printf("ingestor: ledger success write for doc %s: %v", docID, err)
	}
	return dr
}
