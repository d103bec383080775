package services

import (
	"context"

	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/models"
)

// LedgerService is the append-only upload history for (document, collection)
// pairs. The current state of a pair is its latest success record; failed
// attempts are retained for audit and never block a re-upload.
type LedgerService struct {
	db core.DbClient
}

func NewLedgerService(db core.DbClient) *LedgerService {
	return &LedgerService{db: db}
}

func (s *LedgerService) RecordSuccess(ctx context.Context, documentID, collection string, chunkCount int, vectorIDs []string) error {
	return s.db.InsertUploadRecord(ctx, &models.UploadRecord{
		DocumentID:     documentID,
		CollectionName: collection,
		ChunkCount:     chunkCount,
		VectorIDs:      vectorIDs,
		Status:         models.UploadSuccess,
	})
}

func (s *LedgerService) RecordFailure(ctx context.Context, documentID, collection, errText string) error {
	return s.db.InsertUploadRecord(ctx, &models.UploadRecord{
		DocumentID:     documentID,
		CollectionName: collection,
		Status:         models.UploadFailure,
		Error:          errText,
	})
}

// AlreadyUploaded reports whether a success record exists for the exact
// (document, collection) pair.
func (s *LedgerService) AlreadyUploaded(ctx context.Context, documentID, collection string) (bool, error) {
	rec, err := s.db.LatestSuccessUpload(ctx, documentID, collection)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

func (s *LedgerService) HistoryByDocument(ctx context.Context, documentID string) ([]models.UploadRecord, error) {
	return s.db.ListUploadsByDocument(ctx, documentID)
}

func (s *LedgerService) HistoryByCollection(ctx context.Context, collection string) ([]models.UploadRecord, error) {
	return s.db.ListUploadsByCollection(ctx, collection)
}
