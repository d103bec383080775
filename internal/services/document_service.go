package services

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/core/ingestion_engine"
	"github.com/markdave123-py/vectora/internal/models"
)

// DocumentService owns document metadata and body plumbing: uploads land in
// object storage, and the ingestion pipeline fetches normalized text back
// through Fetch.
type DocumentService struct {
	db        core.DbClient
	storage   core.ObjectClient
	extractor ingestion_engine.TextExtractor
	bucket    string
}

func NewDocumentService(db core.DbClient, storage core.ObjectClient, extractor ingestion_engine.TextExtractor, bucket string) *DocumentService {
	return &DocumentService{db: db, storage: storage, extractor: extractor, bucket: bucket}
}

func (s *DocumentService) UploadAndCreate(ctx context.Context, userID, filename, contentType string, data []byte, sourceType string) (*models.Document, error) {
	docID := uuid.NewString()
	key := s.objectKey(userID, docID, filename)

	url, err := s.storage.UploadFile(ctx, s.bucket, key, data, contentType)
	if err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          docID,
		UserID:      userID,
		FileName:    filename,
		StorageURL:  url,
		SourceType:  sourceType, // "upload" or "url"
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		Status:      "uploaded",
	}
	if err := s.db.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) Get(ctx context.Context, id string) (*models.Document, error) {
	return s.db.GetDocumentByID(ctx, id)
}

func (s *DocumentService) ListByUser(ctx context.Context, userID string) ([]models.Document, error) {
	return s.db.ListDocumentsByUser(ctx, userID)
}

// Fetch loads a document's metadata and normalized text for ingestion and
// bumps its access counter.
func (s *DocumentService) Fetch(ctx context.Context, documentID string) (*models.Document, string, error) {
	doc, err := s.db.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, "", err
	}
	if doc == nil {
		return nil, "", fmt.Errorf("document not found: %s", documentID)
	}

	bucket, key := parseS3URL(doc.StorageURL)
	body, err := s.storage.GetObjectReader(ctx, bucket, key)
	if err != nil {
		return nil, "", fmt.Errorf("get document body: %w", err)
	}
	defer body.Close()

	text, err := s.extractor.ExtractText(body, doc.ContentType)
	if err != nil {
		return nil, "", err
	}

	_ = s.db.IncrementDocumentAccess(ctx, documentID)
	return doc, text, nil
}

func (s *DocumentService) SetStatus(ctx context.Context, docID string, status string) error {
	return s.db.UpdateDocumentStatus(ctx, docID, status)
}

// objectKey creates a consistent S3 key layout.
func (s *DocumentService) objectKey(userID, docID, filename string) string {
	filename = strings.TrimSpace(filename)
	filename = strings.ReplaceAll(filename, " ", "_")
	return path.Join("users", userID, "documents", docID, filename)
}

// parseS3URL extracts the bucket and key from a virtual-hosted–style S3 URL.
// Example: https://my-bucket.s3.us-east-2.amazonaws.com/path/to/file.pdf
func parseS3URL(u string) (bucket, key string) {
	hostPath := strings.SplitN(strings.TrimPrefix(u, "https://"), "/", 2)
	host := hostPath[0]
	if len(hostPath) == 2 {
		key = hostPath[1]
	}
	parts := strings.Split(host, ".")
	if len(parts) > 0 {
		bucket = parts[0]
	}
	return bucket, key
}

var _ ingestion_engine.DocumentSource = (*DocumentService)(nil)
