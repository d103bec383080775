package core

import (
	"context"
	"io"

	"github.com/markdave123-py/vectora/internal/models"
)

// DbClient defines all persistence operations the services need.
// It abstracts Postgres so higher layers never depend on a specific DB.
type DbClient interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocumentByID(ctx context.Context, id string) (*models.Document, error)
	ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id string, status string) error
	IncrementDocumentAccess(ctx context.Context, id string) error

	// Collection registry rows. ListCollectionsCoarse applies only the
	// storage-level visibility filter (public OR owner OR shared); the exact
	// shared-membership check happens in the service layer.
	CreateCollection(ctx context.Context, col *models.Collection) error
	GetCollection(ctx context.Context, name string) (*models.Collection, error)
	UpdateCollection(ctx context.Context, col *models.Collection) error
	DeleteCollection(ctx context.Context, name string) error
	ListCollectionsCoarse(ctx context.Context, callerID string) ([]models.Collection, error)
	ListPublicCollections(ctx context.Context) ([]models.Collection, error)

	// Upload ledger: append-only, never updated.
	InsertUploadRecord(ctx context.Context, rec *models.UploadRecord) error
	LatestSuccessUpload(ctx context.Context, documentID, collectionName string) (*models.UploadRecord, error)
	ListUploadsByDocument(ctx context.Context, documentID string) ([]models.UploadRecord, error)
	ListUploadsByCollection(ctx context.Context, collectionName string) ([]models.UploadRecord, error)

	Close() error
}

// ObjectClient moves raw document bodies in and out of object storage.
// Uploads are buffered (multipart bodies are already in memory); reads are
// streamed so large documents never need a second full copy.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}
