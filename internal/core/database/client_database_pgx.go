package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/markdave123-py/vectora/internal/config"
	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Pool settings sized for an API service sharing the pool with the
	// pgvector backend.
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

// DB exposes the underlying pool so the pgvector backend can share it.
func (c *DatabaseClient) DB() *sql.DB {
	return c.db
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Users

func (c *DatabaseClient) CreateUser(ctx context.Context, user *models.User) error {
	if user == nil {
		return errors.New("nil user")
	}
	// Timestamps come from the table defaults; a Go zero time.Time is not
	// NULL and would otherwise be stored as year one.
	const q = `
		INSERT INTO users (id, first_name, email, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	return c.db.QueryRowContext(ctx, q,
		user.ID, user.FirstName, user.Email, user.PasswordHash, user.Role,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (c *DatabaseClient) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `
		SELECT id, first_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE email = $1
	`
	var u models.User
	err := c.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.FirstName, &u.Email, &u.PasswordHash, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Documents

func (c *DatabaseClient) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	const q = `
		INSERT INTO documents
			(id, user_id, file_name, storage_url, source_type, content_type, size_bytes, status)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at
	`
	return c.db.QueryRowContext(ctx, q,
		doc.ID, doc.UserID, doc.FileName, doc.StorageURL, doc.SourceType, doc.ContentType,
		doc.SizeBytes, doc.Status,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
}

func (c *DatabaseClient) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	const q = `
		SELECT id, user_id, file_name, storage_url, source_type, content_type, size_bytes, status, access_count, created_at, updated_at
		FROM documents
		WHERE id = $1
	`
	var d models.Document
	err := c.db.QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.UserID, &d.FileName, &d.StorageURL, &d.SourceType, &d.ContentType,
		&d.SizeBytes, &d.Status, &d.AccessCount, &d.CreatedAt, &d.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *DatabaseClient) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	const q = `
		SELECT id, user_id, file_name, storage_url, source_type, content_type, size_bytes, status, access_count, created_at, updated_at
		FROM documents
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.FileName, &d.StorageURL, &d.SourceType, &d.ContentType,
			&d.SizeBytes, &d.Status, &d.AccessCount, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	const q = `
		UPDATE documents
		SET status = $2, updated_at = now()
		WHERE id = $1
	`
	res, err := c.db.ExecContext(ctx, q, id, status)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %s", id)
	}
	return nil
}

func (c *DatabaseClient) IncrementDocumentAccess(ctx context.Context, id string) error {
	const q = `
		UPDATE documents
		SET access_count = access_count + 1, updated_at = now()
		WHERE id = $1
	`
	_, err := c.db.ExecContext(ctx, q, id)
	return err
}

// Collection registry

func (c *DatabaseClient) CreateCollection(ctx context.Context, col *models.Collection) error {
	if col == nil {
		return errors.New("nil collection")
	}
	allowed, err := json.Marshal(col.AllowedUsers)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO collections (name, owner_id, visibility, description, allowed_users)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	return c.db.QueryRowContext(ctx, q,
		col.Name, col.OwnerID, col.Visibility, col.Description, allowed,
	).Scan(&col.CreatedAt, &col.UpdatedAt)
}

func (c *DatabaseClient) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	const q = `
		SELECT name, owner_id, visibility, description, allowed_users, created_at, updated_at
		FROM collections WHERE name = $1
	`
	return c.scanCollection(c.db.QueryRowContext(ctx, q, name))
}

func (c *DatabaseClient) UpdateCollection(ctx context.Context, col *models.Collection) error {
	if col == nil {
		return errors.New("nil collection")
	}
	allowed, err := json.Marshal(col.AllowedUsers)
	if err != nil {
		return err
	}
	const q = `
		UPDATE collections
		SET visibility = $2, description = $3, allowed_users = $4, updated_at = now()
		WHERE name = $1
	`
	res, err := c.db.ExecContext(ctx, q, col.Name, col.Visibility, col.Description, allowed)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("collection not found: %s", col.Name)
	}
	return nil
}

func (c *DatabaseClient) DeleteCollection(ctx context.Context, name string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM collections WHERE name = $1`, name)
	return err
}

// ListCollectionsCoarse applies the storage-level visibility filter only:
// public, owned by the caller, or shared. Shared membership is checked
// exactly by the service layer; list containment is not efficiently a single
// storage predicate here.
func (c *DatabaseClient) ListCollectionsCoarse(ctx context.Context, callerID string) ([]models.Collection, error) {
	const q = `
		SELECT name, owner_id, visibility, description, allowed_users, created_at, updated_at
		FROM collections
		WHERE visibility = 'public' OR owner_id = $1 OR visibility = 'shared'
		ORDER BY name
	`
	return c.queryCollections(ctx, q, callerID)
}

func (c *DatabaseClient) ListPublicCollections(ctx context.Context) ([]models.Collection, error) {
	const q = `
		SELECT name, owner_id, visibility, description, allowed_users, created_at, updated_at
		FROM collections
		WHERE visibility = 'public'
		ORDER BY name
	`
	return c.queryCollections(ctx, q)
}

func (c *DatabaseClient) queryCollections(ctx context.Context, q string, args ...any) ([]models.Collection, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Collection
	for rows.Next() {
		var (
			col     models.Collection
			allowed []byte
		)
		if err := rows.Scan(&col.Name, &col.OwnerID, &col.Visibility, &col.Description,
			&allowed, &col.CreatedAt, &col.UpdatedAt); err != nil {
			return nil, err
		}
		if len(allowed) > 0 {
			if err := json.Unmarshal(allowed, &col.AllowedUsers); err != nil {
				return nil, err
			}
		}
		out = append(out, col)
	}
	return out, rows.Err()
}

func (c *DatabaseClient) scanCollection(row *sql.Row) (*models.Collection, error) {
	var (
		col     models.Collection
		allowed []byte
	)
	err := row.Scan(&col.Name, &col.OwnerID, &col.Visibility, &col.Description,
		&allowed, &col.CreatedAt, &col.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(allowed) > 0 {
		if err := json.Unmarshal(allowed, &col.AllowedUsers); err != nil {
			return nil, err
		}
	}
	return &col, nil
}

// Upload ledger

func (c *DatabaseClient) InsertUploadRecord(ctx context.Context, rec *models.UploadRecord) error {
	if rec == nil {
		return errors.New("nil upload record")
	}
	vectorIDs, err := json.Marshal(rec.VectorIDs)
	if err != nil {
		return err
	}
	const q = `
		INSERT INTO upload_records (document_id, collection_name, chunk_count, vector_ids, status, error)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	return c.db.QueryRowContext(ctx, q,
		rec.DocumentID, rec.CollectionName, rec.ChunkCount, vectorIDs, rec.Status, rec.Error,
	).Scan(&rec.ID, &rec.CreatedAt)
}

func (c *DatabaseClient) LatestSuccessUpload(ctx context.Context, documentID, collectionName string) (*models.UploadRecord, error) {
	const q = `
		SELECT id, document_id, collection_name, chunk_count, vector_ids, status, error, created_at
		FROM upload_records
		WHERE document_id = $1 AND collection_name = $2 AND status = 'success'
		ORDER BY id DESC
		LIMIT 1
	`
	rows, err := c.queryUploads(ctx, q, documentID, collectionName)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (c *DatabaseClient) ListUploadsByDocument(ctx context.Context, documentID string) ([]models.UploadRecord, error) {
	const q = `
		SELECT id, document_id, collection_name, chunk_count, vector_ids, status, error, created_at
		FROM upload_records
		WHERE document_id = $1
		ORDER BY id DESC
	`
	return c.queryUploads(ctx, q, documentID)
}

func (c *DatabaseClient) ListUploadsByCollection(ctx context.Context, collectionName string) ([]models.UploadRecord, error) {
	const q = `
		SELECT id, document_id, collection_name, chunk_count, vector_ids, status, error, created_at
		FROM upload_records
		WHERE collection_name = $1
		ORDER BY id DESC
	`
	return c.queryUploads(ctx, q, collectionName)
}

func (c *DatabaseClient) queryUploads(ctx context.Context, q string, args ...any) ([]models.UploadRecord, error) {
	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.UploadRecord
	for rows.Next() {
		var (
			rec       models.UploadRecord
			vectorIDs []byte
		)
		if err := rows.Scan(&rec.ID, &rec.DocumentID, &rec.CollectionName, &rec.ChunkCount,
			&vectorIDs, &rec.Status, &rec.Error, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if len(vectorIDs) > 0 {
			if err := json.Unmarshal(vectorIDs, &rec.VectorIDs); err != nil {
				return nil, err
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ core.DbClient = (*DatabaseClient)(nil)
