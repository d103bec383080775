package models

import (
	"time"
)

// Collection visibility tiers.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
	VisibilityShared  = "shared"
)

// Upload record statuses.
const (
	UploadSuccess = "success"
	UploadFailure = "failure"
)

// User represents an authenticated user of the system.
type User struct {
	ID           string    `db:"id" json:"id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"` // "user" or "admin"
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Document represents a user-uploaded document whose normalized text feeds
// the ingestion pipeline.
type Document struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	StorageURL  string    `db:"storage_url" json:"storage_url"` // S3 URL of the stored body
	SourceType  string    `db:"source_type" json:"source_type"` // "upload" or "url"
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	Status      string    `db:"status" json:"status"` // uploaded | processing | ready | failed
	AccessCount int       `db:"access_count" json:"access_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Collection is the registry row for a named vector collection: who owns it,
// who may see it. Presence in the vector store governs existence; this row
// governs visibility.
type Collection struct {
	Name         string    `db:"name" json:"name"`
	OwnerID      string    `db:"owner_id" json:"owner_id"`
	Visibility   string    `db:"visibility" json:"visibility"` // public | private | shared
	Description  string    `db:"description" json:"description"`
	AllowedUsers []string  `db:"allowed_users" json:"allowed_users"` // consulted only when shared
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UploadRecord is one append-only ingestion attempt for a
// (document, collection) pair. Records are never mutated; the current state
// of a pair is its latest success record, if any.
type UploadRecord struct {
	ID             int64     `db:"id" json:"id"`
	DocumentID     string    `db:"document_id" json:"document_id"`
	CollectionName string    `db:"collection_name" json:"collection_name"`
	ChunkCount     int       `db:"chunk_count" json:"chunk_count"`
	VectorIDs      []string  `db:"vector_ids" json:"vector_ids"`
	Status         string    `db:"status" json:"status"` // success | failure
	Error          string    `db:"error" json:"error,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// Chunk is one bounded text span produced by the remote chunking service.
// Transient: it exists only between chunking and upsert.
type Chunk struct {
	Text      string   `json:"text"`
	NumTokens int      `json:"num_tokens"`
	Headings  []string `json:"headings"` // ordered heading path for citation display
	Index     int      `json:"index"`    // zero-based position inside the document
}

// ChunkPayload is the typed metadata bag stored next to each vector.
// Extra carries source-specific fields that have no fixed column.
type ChunkPayload struct {
	DocumentID   string         `json:"document_id"`
	DocumentName string         `json:"document_name"`
	ChunkIndex   int            `json:"chunk_index"`
	TokenCount   int            `json:"token_count"`
	Headings     []string       `json:"headings,omitempty"`
	Text         string         `json:"text"`
	Extra        map[string]any `json:"extra,omitempty"`
}
