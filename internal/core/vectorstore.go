package core

import (
	"context"

	"github.com/markdave123-py/vectora/internal/models"
)

// Distance metrics understood by the vector backends.
const (
	DistanceCosine    = "cosine"
	DistanceEuclidean = "euclidean"
	DistanceDot       = "dot"
)

// VectorPoint pairs one embedding with its chunk payload. The ID is assigned
// by the caller before upsert so ledger rows can reference points without a
// read-back.
type VectorPoint struct {
	ID      string
	Vector  []float32
	Payload models.ChunkPayload
}

// SearchHit is one ranked result from a similarity search.
type SearchHit struct {
	ID      string
	Score   float32
	Payload models.ChunkPayload
}

// VectorStore abstracts the external vector database: collection lifecycle,
// point upsert/delete, similarity search, and a scroll for export. The store
// is the source of truth for collection existence; the registry only decides
// who may see what.
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int, distance string) error
	DeleteCollection(ctx context.Context, name string) error
	CollectionExists(ctx context.Context, name string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)

	// Upsert writes all points in one call and returns the ids the store
	// accepted, in input order.
	Upsert(ctx context.Context, collection string, points []VectorPoint) ([]string, error)

	Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]SearchHit, error)

	DeleteByDocument(ctx context.Context, collection, documentID string) error

	// ScrollAll pages through every point in the collection, invoking fn per
	// page. Used for export and migration.
	ScrollAll(ctx context.Context, collection string, pageSize int, fn func(points []VectorPoint) error) error
}
