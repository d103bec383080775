package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/markdave123-py/vectora/internal/core"
)

// PgvectorStore keeps vectors inside Postgres via pgvector, for deployments
// that do not run a dedicated vector database. Selected with
// VECTOR_BACKEND=pgvector; shares the pgx pool with the metadata tables.
type PgvectorStore struct {
	db *sql.DB
}

func NewPgvectorStore(db *sql.DB) *PgvectorStore {
	return &PgvectorStore{db: db}
}

func (s *PgvectorStore) CreateCollection(ctx context.Context, name string, dimension int, distance string) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	switch distance {
	case "", core.DistanceCosine, core.DistanceEuclidean, core.DistanceDot:
	default:
		return fmt.Errorf("unsupported distance metric %q", distance)
	}
	if distance == "" {
		distance = core.DistanceCosine
	}
	const q = `
		INSERT INTO vector_collections (name, dimension, distance)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, q, name, dimension, distance)
	return err
}

func (s *PgvectorStore) DeleteCollection(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_points WHERE collection_name = $1`, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vector_collections WHERE name = $1`, name); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (s *PgvectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM vector_collections WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func (s *PgvectorStore) ListCollections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM vector_collections ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// Upsert inserts all points in a single transaction so a success means the
// whole document's vectors are durable.
func (s *PgvectorStore) Upsert(ctx context.Context, collection string, points []core.VectorPoint) ([]string, error) {
	if len(points) == 0 {
		return nil, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}

	const q = `
		INSERT INTO vector_points
			(id, collection_name, embedding, document_id, document_name, chunk_index, token_count, headings, chunk_text, extra)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			chunk_text = EXCLUDED.chunk_text,
			headings = EXCLUDED.headings,
			token_count = EXCLUDED.token_count,
			extra = EXCLUDED.extra
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	defer stmt.Close()

	ids := make([]string, len(points))
	for i := range points {
		p := &points[i]
		ids[i] = p.ID

		headings, err := json.Marshal(p.Payload.Headings)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		extra, err := json.Marshal(p.Payload.Extra)
		if err != nil {
			_ = tx.Rollback()
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, collection, pgvector.NewVector(p.Vector),
			p.Payload.DocumentID, p.Payload.DocumentName, p.Payload.ChunkIndex,
			p.Payload.TokenCount, headings, p.Payload.Text, extra,
		); err != nil {
			_ = tx.Rollback()
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *PgvectorStore) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]core.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	distance, err := s.collectionDistance(ctx, collection)
	if err != nil {
		return nil, err
	}

	// Normalize every metric to "higher is better" so the threshold has one
	// meaning across backends.
	var scoreExpr string
	switch distance {
	case core.DistanceEuclidean:
		scoreExpr = `-(embedding <-> $2)`
	case core.DistanceDot:
		scoreExpr = `-(embedding <#> $2)`
	default:
		scoreExpr = `1 - (embedding <=> $2)`
	}

	// The threshold is part of the SQL predicate so LIMIT counts only
	// qualifying rows; filtering after LIMIT would silently shrink pages.
	withThreshold := scoreThreshold > 0
	args := []any{collection, pgvector.NewVector(vector)}
	if withThreshold {
		args = append(args, scoreThreshold)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, searchQuery(scoreExpr, withThreshold), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []core.SearchHit
	for rows.Next() {
		var (
			hit      core.SearchHit
			headings []byte
			extra    []byte
		)
		if err := rows.Scan(&hit.ID, &hit.Score, &hit.Payload.DocumentID, &hit.Payload.DocumentName,
			&hit.Payload.ChunkIndex, &hit.Payload.TokenCount, &headings, &hit.Payload.Text, &extra); err != nil {
			return nil, err
		}
		if len(headings) > 0 {
			if err := json.Unmarshal(headings, &hit.Payload.Headings); err != nil {
				return nil, err
			}
		}
		if len(extra) > 0 && string(extra) != "null" {
			if err := json.Unmarshal(extra, &hit.Payload.Extra); err != nil {
				return nil, err
			}
		}
		hits = append(hits, hit)
	}
	return hits, rows.Err()
}

// searchQuery builds the scored select. The score expression repeats in the
// WHERE clause because Postgres cannot reference an output alias there.
func searchQuery(scoreExpr string, withThreshold bool) string {
	q := fmt.Sprintf(`
		SELECT id, %s AS score, document_id, document_name, chunk_index, token_count, headings, chunk_text, extra
		FROM vector_points
		WHERE collection_name = $1`, scoreExpr)
	if withThreshold {
		return q + fmt.Sprintf(` AND %s >= $3
		ORDER BY score DESC
		LIMIT $4`, scoreExpr)
	}
	return q + `
		ORDER BY score DESC
		LIMIT $3`
}

func (s *PgvectorStore) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM vector_points WHERE collection_name = $1 AND document_id = $2`,
		collection, documentID)
	return err
}

func (s *PgvectorStore) ScrollAll(ctx context.Context, collection string, pageSize int, fn func(points []core.VectorPoint) error) error {
	if pageSize <= 0 {
		pageSize = 256
	}
	lastID := ""
	for {
		const q = `
			SELECT id, embedding, document_id, document_name, chunk_index, token_count, headings, chunk_text, extra
			FROM vector_points
			WHERE collection_name = $1 AND id > $2
			ORDER BY id
			LIMIT $3
		`
		rows, err := s.db.QueryContext(ctx, q, collection, lastID, pageSize)
		if err != nil {
			return err
		}

		var page []core.VectorPoint
		for rows.Next() {
			var (
				p        core.VectorPoint
				emb      pgvector.Vector
				headings []byte
				extra    []byte
			)
			if err := rows.Scan(&p.ID, &emb, &p.Payload.DocumentID, &p.Payload.DocumentName,
				&p.Payload.ChunkIndex, &p.Payload.TokenCount, &headings, &p.Payload.Text, &extra); err != nil {
				rows.Close()
				return err
			}
			p.Vector = emb.Slice()
			if len(headings) > 0 {
				if err := json.Unmarshal(headings, &p.Payload.Headings); err != nil {
					rows.Close()
					return err
				}
			}
			if len(extra) > 0 && string(extra) != "null" {
				if err := json.Unmarshal(extra, &p.Payload.Extra); err != nil {
					rows.Close()
					return err
				}
			}
			page = append(page, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()

		if len(page) == 0 {
			return nil
		}
		if err := fn(page); err != nil {
			return err
		}
		lastID = page[len(page)-1].ID
	}
}

func (s *PgvectorStore) collectionDistance(ctx context.Context, collection string) (string, error) {
	var distance string
	err := s.db.QueryRowContext(ctx,
		`SELECT distance FROM vector_collections WHERE name = $1`, collection).Scan(&distance)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("collection not found: %s", collection)
	}
	if err != nil {
		return "", err
	}
	return distance, nil
}

var _ core.VectorStore = (*PgvectorStore)(nil)
