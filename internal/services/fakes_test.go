package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/markdave123-py/vectora/internal/core"
	"github.com/markdave123-py/vectora/internal/models"
)

// memDB is an in-memory DbClient covering the operations the service tests
// exercise.
type memDB struct {
	core.DbClient

	collections map[string]*models.Collection
	documents   map[string]*models.Document
	uploads     []models.UploadRecord
	nextID      int64

	failInsert bool
}

func newMemDB() *memDB {
	return &memDB{
		collections: map[string]*models.Collection{},
		documents:   map[string]*models.Document{},
	}
}

func (m *memDB) CreateDocument(ctx context.Context, doc *models.Document) error {
	if m.failInsert {
		return errors.New("insert failed")
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = time.Now()
	cp := *doc
	m.documents[doc.ID] = &cp
	return nil
}

func (m *memDB) GetDocumentByID(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := m.documents[id]
	if !ok {
		return nil, nil
	}
	cp := *doc
	return &cp, nil
}

func (m *memDB) ListDocumentsByUser(ctx context.Context, userID string) ([]models.Document, error) {
	var out []models.Document
	for _, doc := range m.documents {
		if doc.UserID == userID {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (m *memDB) UpdateDocumentStatus(ctx context.Context, id string, status string) error {
	doc, ok := m.documents[id]
	if !ok {
		return errors.New("no such document")
	}
	doc.Status = status
	return nil
}

func (m *memDB) IncrementDocumentAccess(ctx context.Context, id string) error {
	doc, ok := m.documents[id]
	if !ok {
		return errors.New("no such document")
	}
	doc.AccessCount++
	return nil
}

func (m *memDB) CreateCollection(ctx context.Context, col *models.Collection) error {
	if m.failInsert {
		return errors.New("insert failed")
	}
	if _, exists := m.collections[col.Name]; exists {
		return errors.New("duplicate collection")
	}
	// Mirror the insert's RETURNING of the table-default timestamps.
	col.CreatedAt = time.Now()
	col.UpdatedAt = time.Now()
	cp := *col
	m.collections[col.Name] = &cp
	return nil
}

func (m *memDB) GetCollection(ctx context.Context, name string) (*models.Collection, error) {
	col, ok := m.collections[name]
	if !ok {
		return nil, nil
	}
	cp := *col
	return &cp, nil
}

func (m *memDB) UpdateCollection(ctx context.Context, col *models.Collection) error {
	if _, ok := m.collections[col.Name]; !ok {
		return errors.New("no such collection")
	}
	cp := *col
	m.collections[col.Name] = &cp
	return nil
}

func (m *memDB) DeleteCollection(ctx context.Context, name string) error {
	delete(m.collections, name)
	return nil
}

func (m *memDB) ListCollectionsCoarse(ctx context.Context, callerID string) ([]models.Collection, error) {
	var out []models.Collection
	for _, col := range m.collections {
		if col.Visibility == models.VisibilityPublic ||
			col.OwnerID == callerID ||
			col.Visibility == models.VisibilityShared {
			out = append(out, *col)
		}
	}
	return out, nil
}

func (m *memDB) ListPublicCollections(ctx context.Context) ([]models.Collection, error) {
	var out []models.Collection
	for _, col := range m.collections {
		if col.Visibility == models.VisibilityPublic {
			out = append(out, *col)
		}
	}
	return out, nil
}

func (m *memDB) InsertUploadRecord(ctx context.Context, rec *models.UploadRecord) error {
	if m.failInsert {
		return errors.New("insert failed")
	}
	m.nextID++
	cp := *rec
	cp.ID = m.nextID
	cp.CreatedAt = time.Now()
	m.uploads = append(m.uploads, cp)
	return nil
}

func (m *memDB) LatestSuccessUpload(ctx context.Context, documentID, collectionName string) (*models.UploadRecord, error) {
	for i := len(m.uploads) - 1; i >= 0; i-- {
		rec := m.uploads[i]
		if rec.DocumentID == documentID && rec.CollectionName == collectionName && rec.Status == models.UploadSuccess {
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memDB) ListUploadsByDocument(ctx context.Context, documentID string) ([]models.UploadRecord, error) {
	var out []models.UploadRecord
	for i := len(m.uploads) - 1; i >= 0; i-- {
		if m.uploads[i].DocumentID == documentID {
			out = append(out, m.uploads[i])
		}
	}
	return out, nil
}

func (m *memDB) ListUploadsByCollection(ctx context.Context, collectionName string) ([]models.UploadRecord, error) {
	var out []models.UploadRecord
	for i := len(m.uploads) - 1; i >= 0; i-- {
		if m.uploads[i].CollectionName == collectionName {
			out = append(out, m.uploads[i])
		}
	}
	return out, nil
}

// memObjects is an in-memory ObjectClient. Bodies are stored under
// bucket/key and served back as streams, the way S3 does.
type memObjects struct {
	objects map[string][]byte

	lastBucket string
	lastKey    string
	failUpload bool
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (o *memObjects) UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (string, error) {
	if o.failUpload {
		return "", errors.New("upload failed")
	}
	o.lastBucket, o.lastKey = bucket, key
	o.objects[bucket+"/"+key] = data
	return fmt.Sprintf("https://%s.s3.us-east-2.amazonaws.com/%s", bucket, key), nil
}

func (o *memObjects) GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	o.lastBucket, o.lastKey = bucket, key
	data, ok := o.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// memStore is an in-memory VectorStore for the registry and sampler tests.
type memStore struct {
	core.VectorStore

	collections map[string]bool
	hits        map[string][]core.SearchHit // per-probe results keyed by first vector component
	searches    int

	failCreate bool
	deleted    []string
}

func newMemStore(names ...string) *memStore {
	s := &memStore{collections: map[string]bool{}}
	for _, n := range names {
		s.collections[n] = true
	}
	return s
}

func (s *memStore) CreateCollection(ctx context.Context, name string, dimension int, distance string) error {
	if s.failCreate {
		return errors.New("store down")
	}
	s.collections[name] = true
	return nil
}

func (s *memStore) DeleteCollection(ctx context.Context, name string) error {
	delete(s.collections, name)
	s.deleted = append(s.deleted, name)
	return nil
}

func (s *memStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.collections[name], nil
}

func (s *memStore) ListCollections(ctx context.Context) ([]string, error) {
	var out []string
	for n := range s.collections {
		out = append(out, n)
	}
	return out, nil
}

func (s *memStore) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]core.SearchHit, error) {
	s.searches++
	key := ""
	if len(vector) > 0 {
		key = probeKey(vector[0])
	}
	hits := s.hits[key]
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func probeKey(v float32) string {
	switch v {
	case 1:
		return "probe1"
	case 2:
		return "probe2"
	case 3:
		return "probe3"
	}
	return ""
}

// probeEmbedder returns a distinct marker vector per probe query so the fake
// store can route results.
type probeEmbedder struct{}

func (probeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i + 1)}
	}
	return out, nil
}
