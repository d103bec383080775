// Package vectordb provides the vector store backends.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/markdave123-py/vectora/internal/core"
)

// QdrantStore is a minimal REST client to Qdrant implementing
// core.VectorStore.
type QdrantStore struct {
	url    string
	apiKey string
	client *http.Client
}

// QdrantConfig configures the Qdrant backend.
type QdrantConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewQdrantStore(cfg QdrantConfig, pool *http.Client) *QdrantStore {
	if pool == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		pool = &http.Client{Timeout: timeout}
	}
	return &QdrantStore{url: cfg.URL, apiKey: cfg.APIKey, client: pool}
}

// qdrantDistance maps our metric names onto Qdrant's.
func qdrantDistance(distance string) (string, error) {
	switch distance {
	case core.DistanceCosine, "":
		return "Cosine", nil
	case core.DistanceEuclidean:
		return "Euclid", nil
	case core.DistanceDot:
		return "Dot", nil
	}
	return "", fmt.Errorf("unsupported distance metric %q", distance)
}

func (s *QdrantStore) CreateCollection(ctx context.Context, name string, dimension int, distance string) error {
	if dimension <= 0 {
		return fmt.Errorf("invalid dimension %d", dimension)
	}
	dist, err := qdrantDistance(distance)
	if err != nil {
		return err
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": dist,
		},
	}
	return s.doJSON(ctx, http.MethodPut, fmt.Sprintf("%s/collections/%s", s.url, name), body, nil)
}

func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	return s.doJSON(ctx, http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, name), nil, nil)
}

func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	var resp struct {
		Result struct {
			Exists bool `json:"exists"`
		} `json:"result"`
	}
	err := s.doJSON(ctx, http.MethodGet, fmt.Sprintf("%s/collections/%s/exists", s.url, name), nil, &resp)
	if err != nil {
		return false, err
	}
	return resp.Result.Exists, nil
}

func (s *QdrantStore) ListCollections(ctx context.Context) ([]string, error) {
	var resp struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.url+"/collections", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Result.Collections))
	for _, c := range resp.Result.Collections {
		names = append(names, c.Name)
	}
	return names, nil
}

// Upsert writes all points in one call with wait=true so a 200 means the
// store durably accepted them. Returned ids are the caller-assigned point
// ids, in input order.
func (s *QdrantStore) Upsert(ctx context.Context, collection string, points []core.VectorPoint) ([]string, error) {
	if len(points) == 0 {
		return nil, nil
	}
	qPoints := make([]map[string]any, len(points))
	ids := make([]string, len(points))
	for i, p := range points {
		ids[i] = p.ID
		qPoints[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": qPoints}
	url := fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, collection)
	if err := s.doJSON(ctx, http.MethodPut, url, body, nil); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *QdrantStore) Search(ctx context.Context, collection string, vector []float32, limit int, scoreThreshold float32) ([]core.SearchHit, error) {
	if limit <= 0 {
		limit = 10
	}
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		body["score_threshold"] = scoreThreshold
	}
	var resp struct {
		Result []struct {
			ID      json.RawMessage `json:"id"`
			Score   float32         `json:"score"`
			Payload json.RawMessage `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", s.url, collection)
	if err := s.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
		return nil, err
	}

	hits := make([]core.SearchHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hit := core.SearchHit{ID: rawID(r.ID), Score: r.Score}
		if len(r.Payload) > 0 {
			if err := json.Unmarshal(r.Payload, &hit.Payload); err != nil {
				return nil, fmt.Errorf("decode point payload: %w", err)
			}
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *QdrantStore) DeleteByDocument(ctx context.Context, collection, documentID string) error {
	body := map[string]any{
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "document_id", "match": map[string]any{"value": documentID}},
			},
		},
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", s.url, collection)
	return s.doJSON(ctx, http.MethodPost, url, body, nil)
}

// ScrollAll pages through the whole collection for export/migration.
func (s *QdrantStore) ScrollAll(ctx context.Context, collection string, pageSize int, fn func(points []core.VectorPoint) error) error {
	if pageSize <= 0 {
		pageSize = 256
	}
	var offset json.RawMessage
	for {
		body := map[string]any{
			"limit":        pageSize,
			"with_payload": true,
			"with_vector":  true,
		}
		if offset != nil {
			body["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points []struct {
					ID      json.RawMessage `json:"id"`
					Vector  []float32       `json:"vector"`
					Payload json.RawMessage `json:"payload"`
				} `json:"points"`
				NextPageOffset json.RawMessage `json:"next_page_offset"`
			} `json:"result"`
		}
		url := fmt.Sprintf("%s/collections/%s/points/scroll", s.url, collection)
		if err := s.doJSON(ctx, http.MethodPost, url, body, &resp); err != nil {
			return err
		}

		page := make([]core.VectorPoint, 0, len(resp.Result.Points))
		for _, p := range resp.Result.Points {
			point := core.VectorPoint{ID: rawID(p.ID), Vector: p.Vector}
			if len(p.Payload) > 0 {
				if err := json.Unmarshal(p.Payload, &point.Payload); err != nil {
					return fmt.Errorf("decode point payload: %w", err)
				}
			}
			page = append(page, point)
		}
		if len(page) > 0 {
			if err := fn(page); err != nil {
				return err
			}
		}

		if len(resp.Result.NextPageOffset) == 0 || string(resp.Result.NextPageOffset) == "null" {
			return nil
		}
		offset = resp.Result.NextPageOffset
	}
}

// rawID renders a Qdrant point id (string or integer) as a string.
func rawID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return fmt.Sprintf("%d", n)
	}
	return string(raw)
}

func (s *QdrantStore) doJSON(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

var _ core.VectorStore = (*QdrantStore)(nil)
