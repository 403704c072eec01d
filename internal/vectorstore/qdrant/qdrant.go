// Package qdrant is a minimal REST-backed Store for a Qdrant collection.
// It assumes cosine distance. A build recreates the collection wholesale,
// matching the full-replace semantics of the disk backend.
package qdrant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"animerec/internal/domain"
)

type Store struct {
	url        string
	apiKey     string
	collection string
	schema     domain.IndexSchema
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStore(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

// Init drops and recreates the collection for a fresh build.
func (s *Store) Init(schema domain.IndexSchema) error {
	if schema.Dimension <= 0 {
		return fmt.Errorf("invalid index dimension %d: %w", schema.Dimension, domain.ErrIndexWrite)
	}
	s.schema = schema
	req, _ := http.NewRequest(http.MethodDelete, fmt.Sprintf("%s/collections/%s", s.url, s.collection), nil)
	s.auth(req)
	if resp, err := s.client.Do(req); err == nil {
		_ = resp.Body.Close()
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     schema.Dimension,
			"distance": "Cosine",
		},
	}
	if err := s.putJSON(fmt.Sprintf("%s/collections/%s", s.url, s.collection), body); err != nil {
		return fmt.Errorf("create collection: %v: %w", err, domain.ErrIndexWrite)
	}
	return nil
}

func (s *Store) Upsert(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %w", domain.ErrIndexWrite)
	}
	points := make([]map[string]any, len(chunks))
	for i := range chunks {
		points[i] = map[string]any{
			"id":     pointID(s.schema.BuildID, chunks[i]),
			"vector": vectors[i],
			"payload": map[string]any{
				"chunk_id":    chunks[i].ChunkID,
				"source_name": chunks[i].SourceName,
				"index":       chunks[i].Index,
				"text":        chunks[i].Text,
				"embedder":    s.schema.Embedder,
				"model":       s.schema.Model,
				"build_id":    s.schema.BuildID,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.putJSON(fmt.Sprintf("%s/collections/%s/points?wait=true", s.url, s.collection), body); err != nil {
		return fmt.Errorf("upsert points: %v: %w", err, domain.ErrIndexWrite)
	}
	return nil
}

// Commit is a no-op: Qdrant writes with wait=true are durable on return.
// Readers see the previous collection until Init drops it, so the
// rebuild-while-serving window is the collection recreate itself.
func (s *Store) Commit() error { return nil }

// Open verifies the collection exists and recovers the index schema from
// the collection info plus one stored point's payload.
func (s *Store) Open() (domain.IndexSchema, error) {
	var info struct {
		Result struct {
			Config struct {
				Params struct {
					Vectors struct {
						Size int `json:"size"`
					} `json:"vectors"`
				} `json:"params"`
			} `json:"config"`
		} `json:"result"`
	}
	status, err := s.getJSON(fmt.Sprintf("%s/collections/%s", s.url, s.collection), &info)
	if err != nil {
		return domain.IndexSchema{}, err
	}
	if status == http.StatusNotFound {
		return domain.IndexSchema{}, fmt.Errorf("collection %s does not exist: %w", s.collection, domain.ErrIndexNotFound)
	}
	if status >= 300 {
		return domain.IndexSchema{}, fmt.Errorf("qdrant collection info failed with status %d", status)
	}
	schema := domain.IndexSchema{Dimension: info.Result.Config.Params.Vectors.Size}

	var scroll struct {
		Result struct {
			Points []struct {
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	req := map[string]any{"limit": 1, "with_payload": true}
	if err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/scroll", s.url, s.collection), req, &scroll); err == nil && len(scroll.Result.Points) > 0 {
		p := scroll.Result.Points[0].Payload
		if v, ok := p["embedder"].(string); ok {
			schema.Embedder = v
		}
		if v, ok := p["model"].(string); ok {
			schema.Model = v
		}
		if v, ok := p["build_id"].(string); ok {
			schema.BuildID = v
		}
	}
	s.schema = schema
	return schema, nil
}

func (s *Store) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float64        `json:"score"`
			Payload map[string]any `json:"payload"`
		} `json:"result"`
	}
	if err := s.postJSON(fmt.Sprintf("%s/collections/%s/points/search", s.url, s.collection), req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(resp.Result))
	for _, r := range resp.Result {
		chunk := domain.Chunk{}
		if v, ok := r.Payload["chunk_id"].(string); ok {
			chunk.ChunkID = v
		}
		if v, ok := r.Payload["source_name"].(string); ok {
			chunk.SourceName = v
		}
		if v, ok := r.Payload["index"].(float64); ok {
			chunk.Index = int(v)
		}
		if v, ok := r.Payload["text"].(string); ok {
			chunk.Text = v
		}
		results = append(results, domain.SearchResult{Chunk: chunk, Score: r.Score})
	}
	return results, nil
}

func pointID(buildID string, ch domain.Chunk) string {
	return fmt.Sprintf("%s:%s", buildID, ch.ChunkID)
}

func (s *Store) auth(req *http.Request) {
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
}

func (s *Store) putJSON(url string, body any) error {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant PUT %s failed: %s", url, resp.Status)
	}
	return nil
}

func (s *Store) postJSON(url string, body any, out any) error {
	data, _ := json.Marshal(body)
	req, _ := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant POST %s failed: %s", url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (s *Store) getJSON(url string, out any) (int, error) {
	req, _ := http.NewRequest(http.MethodGet, url, nil)
	s.auth(req)
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK && out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}
