// Package disk persists the vector index as a JSON manifest inside a
// directory and serves brute-force cosine search over it.
//
// Builds are staged into a sibling temp directory and published with a
// rename, so a reader either sees the previous complete index or the new
// one, never a partial write. Rename is atomic on the same filesystem;
// the brief window while an old index is moved aside is the documented
// unavailability tradeoff.
package disk

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"animerec/internal/domain"
)

const manifestName = "index.json"

// Store is a disk-backed vector index at a fixed directory location.
// After Open the index is read-only; concurrent Search calls are safe.
type Store struct {
	location string

	mu      sync.RWMutex
	schema  domain.IndexSchema
	entries []entry
	staging string // non-empty while a build is in progress
}

type entry struct {
	ChunkID    string    `json:"chunk_id"`
	SourceName string    `json:"source_name"`
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Vector     []float64 `json:"vector"`
}

type manifest struct {
	Schema  domain.IndexSchema `json:"schema"`
	Entries []entry            `json:"entries"`
}

func NewStore(location string) *Store {
	return &Store{location: location}
}

// Init starts a fresh staged build. Any prior staging directory for the
// same build is discarded.
func (s *Store) Init(schema domain.IndexSchema) error {
	if schema.Dimension <= 0 {
		return fmt.Errorf("invalid index dimension %d: %w", schema.Dimension, domain.ErrIndexWrite)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	staging := s.location + ".staging-" + schema.BuildID
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fmt.Errorf("create staging dir: %v: %w", err, domain.ErrIndexWrite)
	}
	s.schema = schema
	s.entries = nil
	s.staging = staging
	return nil
}

func (s *Store) Upsert(chunks []domain.Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %w", domain.ErrIndexWrite)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staging == "" {
		return fmt.Errorf("no build in progress: %w", domain.ErrIndexWrite)
	}
	for i, v := range vectors {
		if len(v) != s.schema.Dimension {
			return fmt.Errorf("vector dimension %d does not match schema %d: %w", len(v), s.schema.Dimension, domain.ErrIndexWrite)
		}
		s.entries = append(s.entries, entry{
			ChunkID:    chunks[i].ChunkID,
			SourceName: chunks[i].SourceName,
			Index:      chunks[i].Index,
			Text:       chunks[i].Text,
			Vector:     normalize(v),
		})
	}
	return nil
}

// Commit writes the staged manifest and swaps it over the live location.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staging == "" {
		return fmt.Errorf("no build in progress: %w", domain.ErrIndexWrite)
	}
	data, err := json.Marshal(manifest{Schema: s.schema, Entries: s.entries})
	if err != nil {
		return fmt.Errorf("encode index manifest: %v: %w", err, domain.ErrIndexWrite)
	}
	if err := os.WriteFile(filepath.Join(s.staging, manifestName), data, 0o644); err != nil {
		return fmt.Errorf("write index manifest: %v: %w", err, domain.ErrIndexWrite)
	}
	old := s.location + ".old-" + s.schema.BuildID
	if _, err := os.Stat(s.location); err == nil {
		if err := os.Rename(s.location, old); err != nil {
			return fmt.Errorf("move previous index aside: %v: %w", err, domain.ErrIndexWrite)
		}
	}
	if err := os.Rename(s.staging, s.location); err != nil {
		// Best effort restore of the previous index.
		_ = os.Rename(old, s.location)
		return fmt.Errorf("publish index: %v: %w", err, domain.ErrIndexWrite)
	}
	_ = os.RemoveAll(old)
	s.staging = ""
	return nil
}

// Open loads the committed index into memory for serving.
func (s *Store) Open() (domain.IndexSchema, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(filepath.Join(s.location, manifestName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.IndexSchema{}, fmt.Errorf("no index at %s: %w", s.location, domain.ErrIndexNotFound)
		}
		return domain.IndexSchema{}, fmt.Errorf("read index at %s: %v", s.location, err)
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.IndexSchema{}, fmt.Errorf("decode index at %s: %v", s.location, err)
	}
	s.schema = m.Schema
	s.entries = m.Entries
	return m.Schema, nil
}

// Search scores every entry by cosine similarity and returns the topK
// closest. Fewer than topK entries returns all of them.
func (s *Store) Search(vector []float64, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if len(vector) != s.schema.Dimension {
		return nil, fmt.Errorf("query vector dimension %d does not match index %d: %w", len(vector), s.schema.Dimension, domain.ErrEmbedding)
	}
	q := normalize(vector)
	idxs := make([]int, len(s.entries))
	scores := make([]float64, len(s.entries))
	for i := range s.entries {
		idxs[i] = i
		scores[i] = dot(s.entries[i].Vector, q)
	}
	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })
	if topK > len(idxs) {
		topK = len(idxs)
	}
	results := make([]domain.SearchResult, 0, topK)
	for _, j := range idxs[:topK] {
		e := s.entries[j]
		results = append(results, domain.SearchResult{
			Chunk: domain.Chunk{SourceName: e.SourceName, ChunkID: e.ChunkID, Text: e.Text, Index: e.Index},
			Score: scores[j],
		})
	}
	return results, nil
}

// Count reports the number of indexed entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func normalize(v []float64) []float64 {
	norm := 0.0
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return v
	}
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
