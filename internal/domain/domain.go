package domain

import (
	"context"
	"time"
)

// RawItem is a single anime row as loaded from the source dataset.
// Immutable once loaded; items with missing fields never leave the loader.
type RawItem struct {
	Name     string
	Genres   string
	Synopsis string
}

// CombinedRecord is the normalized, retrieval-ready form of a RawItem.
// CombinedInfo is derived once during normalization and never mutated.
type CombinedRecord struct {
	Name         string
	CombinedInfo string
}

// Chunk is a bounded span of a CombinedRecord's text used as the retrieval unit.
// SourceName is provenance back to the originating item, not ownership.
type Chunk struct {
	SourceName string
	ChunkID    string
	Text       string
	Index      int
}

// SearchResult pairs a retrieved chunk with its cosine similarity to the query.
// Higher score means closer (lower vector distance).
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// IndexSchema describes a persisted vector index. It is written by the
// builder and read back at open time so queries can refuse a mismatched
// embedding model.
type IndexSchema struct {
	BuildID       string    `json:"build_id"`
	Embedder      string    `json:"embedder"`
	Model         string    `json:"model"`
	Dimension     int       `json:"dimension"`
	CreatedAt     time.Time `json:"created_at"`
	EmbedderState []byte    `json:"embedder_state,omitempty"`
}

// Embedder converts free text into a numeric vector representation.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Model() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(text string) ([]float64, error)
}

// Chunker splits a combined record into chunks suitable for indexing.
type Chunker interface {
	Chunk(record CombinedRecord) ([]Chunk, error)
}

// Generator turns a query and its retrieved grounding context into the
// final recommendation text. The returned text is the model output,
// unmodified and unvalidated.
type Generator interface {
	Generate(ctx context.Context, query string, contextChunks []string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
