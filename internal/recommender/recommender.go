// Package recommender composes the vector index and the prompted
// generator into the single recommend operation consumed by the UI.
package recommender

import (
	"context"
	"fmt"
	"strings"

	"animerec/internal/domain"
	"animerec/internal/vectorstore"
)

// DefaultTopK is the retrieval breadth. It is independent of the three
// recommendations the generator is instructed to produce.
const DefaultTopK = 3

// Recommender owns the opened index handle and the generation client.
// Both are acquired once in Open and reused across calls; the instance is
// safe for concurrent Recommend calls.
type Recommender struct {
	embedder domain.Embedder
	store    vectorstore.Store
	gen      domain.Generator
	topK     int
}

// restorable is implemented by embedders that reconstruct their fitted
// state from the index schema (tfidf).
type restorable interface {
	LoadState(data []byte) error
}

// Open loads the index at the store's location and wires the serving
// pipeline. It fails with domain.ErrIndexNotFound when no index has been
// built yet, and refuses an index built with a different embedding model
// than the one configured.
func Open(embedder domain.Embedder, store vectorstore.Store, gen domain.Generator, topK int) (*Recommender, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	schema, err := store.Open()
	if err != nil {
		return nil, err
	}
	if schema.Embedder != "" && schema.Embedder != embedder.Name() {
		return nil, fmt.Errorf("index was built with embedder %q but %q is configured; rebuild the index or change the config",
			schema.Embedder, embedder.Name())
	}
	if schema.Model != "" && schema.Model != embedder.Model() {
		return nil, fmt.Errorf("index was built with embedding model %q but %q is configured; rebuild the index or change the config",
			schema.Model, embedder.Model())
	}
	// A restorable embedder is unusable without its fitted state, so an
	// index that does not carry it (the qdrant backend stores none) is
	// refused here rather than failing on every query.
	if r, ok := embedder.(restorable); ok {
		if len(schema.EmbedderState) == 0 {
			return nil, fmt.Errorf("index carries no fitted state for embedder %q; rebuild the index with a store that persists it or configure a different embedder",
				embedder.Name())
		}
		if err := r.LoadState(schema.EmbedderState); err != nil {
			return nil, fmt.Errorf("restore embedder state: %w", err)
		}
	}
	if d := embedder.Dimension(); d != 0 && schema.Dimension != 0 && d != schema.Dimension {
		return nil, fmt.Errorf("index dimension %d does not match embedder dimension %d; rebuild the index",
			schema.Dimension, d)
	}
	return &Recommender{embedder: embedder, store: store, gen: gen, topK: topK}, nil
}

// Recommend retrieves the chunks closest to the query and asks the
// generator for three grounded recommendations. Errors are tagged with the
// stage that failed; a failed call leaves the handle and client usable for
// the next one.
func (r *Recommender) Recommend(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("query is empty: %w", domain.ErrValidation)
	}
	vec, err := r.embedder.Embed(query)
	if err != nil {
		return "", &domain.StageError{Stage: domain.StageRetrieval, Err: err}
	}
	results, err := r.store.Search(vec, r.topK)
	if err != nil {
		return "", &domain.StageError{Stage: domain.StageRetrieval, Err: err}
	}
	chunks := make([]string, 0, len(results))
	for _, res := range results {
		chunks = append(chunks, res.Chunk.Text)
	}
	text, err := r.gen.Generate(ctx, query, chunks)
	if err != nil {
		return "", &domain.StageError{Stage: domain.StageGeneration, Err: err}
	}
	return text, nil
}

// Search exposes raw retrieval for inspection and tests.
func (r *Recommender) Search(query string, topK int) ([]domain.SearchResult, error) {
	vec, err := r.embedder.Embed(query)
	if err != nil {
		return nil, err
	}
	return r.store.Search(vec, topK)
}

// Close releases the recommender. The disk index and HTTP clients hold no
// resources that outlive the process, so this is a lifecycle marker for
// callers that obtained the instance from Open.
func (r *Recommender) Close() error { return nil }
