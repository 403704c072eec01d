package vectorstore

import "animerec/internal/domain"

// Store persists chunk vectors and serves similarity search over them.
//
// The write side (Init, Upsert, Commit) is used by the offline builder and
// fully replaces any prior index: nothing staged is visible to readers
// until Commit returns. The read side (Open, Search) is used by the
// serving path and never mutates the index.
type Store interface {
	// Init starts a fresh index build described by schema.
	Init(schema domain.IndexSchema) error
	// Upsert stages chunks with their vectors; vector dimensionality must
	// match the schema.
	Upsert(chunks []domain.Chunk, vectors [][]float64) error
	// Commit publishes the staged index atomically from the reader's
	// perspective.
	Commit() error
	// Open loads a previously committed index and returns its schema.
	// Returns domain.ErrIndexNotFound when none exists at the location.
	Open() (domain.IndexSchema, error)
	// Search returns up to topK results ordered by descending similarity,
	// ties broken by insertion order.
	Search(vector []float64, topK int) ([]domain.SearchResult, error)
}
