package recommender

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"animerec/internal/domain"
	"animerec/internal/vectorstore"
)

// Builder runs the offline half of the pipeline: chunk the combined
// records, embed every chunk, and publish a fresh index. It is expected
// to run out-of-band, never on the request path.
type Builder struct {
	chunker  domain.Chunker
	embedder domain.Embedder
	store    vectorstore.Store
}

func NewBuilder(chunker domain.Chunker, embedder domain.Embedder, store vectorstore.Store) *Builder {
	return &Builder{chunker: chunker, embedder: embedder, store: store}
}

// stateful is implemented by embedders whose fitted state must travel
// with the index (tfidf).
type stateful interface {
	MarshalState() ([]byte, error)
}

// Build replaces the index at the store's location with a fresh build over
// records. Any failure aborts the run without leaving a partial index
// usable; the previous index, if any, stays in place.
func (b *Builder) Build(records []domain.CombinedRecord) (domain.IndexSchema, error) {
	var chunks []domain.Chunk
	var texts []string
	for _, rec := range records {
		cs, err := b.chunker.Chunk(rec)
		if err != nil {
			return domain.IndexSchema{}, fmt.Errorf("chunk %q: %w", rec.Name, err)
		}
		chunks = append(chunks, cs...)
		for _, c := range cs {
			texts = append(texts, c.Text)
		}
	}
	if len(chunks) == 0 {
		return domain.IndexSchema{}, fmt.Errorf("no chunks produced from %d records: %w", len(records), domain.ErrSchema)
	}

	if err := b.embedder.Prepare(texts); err != nil {
		return domain.IndexSchema{}, fmt.Errorf("prepare embedder: %w", err)
	}
	vectors := make([][]float64, len(chunks))
	for i, c := range chunks {
		vec, err := b.embedder.Embed(c.Text)
		if err != nil {
			return domain.IndexSchema{}, fmt.Errorf("embed chunk %s: %w", c.ChunkID, err)
		}
		if len(vec) != b.embedder.Dimension() {
			return domain.IndexSchema{}, fmt.Errorf("chunk %s: got %d-dimensional vector, embedder reports %d: %w",
				c.ChunkID, len(vec), b.embedder.Dimension(), domain.ErrEmbedding)
		}
		vectors[i] = vec
	}

	schema := domain.IndexSchema{
		BuildID:   uuid.NewString(),
		Embedder:  b.embedder.Name(),
		Model:     b.embedder.Model(),
		Dimension: b.embedder.Dimension(),
		CreatedAt: time.Now().UTC(),
	}
	if s, ok := b.embedder.(stateful); ok {
		state, err := s.MarshalState()
		if err != nil {
			return domain.IndexSchema{}, fmt.Errorf("capture embedder state: %w", err)
		}
		schema.EmbedderState = state
	}

	if err := b.store.Init(schema); err != nil {
		return domain.IndexSchema{}, err
	}
	if err := b.store.Upsert(chunks, vectors); err != nil {
		return domain.IndexSchema{}, err
	}
	if err := b.store.Commit(); err != nil {
		return domain.IndexSchema{}, err
	}
	return schema, nil
}
