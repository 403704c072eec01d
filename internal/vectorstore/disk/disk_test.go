package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animerec/internal/domain"
)

func testSchema(buildID string) domain.IndexSchema {
	return domain.IndexSchema{BuildID: buildID, Embedder: "tfidf", Model: "tfidf-smoothed-l2", Dimension: 3}
}

func buildIndex(t *testing.T, location string, buildID string, chunks []domain.Chunk, vectors [][]float64) *Store {
	t.Helper()
	s := NewStore(location)
	require.NoError(t, s.Init(testSchema(buildID)))
	require.NoError(t, s.Upsert(chunks, vectors))
	require.NoError(t, s.Commit())
	return s
}

var testChunks = []domain.Chunk{
	{SourceName: "Naruto", ChunkID: "a:0", Text: "ninja action", Index: 0},
	{SourceName: "K-On!", ChunkID: "b:0", Text: "school music", Index: 0},
	{SourceName: "Death Note", ChunkID: "c:0", Text: "psychological thriller", Index: 0},
}

var testVectors = [][]float64{
	{1, 0, 0},
	{0, 1, 0},
	{0, 0, 1},
}

func TestOpen_MissingIndex(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nowhere"))
	_, err := s.Open()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestBuildOpenSearch(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	buildIndex(t, location, "build-1", testChunks, testVectors)

	reader := NewStore(location)
	schema, err := reader.Open()
	require.NoError(t, err)
	assert.Equal(t, "build-1", schema.BuildID)
	assert.Equal(t, "tfidf", schema.Embedder)
	assert.Equal(t, 3, schema.Dimension)
	assert.Equal(t, 3, reader.Count())

	results, err := reader.Search([]float64{0, 1, 0.2}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "K-On!", results[0].Chunk.SourceName)
	// Scores are non-increasing.
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestSearch_FewerEntriesThanK(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	buildIndex(t, location, "build-1", testChunks, testVectors)

	reader := NewStore(location)
	_, err := reader.Open()
	require.NoError(t, err)

	results, err := reader.Search([]float64{1, 1, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestSearch_TieBreaksByInsertionOrder(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	chunks := []domain.Chunk{
		{SourceName: "first", ChunkID: "a:0", Text: "one"},
		{SourceName: "second", ChunkID: "b:0", Text: "two"},
	}
	vectors := [][]float64{{1, 0, 0}, {1, 0, 0}}
	buildIndex(t, location, "build-1", chunks, vectors)

	reader := NewStore(location)
	_, err := reader.Open()
	require.NoError(t, err)

	results, err := reader.Search([]float64{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "first", results[0].Chunk.SourceName)
	assert.Equal(t, "second", results[1].Chunk.SourceName)
}

func TestSearch_RejectsNonPositiveK(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	buildIndex(t, location, "build-1", testChunks, testVectors)
	reader := NewStore(location)
	_, err := reader.Open()
	require.NoError(t, err)

	_, err = reader.Search([]float64{1, 0, 0}, 0)
	require.Error(t, err)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	buildIndex(t, location, "build-1", testChunks, testVectors)
	reader := NewStore(location)
	_, err := reader.Open()
	require.NoError(t, err)

	_, err = reader.Search([]float64{1, 0}, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestRebuild_ReplacesIndexWholesale(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	buildIndex(t, location, "build-1", testChunks, testVectors)

	replacement := []domain.Chunk{{SourceName: "Only", ChunkID: "z:0", Text: "only entry"}}
	buildIndex(t, location, "build-2", replacement, [][]float64{{1, 0, 0}})

	reader := NewStore(location)
	schema, err := reader.Open()
	require.NoError(t, err)
	assert.Equal(t, "build-2", schema.BuildID)
	assert.Equal(t, 1, reader.Count())
}

func TestRebuild_SameDataSameResults(t *testing.T) {
	location := filepath.Join(t.TempDir(), "index")
	query := []float64{0.3, 0.9, 0.1}

	buildIndex(t, location, "build-1", testChunks, testVectors)
	reader := NewStore(location)
	_, err := reader.Open()
	require.NoError(t, err)
	first, err := reader.Search(query, 2)
	require.NoError(t, err)

	buildIndex(t, location, "build-2", testChunks, testVectors)
	reader = NewStore(location)
	_, err = reader.Open()
	require.NoError(t, err)
	second, err := reader.Search(query, 2)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Chunk.ChunkID, second[i].Chunk.ChunkID)
		assert.InDelta(t, first[i].Score, second[i].Score, 1e-12)
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "index"))
	require.NoError(t, s.Init(testSchema("build-1")))
	err := s.Upsert(testChunks[:1], [][]float64{{1, 0}})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexWrite)
}

func TestUpsert_WithoutInit(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "index"))
	err := s.Upsert(testChunks[:1], testVectors[:1])
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIndexWrite)
}
