package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"animerec/internal/domain"
)

func TestChunk_SingleShortRecord(t *testing.T) {
	c := NewSentenceChunker(500, 1)
	rec := domain.CombinedRecord{
		Name:         "Naruto",
		CombinedInfo: "Naruto. Overview: A young ninja trains hard. Genres: Action",
	}

	chunks, err := c.Chunk(rec)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Naruto", chunks[0].SourceName)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Contains(t, chunks[0].Text, "ninja")
}

func TestChunk_RespectsRuneBound(t *testing.T) {
	c := NewSentenceChunker(60, 1)
	rec := domain.CombinedRecord{
		Name: "Long",
		CombinedInfo: "The first sentence sets the stage. The second one continues it. " +
			"The third adds detail. The fourth wraps the arc. The fifth concludes everything neatly.",
	}

	chunks, err := c.Chunk(rec)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 60, "chunk %d over budget: %q", ch.Index, ch.Text)
	}
}

func TestChunk_OverlapSharesSentences(t *testing.T) {
	c := NewSentenceChunker(60, 1)
	rec := domain.CombinedRecord{
		Name:         "Long",
		CombinedInfo: "Alpha beta gamma delta one. Epsilon zeta eta theta two. Iota kappa lambda mu three.",
	}

	chunks, err := c.Chunk(rec)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	// Last sentence of a chunk reappears at the start of the next one.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		lastSentence := prev[strings.LastIndex(strings.TrimRight(prev, "."), ".")+1:]
		lastSentence = strings.TrimSpace(strings.Trim(lastSentence, "."))
		if lastSentence != "" {
			assert.Contains(t, chunks[i].Text, lastSentence)
		}
	}
}

func TestChunk_HardWrapsOversizedSentence(t *testing.T) {
	c := NewSentenceChunker(20, 0)
	rec := domain.CombinedRecord{
		Name:         "Wall",
		CombinedInfo: strings.Repeat("x", 55) + ".",
	}

	chunks, err := c.Chunk(rec)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.LessOrEqual(t, len([]rune(ch.Text)), 20)
	}
}

func TestChunk_EmptyRecord(t *testing.T) {
	c := NewSentenceChunker(100, 1)
	chunks, err := c.Chunk(domain.CombinedRecord{Name: "Empty", CombinedInfo: "   "})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunk_ChunkIDsAreStable(t *testing.T) {
	c := NewSentenceChunker(500, 1)
	rec := domain.CombinedRecord{Name: "Naruto", CombinedInfo: "One sentence here."}

	first, err := c.Chunk(rec)
	require.NoError(t, err)
	second, err := c.Chunk(rec)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
