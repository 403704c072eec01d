package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize_SelectsFrequentSentencesInOrder(t *testing.T) {
	s := NewFrequencySummarizer()
	text := "Ninja training is hard. The ninja fights daily. Music clubs meet after class. The ninja never gives up."

	out, err := s.Summarize(text, 2)
	require.NoError(t, err)
	sentences := strings.Count(out, ".")
	assert.Equal(t, 2, sentences)
	assert.Contains(t, out, "ninja")
}

func TestSummarize_ShortTextPassesThrough(t *testing.T) {
	s := NewFrequencySummarizer()
	out, err := s.Summarize("no terminal punctuation here", 3)
	require.NoError(t, err)
	assert.Equal(t, "no terminal punctuation here", out)
}
