package chunker

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"

	"animerec/internal/domain"
)

const (
	// DefaultMaxRunes bounds chunk length in runes.
	DefaultMaxRunes = 500
	// DefaultOverlapSentences is the fixed overlap window between chunks.
	DefaultOverlapSentences = 1
)

// SentenceChunker splits combined records into chunks on sentence
// boundaries. Chunks never exceed maxRunes; consecutive chunks share a
// fixed number of trailing sentences as overlap.
type SentenceChunker struct {
	maxRunes         int
	overlapSentences int
	splitter         *regexp.Regexp
}

func NewSentenceChunker(maxRunes, overlapSentences int) *SentenceChunker {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	if overlapSentences < 0 {
		overlapSentences = DefaultOverlapSentences
	}
	return &SentenceChunker{
		maxRunes:         maxRunes,
		overlapSentences: overlapSentences,
		splitter:         regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
	}
}

// Chunk splits the record text into sentence-aligned chunks. A single
// sentence longer than maxRunes is hard-wrapped so the length bound holds
// for every chunk.
func (c *SentenceChunker) Chunk(record domain.CombinedRecord) ([]domain.Chunk, error) {
	sentences := c.splitter.FindAllString(record.CombinedInfo, -1)
	if len(sentences) == 0 {
		trimmed := strings.TrimSpace(record.CombinedInfo)
		if trimmed == "" {
			return nil, nil
		}
		sentences = []string{trimmed}
	}
	var parts []string
	for _, s := range sentences {
		parts = append(parts, wrapRunes(strings.TrimSpace(s), c.maxRunes)...)
	}

	recID := hashString(record.Name)
	var chunks []domain.Chunk
	i := 0
	idx := 0
	for i < len(parts) {
		end := i
		runes := 0
		for end < len(parts) {
			n := len([]rune(parts[end]))
			if end > i {
				n++ // joining space
			}
			if runes+n > c.maxRunes {
				break
			}
			runes += n
			end++
		}
		if end == i {
			end = i + 1
		}
		chunks = append(chunks, domain.Chunk{
			SourceName: record.Name,
			ChunkID:    recID + ":" + strconv.Itoa(idx),
			Text:       strings.Join(parts[i:end], " "),
			Index:      idx,
		})
		if end == len(parts) {
			break
		}
		next := end - c.overlapSentences
		if next <= i {
			next = end // overlap must not stall the walk
		}
		i = next
		idx++
	}
	return chunks, nil
}

func wrapRunes(s string, max int) []string {
	r := []rune(s)
	if len(r) <= max {
		return []string{s}
	}
	var out []string
	for len(r) > max {
		out = append(out, string(r[:max]))
		r = r[max:]
	}
	if len(r) > 0 {
		out = append(out, string(r))
	}
	return out
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
