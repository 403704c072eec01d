// Package tfidf provides a local, deterministic TF-IDF embedder. It needs
// no network access, which makes it the default for offline builds and for
// tests; its fitted state must be persisted with the index so query-time
// vectors live in the same space as build-time vectors.
package tfidf

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"animerec/internal/domain"
)

// Embedder is a TF-IDF vectorizer. Prepare fits the vocabulary and IDF
// values over the corpus; Embed is reproducible for a fixed fitted state.
type Embedder struct {
	vocabulary   map[string]int
	idf          []float64
	dimension    int
	prepared     bool
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

func NewEmbedder() *Embedder {
	return &Embedder{
		vocabulary:   make(map[string]int),
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		stopwords:    defaultStopwords(),
	}
}

func (e *Embedder) Name() string { return "tfidf" }

// Model identifies the vectorizer scheme, not an external model version.
func (e *Embedder) Model() string { return "tfidf-smoothed-l2" }

// Prepare builds the vocabulary and IDF values from the provided corpus.
func (e *Embedder) Prepare(corpus []string) error {
	if len(corpus) == 0 {
		return fmt.Errorf("empty corpus: %w", domain.ErrEmbedding)
	}
	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	// Sorted vocabulary keeps vector layout stable across rebuilds.
	sort.Strings(terms)
	if len(terms) == 0 {
		return fmt.Errorf("no tokens found in corpus: %w", domain.ErrEmbedding)
	}
	e.vocabulary = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	n := float64(len(corpus))
	for i, term := range terms {
		e.vocabulary[term] = i
		// Smoothed IDF
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.dimension = len(terms)
	e.prepared = true
	return nil
}

func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes the L2-normalized TF-IDF vector for the given text.
func (e *Embedder) Embed(text string) ([]float64, error) {
	if !e.prepared {
		return nil, fmt.Errorf("tfidf embedder not prepared: %w", domain.ErrEmbedding)
	}
	vec := make([]float64, e.dimension)
	tf := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocabulary[tok]; ok {
			tf[idx]++
			total++
		}
	}
	if total == 0 {
		return vec, nil
	}
	for idx, count := range tf {
		vec[idx] = float64(count) / float64(total) * e.idf[idx]
	}
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] /= norm
		}
	}
	return vec, nil
}

type fittedState struct {
	Vocabulary map[string]int `json:"vocabulary"`
	IDF        []float64      `json:"idf"`
	Dimension  int            `json:"dimension"`
}

// MarshalState serializes the fitted vocabulary and IDF values. The builder
// stores this in the index schema so the serving side can reconstruct the
// exact embedding space.
func (e *Embedder) MarshalState() ([]byte, error) {
	if !e.prepared {
		return nil, fmt.Errorf("tfidf embedder not prepared: %w", domain.ErrEmbedding)
	}
	return json.Marshal(fittedState{Vocabulary: e.vocabulary, IDF: e.idf, Dimension: e.dimension})
}

// LoadState restores a previously fitted state in place of Prepare.
func (e *Embedder) LoadState(data []byte) error {
	var st fittedState
	if err := json.Unmarshal(data, &st); err != nil {
		return fmt.Errorf("decode tfidf state: %w", err)
	}
	if st.Dimension <= 0 || len(st.IDF) != st.Dimension {
		return fmt.Errorf("inconsistent tfidf state: %w", domain.ErrEmbedding)
	}
	e.vocabulary = st.Vocabulary
	e.idf = st.IDF
	e.dimension = st.Dimension
	e.prepared = true
	return nil
}

func (e *Embedder) tokenize(text string) []string {
	raw := e.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
