package embedding

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"mcpd/internal/domain"
)

// TFIDFEmbedder is the default Embedder: a pure Go, in-memory TF-IDF model.
// Grounded on onemcp's vectorstore.TFIDFEmbedder; adapted to the Fitter/
// Embedder interface split and to float64 vectors.
type TFIDFEmbedder struct {
	mu         sync.RWMutex
	vocabulary map[string]int
	idf        map[string]float64
	dimension  int
	fitted     bool
}

// NewTFIDFEmbedder returns an unfitted TF-IDF embedder. Call Fit before Embed.
func NewTFIDFEmbedder() *TFIDFEmbedder {
	return &TFIDFEmbedder{
		vocabulary: make(map[string]int),
		idf:        make(map[string]float64),
	}
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true,
	"but": true, "in": true, "on": true, "at": true, "to": true,
	"for": true, "of": true, "with": true, "by": true, "from": true,
	"as": true, "is": true, "was": true, "are": true, "were": true,
	"be": true, "been": true, "being": true, "have": true, "has": true,
	"had": true, "do": true, "does": true, "did": true, "will": true,
	"would": true, "could": true, "should": true, "may": true, "might": true,
	"can": true, "this": true, "that": true, "these": true, "those": true,
}

func tokenize(text string) []string {
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	filtered := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) > 1 && !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// Fit builds the vocabulary and IDF table from the full tool corpus. Calling
// Fit again replaces the vocabulary; Embed results before a Fit are not
// retroactively affected (Index calls Fit exactly once, before any Embed).
func (e *TFIDFEmbedder) Fit(ctx context.Context, documents []string) error {
	docFreq := make(map[string]int)
	for _, doc := range documents {
		seen := make(map[string]bool)
		for _, word := range tokenize(doc) {
			if !seen[word] {
				docFreq[word]++
				seen[word] = true
			}
		}
	}

	vocabulary := make(map[string]int, len(docFreq))
	idf := make(map[string]float64, len(docFreq))

	words := make([]string, 0, len(docFreq))
	for word := range docFreq {
		words = append(words, word)
	}
	sort.Strings(words)

	totalDocs := len(documents)
	for idx, word := range words {
		vocabulary[word] = idx
		idf[word] = math.Log(float64(totalDocs+1)/float64(docFreq[word]+1)) + 1.0
	}

	e.mu.Lock()
	e.vocabulary = vocabulary
	e.idf = idf
	e.dimension = len(vocabulary)
	e.fitted = true
	e.mu.Unlock()
	return nil
}

// Embed returns the TF-IDF vector for text, unit-normalized. Fails with
// domain.ErrEmbeddingUnavailable if Fit has not run yet or produced an
// empty vocabulary (e.g. zero catalog entries feed Fit with no documents).
func (e *TFIDFEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if !e.fitted || e.dimension == 0 {
		return nil, fmt.Errorf("%w: embedder not fitted", domain.ErrEmbeddingUnavailable)
	}

	words := tokenize(text)
	termFreq := make(map[string]int, len(words))
	for _, word := range words {
		termFreq[word]++
	}

	vec := make([]float64, e.dimension)
	totalTerms := float64(len(words))
	if totalTerms == 0 {
		totalTerms = 1
	}
	for word, count := range termFreq {
		idx, ok := e.vocabulary[word]
		if !ok {
			continue
		}
		tf := float64(count) / totalTerms
		vec[idx] = tf * e.idf[word]
	}

	return normalize(vec), nil
}

// Dimension returns the fitted vocabulary size, or 0 before Fit runs.
func (e *TFIDFEmbedder) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dimension
}

func normalize(vec []float64) []float64 {
	var sumSq float64
	for _, v := range vec {
		sumSq += v * v
	}
	norm := math.Sqrt(sumSq)
	if norm == 0 {
		return vec
	}
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

var _ Embedder = (*TFIDFEmbedder)(nil)
var _ Fitter = (*TFIDFEmbedder)(nil)
