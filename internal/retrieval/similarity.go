// Package retrieval scores persisted chunks against a query embedding and
// assembles the most relevant ones into a bounded context.
package retrieval

import (
	"errors"
	"math"

	"ai-doc-chat-go/internal/model"
)

// ErrDimensionMismatch is returned by Cosine when the two vectors have
// different lengths.
var ErrDimensionMismatch = errors.New("vectors must be of same length")

// Cosine returns the cosine similarity of a and b: their dot product divided
// by the product of their Euclidean norms. A zero-norm vector scores 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// Score is the guarded form used by the context assembler: an absent
// embedding, an empty query vector or a dimension mismatch all score 0
// ("unrelated") instead of failing.
func Score(query []float32, e model.Embedding) float64 {
	if len(query) == 0 || !e.Present || len(e.Values) != len(query) {
		return 0
	}
	s, _ := Cosine(query, e.Values)
	return s
}
