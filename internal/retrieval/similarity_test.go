package retrieval

import (
	"math"
	"testing"

	"ai-doc-chat-go/internal/model"
)

func TestCosineSelfSimilarity(t *testing.T) {
	v := []float32{0.3, -1.2, 4.5}
	got, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if math.Abs(got-1) > 1e-6 {
		t.Fatalf("Cosine(v, v) = %v, want 1", got)
	}
}

func TestCosineOpposite(t *testing.T) {
	v := []float32{1, 2, 3}
	neg := []float32{-1, -2, -3}
	got, err := Cosine(v, neg)
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if math.Abs(got+1) > 1e-6 {
		t.Fatalf("Cosine(v, -v) = %v, want -1", got)
	}
}

func TestCosineSymmetric(t *testing.T) {
	a := []float32{0.1, 0.9, -0.4}
	b := []float32{1.5, 0.2, 0.7}
	ab, _ := Cosine(a, b)
	ba, _ := Cosine(b, a)
	if ab != ba {
		t.Fatalf("Cosine not symmetric: %v vs %v", ab, ba)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	if err != ErrDimensionMismatch {
		t.Fatalf("got %v, want ErrDimensionMismatch", err)
	}
}

func TestCosineZeroVector(t *testing.T) {
	got, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("Cosine returned error: %v", err)
	}
	if got != 0 {
		t.Fatalf("Cosine(0, v) = %v, want 0", got)
	}
}

func TestScoreAbsentEmbedding(t *testing.T) {
	if got := Score([]float32{1, 0}, model.Embedding{}); got != 0 {
		t.Fatalf("Score with absent embedding = %v, want 0", got)
	}
	if got := Score(nil, model.NewEmbedding([]float32{1, 0})); got != 0 {
		t.Fatalf("Score with empty query = %v, want 0", got)
	}
}

func TestScoreGuardsDimensionMismatch(t *testing.T) {
	if got := Score([]float32{1, 0}, model.NewEmbedding([]float32{1, 0, 0})); got != 0 {
		t.Fatalf("Score with mismatched dimensions = %v, want 0", got)
	}
}
