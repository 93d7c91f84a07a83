package retrieval

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

// fixedEmbedder always returns the same query vector.
type fixedEmbedder struct {
	vector []float32
	err    error
}

func (f *fixedEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fixedEmbedder) CreateEmbeddings(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

// wordCounter counts whitespace-separated words as tokens.
type wordCounter struct{}

func (wordCounter) CountTokens(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		switch {
		case r == ' ' || r == '\n' || r == '\t':
			inWord = false
		case !inWord:
			inWord = true
			n++
		}
	}
	return n
}

// chunkAtSimilarity builds a chunk whose cosine similarity against the unit
// query vector [1, 0] equals sim.
func chunkAtSimilarity(index int, content string, sim float64) model.DocumentChunk {
	y := math.Sqrt(1 - sim*sim)
	return model.DocumentChunk{
		DocumentID: "doc-1",
		ChunkIndex: index,
		Content:    content,
		Embedding:  model.NewEmbedding([]float32{float32(sim), float32(y)}),
	}
}

func queryAssembler(cfg Config) *Assembler {
	return NewAssembler(&fixedEmbedder{vector: []float32{1, 0}}, wordCounter{}, cfg)
}

func TestAssembleFiltersAndRanks(t *testing.T) {
	candidates := []model.DocumentChunk{
		chunkAtSimilarity(0, "chunk zero", 0.9),
		chunkAtSimilarity(1, "chunk one", 0.8),
		chunkAtSimilarity(2, "chunk two", 0.6),
		chunkAtSimilarity(3, "chunk three", 0.95),
	}

	got, err := queryAssembler(Config{}).Assemble(context.Background(), "question", candidates)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}

	wantOrder := []int{3, 0, 1}
	if len(got.Chunks) != len(wantOrder) {
		t.Fatalf("got %d chunks, want %d", len(got.Chunks), len(wantOrder))
	}
	for i, want := range wantOrder {
		if got.Chunks[i].ChunkIndex != want {
			t.Fatalf("position %d: got chunk index %d, want %d", i, got.Chunks[i].ChunkIndex, want)
		}
	}
	if got.Text != "chunk three\n\nchunk zero\n\nchunk one" {
		t.Fatalf("unexpected context text: %q", got.Text)
	}
	if got.TokensUsed != 6 {
		t.Fatalf("TokensUsed = %d, want 6", got.TokensUsed)
	}
}

func TestAssembleTieBreaksByChunkIndex(t *testing.T) {
	candidates := []model.DocumentChunk{
		chunkAtSimilarity(7, "later chunk", 0.85),
		chunkAtSimilarity(2, "earlier chunk", 0.85),
	}

	got, err := queryAssembler(Config{}).Assemble(context.Background(), "question", candidates)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if got.Chunks[0].ChunkIndex != 2 || got.Chunks[1].ChunkIndex != 7 {
		t.Fatalf("tie not broken by chunk index: %d, %d", got.Chunks[0].ChunkIndex, got.Chunks[1].ChunkIndex)
	}
}

func TestAssembleRespectsTokenCeiling(t *testing.T) {
	candidates := []model.DocumentChunk{
		chunkAtSimilarity(0, "one two three", 0.95),
		chunkAtSimilarity(1, "four five six", 0.9),
		chunkAtSimilarity(2, "seven eight nine", 0.8),
	}

	got, err := queryAssembler(Config{MaxContextTokens: 7}).Assemble(context.Background(), "question", candidates)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(got.Chunks) != 2 {
		t.Fatalf("got %d chunks, want 2 under the ceiling", len(got.Chunks))
	}
	if got.TokensUsed != 6 || got.TokensUsed > 7 {
		t.Fatalf("TokensUsed = %d, want 6 (<= ceiling)", got.TokensUsed)
	}
}

func TestAssembleSkipsAbsentEmbeddings(t *testing.T) {
	candidates := []model.DocumentChunk{
		{DocumentID: "doc-1", ChunkIndex: 0, Content: "no embedding"},
		chunkAtSimilarity(1, "embedded chunk", 0.9),
	}

	got, err := queryAssembler(Config{}).Assemble(context.Background(), "question", candidates)
	if err != nil {
		t.Fatalf("Assemble returned error: %v", err)
	}
	if len(got.Chunks) != 1 || got.Chunks[0].ChunkIndex != 1 {
		t.Fatalf("expected only the embedded chunk, got %+v", got.Chunks)
	}
}

func TestAssembleNoRelevantContent(t *testing.T) {
	candidates := []model.DocumentChunk{
		chunkAtSimilarity(0, "weakly related", 0.4),
		chunkAtSimilarity(1, "barely related", 0.2),
	}

	_, err := queryAssembler(Config{}).Assemble(context.Background(), "question", candidates)
	if !errors.Is(err, ErrNoRelevantContent) {
		t.Fatalf("got %v, want ErrNoRelevantContent", err)
	}
}

func TestAssembleCeilingBelowFirstChunk(t *testing.T) {
	candidates := []model.DocumentChunk{
		chunkAtSimilarity(0, "one two three four five", 0.95),
	}

	_, err := queryAssembler(Config{MaxContextTokens: 3}).Assemble(context.Background(), "question", candidates)
	if !errors.Is(err, ErrNoRelevantContent) {
		t.Fatalf("got %v, want ErrNoRelevantContent when nothing fits", err)
	}
}

func TestAssembleQueryEmbeddingFailure(t *testing.T) {
	a := NewAssembler(&fixedEmbedder{err: errors.New("boom")}, wordCounter{}, Config{})
	_, err := a.Assemble(context.Background(), "question", []model.DocumentChunk{chunkAtSimilarity(0, "x", 0.9)})
	if err == nil || errors.Is(err, ErrNoRelevantContent) {
		t.Fatalf("expected a wrapped embedding failure, got %v", err)
	}
}
