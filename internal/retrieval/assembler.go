package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/pkg/embedding"
	"ai-doc-chat-go/pkg/log"
	"ai-doc-chat-go/pkg/tokenizer"
)

// ErrNoRelevantContent signals that no chunk cleared the similarity
// threshold or that the token ceiling admitted nothing. It is a designed
// outcome, not a failure; callers should answer "no relevant content" rather
// than prompt the model with an empty context.
var ErrNoRelevantContent = errors.New("no relevant content")

// Config tunes context assembly. Zero values fall back to the defaults.
type Config struct {
	SimilarityThreshold float64 // minimum cosine similarity, default 0.7
	MaxChunks           int     // candidate cap after ranking, default 15
	MaxContextTokens    int     // token ceiling for the packed context, default 50000
}

const (
	defaultSimilarityThreshold = 0.7
	defaultMaxChunks           = 15
	defaultMaxContextTokens    = 50000
)

// ScoredChunk is a candidate chunk annotated with its query similarity.
type ScoredChunk struct {
	model.DocumentChunk
	Similarity float64
}

// Context is an assembled, budget-bounded context block.
type Context struct {
	Text       string
	TokensUsed int
	Chunks     []ScoredChunk
}

// Assembler ranks candidate chunks against a query and packs the best ones
// into a context under the configured token ceiling.
type Assembler struct {
	embeddingClient embedding.Client
	counter         tokenizer.Counter
	cfg             Config
}

// NewAssembler creates an Assembler with the given collaborators, filling
// unset config fields with the defaults.
func NewAssembler(client embedding.Client, counter tokenizer.Counter, cfg Config) *Assembler {
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = defaultSimilarityThreshold
	}
	if cfg.MaxChunks == 0 {
		cfg.MaxChunks = defaultMaxChunks
	}
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = defaultMaxContextTokens
	}
	return &Assembler{embeddingClient: client, counter: counter, cfg: cfg}
}

// Assemble embeds the query, scores every candidate with a present
// embedding, filters by the similarity threshold, ranks by similarity
// descending (ties broken by chunk index ascending) and packs the top
// candidates into a blank-line separated block until the token ceiling is
// reached. Given identical candidates and query embedding the result is
// deterministic.
func (a *Assembler) Assemble(ctx context.Context, query string, candidates []model.DocumentChunk) (*Context, error) {
	queryVector, err := a.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(candidates))
	for _, chunk := range candidates {
		sim := Score(queryVector, chunk.Embedding)
		if sim >= a.cfg.SimilarityThreshold {
			scored = append(scored, ScoredChunk{DocumentChunk: chunk, Similarity: sim})
		}
	}
	log.Infof("[Assembler] %d of %d candidate chunks cleared similarity threshold %.2f",
		len(scored), len(candidates), a.cfg.SimilarityThreshold)

	if len(scored) == 0 {
		return nil, ErrNoRelevantContent
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Similarity != scored[j].Similarity {
			return scored[i].Similarity > scored[j].Similarity
		}
		return scored[i].ChunkIndex < scored[j].ChunkIndex
	})

	if len(scored) > a.cfg.MaxChunks {
		scored = scored[:a.cfg.MaxChunks]
	}

	var builder strings.Builder
	var packed []ScoredChunk
	tokensUsed := 0
	for _, chunk := range scored {
		chunkTokens := a.counter.CountTokens(chunk.Content)
		if tokensUsed+chunkTokens > a.cfg.MaxContextTokens {
			log.Infof("[Assembler] stopping at %d tokens to stay under the %d token ceiling",
				tokensUsed, a.cfg.MaxContextTokens)
			break
		}
		if builder.Len() > 0 {
			builder.WriteString("\n\n")
		}
		builder.WriteString(chunk.Content)
		tokensUsed += chunkTokens
		packed = append(packed, chunk)
	}

	if len(packed) == 0 {
		// The highest ranked chunk alone exceeds the ceiling.
		return nil, ErrNoRelevantContent
	}

	log.Infof("[Assembler] assembled context from %d chunks, %d tokens", len(packed), tokensUsed)
	return &Context{Text: builder.String(), TokensUsed: tokensUsed, Chunks: packed}, nil
}
