package pipeline

import (
	"context"
	"fmt"
	"time"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/pkg/embedding"
	"ai-doc-chat-go/pkg/log"
)

const (
	defaultBatchSize   = 20
	defaultBatchPause  = 200 * time.Millisecond
	defaultMaxAttempts = 2
)

// BatchEmbedder turns chunk texts into embeddings in fixed-size batches.
// Batches run sequentially with a short pause between them so the external
// service sees a bounded, predictable load; a batch is first dispatched as a
// single batched request and falls back to concurrent per-item requests when
// that fails. Each item is governed by the shared retry policy, and an item
// that exhausts its attempts yields an absent embedding instead of aborting
// the rest of the document.
type BatchEmbedder struct {
	client    embedding.Client
	batchSize int
	pause     time.Duration
	retry     retryPolicy
}

// NewBatchEmbedder creates a BatchEmbedder, filling unset config fields with
// the defaults (batch size 20, 200ms pause, 2 attempts per item).
func NewBatchEmbedder(client embedding.Client, cfg config.EmbeddingConfig) *BatchEmbedder {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	pause := time.Duration(cfg.BatchPauseMS) * time.Millisecond
	if pause <= 0 {
		pause = defaultBatchPause
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	return &BatchEmbedder{
		client:    client,
		batchSize: batchSize,
		pause:     pause,
		retry:     retryPolicy{maxAttempts: attempts},
	}
}

// EmbedAll returns one embedding per input text, order-preserving. Items
// whose requests failed after retry come back absent. The call as a whole
// fails with ErrEmbeddingUnavailable only when every item of a batch fails,
// i.e. the service is down rather than one input being bad.
func (e *BatchEmbedder) EmbedAll(ctx context.Context, texts []string) ([]model.Embedding, error) {
	results := make([]model.Embedding, len(texts))

	for start := 0; start < len(texts); start += e.batchSize {
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]
		log.Infof("[BatchEmbedder] embedding batch %d-%d of %d texts", start, end-1, len(texts))

		failed, err := e.dispatchBatch(ctx, batch, results[start:end])
		if err != nil {
			return nil, err
		}
		if failed == len(batch) {
			return nil, fmt.Errorf("%w: all %d requests in batch failed", ErrEmbeddingUnavailable, len(batch))
		}
		if failed > 0 {
			log.Warnf("[BatchEmbedder] %d of %d items in batch have no embedding after retry", failed, len(batch))
		}

		if end < len(texts) {
			select {
			case <-time.After(e.pause):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return results, nil
}

// dispatchBatch fills out with one embedding per batch item and reports how
// many items ended up absent. It tries the batched endpoint once, then falls
// back to per-item requests running concurrently; results are reassembled by
// index, so output order never depends on completion order.
func (e *BatchEmbedder) dispatchBatch(ctx context.Context, batch []string, out []model.Embedding) (int, error) {
	if vectors, err := e.client.CreateEmbeddings(ctx, batch); err == nil && len(vectors) == len(batch) {
		for i, v := range vectors {
			out[i] = model.NewEmbedding(v)
		}
		return 0, nil
	} else if err != nil {
		log.Warnf("[BatchEmbedder] batched request failed, retrying items individually: %v", err)
	}

	if ctx.Err() != nil {
		return 0, ctx.Err()
	}

	type itemResult struct {
		idx int
		emb model.Embedding
	}
	resCh := make(chan itemResult, len(batch))

	for i, text := range batch {
		go func(idx int, text string) {
			var vec []float32
			err := e.retry.do(ctx, func(ctx context.Context) error {
				v, err := e.client.CreateEmbedding(ctx, text)
				if err != nil {
					return err
				}
				vec = v
				return nil
			})
			if err != nil {
				log.Warnf("[BatchEmbedder] item %d failed after retry: %v", idx, err)
				resCh <- itemResult{idx: idx}
				return
			}
			resCh <- itemResult{idx: idx, emb: model.NewEmbedding(vec)}
		}(i, text)
	}

	failed := 0
	for range batch {
		r := <-resCh
		out[r.idx] = r.emb
		if !r.emb.Present {
			failed++
		}
	}
	return failed, nil
}
