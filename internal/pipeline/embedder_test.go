package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init("error", "console", "")
	os.Exit(m.Run())
}

// scriptedClient embeds texts deterministically and can be told to fail
// specific texts a set number of times. It forces the per-item fallback path
// by rejecting batched requests.
type scriptedClient struct {
	mu         sync.Mutex
	failures   map[string]int // remaining failures per text
	batchErr   error
	delays     map[string]time.Duration
	batchCalls int
	itemCalls  int
}

func newScriptedClient() *scriptedClient {
	return &scriptedClient{
		failures: map[string]int{},
		delays:   map[string]time.Duration{},
		batchErr: errors.New("batch endpoint disabled"),
	}
}

// vectorFor derives a distinct vector from the text so tests can verify
// result-to-input correlation.
func vectorFor(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func (c *scriptedClient) CreateEmbedding(_ context.Context, text string) ([]float32, error) {
	c.mu.Lock()
	c.itemCalls++
	remaining := c.failures[text]
	if remaining > 0 {
		c.failures[text] = remaining - 1
	}
	delay := c.delays[text]
	c.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if remaining > 0 {
		return nil, fmt.Errorf("injected failure for %q", text)
	}
	return vectorFor(text), nil
}

func (c *scriptedClient) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	c.mu.Lock()
	c.batchCalls++
	err := c.batchErr
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, itemErr := c.CreateEmbedding(ctx, t)
		if itemErr != nil {
			return nil, itemErr
		}
		out[i] = v
	}
	return out, nil
}

func embedderUnderTest(client *scriptedClient) *BatchEmbedder {
	return NewBatchEmbedder(client, config.EmbeddingConfig{BatchSize: 3, BatchPauseMS: 1, MaxAttempts: 2})
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = strings.Repeat("a", i+1) // distinct lengths, distinct vectors
	}
	return out
}

func TestEmbedAllPreservesLengthAndOrder(t *testing.T) {
	client := newScriptedClient()
	// Vary per-item latency so completion order differs from input order.
	in := texts(7)
	client.delays[in[0]] = 20 * time.Millisecond
	client.delays[in[2]] = 10 * time.Millisecond

	got, err := embedderUnderTest(client).EmbedAll(context.Background(), in)
	if err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}
	if len(got) != len(in) {
		t.Fatalf("got %d results, want %d", len(got), len(in))
	}
	for i, e := range got {
		if !e.Present {
			t.Fatalf("result %d unexpectedly absent", i)
		}
		want := vectorFor(in[i])
		if e.Values[0] != want[0] {
			t.Fatalf("result %d correlates with the wrong input: got %v, want %v", i, e.Values, want)
		}
	}
}

func TestEmbedAllSingleItemFaultYieldsSingleAbsence(t *testing.T) {
	client := newScriptedClient()
	in := texts(5)
	client.failures[in[3]] = 2 // fails the first attempt and the retry

	got, err := embedderUnderTest(client).EmbedAll(context.Background(), in)
	if err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}
	for i, e := range got {
		if i == 3 {
			if e.Present {
				t.Fatalf("result %d should be absent after exhausted retries", i)
			}
			continue
		}
		if !e.Present {
			t.Fatalf("result %d should be present", i)
		}
	}
}

func TestEmbedAllRetryRecoversTransientFault(t *testing.T) {
	client := newScriptedClient()
	in := texts(4)
	client.failures[in[1]] = 1 // first attempt fails, retry succeeds

	got, err := embedderUnderTest(client).EmbedAll(context.Background(), in)
	if err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}
	if !got[1].Present {
		t.Fatal("transient fault should have been recovered by the retry")
	}
}

func TestEmbedAllServiceDownIsFatal(t *testing.T) {
	client := newScriptedClient()
	in := texts(3)
	for _, text := range in {
		client.failures[text] = 2
	}

	_, err := embedderUnderTest(client).EmbedAll(context.Background(), in)
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("got %v, want ErrEmbeddingUnavailable", err)
	}
}

func TestEmbedAllUsesBatchedEndpointWhenAvailable(t *testing.T) {
	client := newScriptedClient()
	client.batchErr = nil
	in := texts(6)

	got, err := embedderUnderTest(client).EmbedAll(context.Background(), in)
	if err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}
	for i, e := range got {
		if !e.Present {
			t.Fatalf("result %d unexpectedly absent", i)
		}
	}
	if client.batchCalls != 2 { // 6 texts, batch size 3
		t.Fatalf("batchCalls = %d, want 2", client.batchCalls)
	}
}

func TestEmbedAllEmptyInput(t *testing.T) {
	got, err := embedderUnderTest(newScriptedClient()).EmbedAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedAll returned error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("got %d results for empty input", len(got))
	}
}
