package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/internal/splitter"
)

// splitterChunks mirrors the segmentation Process performs so tests can
// target individual chunks for failure injection.
func splitterChunks(text string) []string {
	return splitter.Split(text, 1000)
}

type fakeExtractor struct {
	extraction *Extraction
	err        error
	calls      int
}

func (f *fakeExtractor) Extract(_ context.Context, _ []byte, _ string) (*Extraction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

func processorUnderTest(extractor Extractor, client *scriptedClient) *Processor {
	embedder := NewBatchEmbedder(client, config.EmbeddingConfig{BatchSize: 20, BatchPauseMS: 1, MaxAttempts: 2})
	return NewProcessor(extractor, embedder, 1000)
}

func paragraphsFixture() string {
	sentence := strings.Repeat("word ", 15) + "end. " // ~80 chars
	paragraph := strings.TrimSpace(strings.Repeat(sentence, 10))
	return paragraph + "\n\n" + paragraph + "\n\n" + paragraph
}

func TestProcessPlainTextEndToEnd(t *testing.T) {
	client := newScriptedClient()
	p := processorUnderTest(&fakeExtractor{}, client)

	text := paragraphsFixture()
	res, err := p.Process(context.Background(), []byte(text), "text/plain")
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if res.Text != text {
		t.Fatal("result text should be the raw input for text/* documents")
	}
	if len(res.Chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(res.Chunks))
	}
	if res.Metadata.TotalChunks != 3 || res.Metadata.Pages != 1 {
		t.Fatalf("unexpected metadata: %+v", res.Metadata)
	}
	for i, c := range res.Chunks {
		if c.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, c.ChunkIndex)
		}
		if n := utf8.RuneCountInString(c.Content); n > 1000 {
			t.Fatalf("chunk %d is %d runes, exceeds limit", i, n)
		}
		if !c.Embedding.Present {
			t.Fatalf("chunk %d has no embedding", i)
		}
	}
}

func TestProcessBinaryTypeUsesExtractor(t *testing.T) {
	extractor := &fakeExtractor{extraction: &Extraction{
		Text:  "Extracted body of the report.",
		Pages: 4,
		Info:  map[string]string{"Author": "QA"},
	}}
	client := newScriptedClient()
	p := processorUnderTest(extractor, client)

	res, err := p.Process(context.Background(), []byte{0x25, 0x50, 0x44, 0x46}, "application/pdf")
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if extractor.calls != 1 {
		t.Fatalf("extractor called %d times, want 1", extractor.calls)
	}
	if res.Metadata.Pages != 4 || res.Metadata.Info["Author"] != "QA" {
		t.Fatalf("extraction metadata not carried through: %+v", res.Metadata)
	}
	if len(res.Chunks) != 1 || res.Chunks[0].Content != "Extracted body of the report." {
		t.Fatalf("unexpected chunks: %+v", res.Chunks)
	}
}

func TestProcessUnsupportedType(t *testing.T) {
	extractor := &fakeExtractor{}
	p := processorUnderTest(extractor, newScriptedClient())

	_, err := p.Process(context.Background(), []byte("binary"), "application/zip")
	if !errors.Is(err, ErrUnsupportedFileType) {
		t.Fatalf("got %v, want ErrUnsupportedFileType", err)
	}
	var pe *ProcessError
	if !errors.As(err, &pe) || pe.Stage != StageReceived {
		t.Fatalf("got %v, want ProcessError at stage received", err)
	}
	if extractor.calls != 0 {
		t.Fatal("extractor should not be called for an unsupported type")
	}
}

func TestProcessExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: errors.New("tika connection refused")}
	p := processorUnderTest(extractor, newScriptedClient())

	_, err := p.Process(context.Background(), []byte("pdf"), "application/pdf")
	var pe *ProcessError
	if !errors.As(err, &pe) || pe.Stage != StageReceived {
		t.Fatalf("got %v, want ProcessError at stage received", err)
	}
}

func TestProcessEmptyExtractedText(t *testing.T) {
	extractor := &fakeExtractor{extraction: &Extraction{Text: "   \n\t "}}
	p := processorUnderTest(extractor, newScriptedClient())

	_, err := p.Process(context.Background(), []byte("pdf"), "application/pdf")
	var pe *ProcessError
	if !errors.As(err, &pe) || pe.Stage != StageExtracted {
		t.Fatalf("got %v, want ProcessError at stage extracted", err)
	}
}

func TestProcessEmbeddingServiceDown(t *testing.T) {
	client := newScriptedClient()
	text := paragraphsFixture()
	// Every chunk fails both attempts, so the whole batch fails.
	for _, chunk := range splitterChunks(text) {
		client.failures[chunk] = 2
	}
	p := processorUnderTest(&fakeExtractor{}, client)

	_, err := p.Process(context.Background(), []byte(text), "text/plain")
	if !errors.Is(err, ErrEmbeddingUnavailable) {
		t.Fatalf("got %v, want ErrEmbeddingUnavailable", err)
	}
	var pe *ProcessError
	if !errors.As(err, &pe) {
		t.Fatalf("got %v, want ProcessError", err)
	}
}

func TestProcessPartialEmbeddingFailureIsNotFatal(t *testing.T) {
	client := newScriptedClient()
	text := paragraphsFixture()
	chunks := splitterChunks(text)
	if len(chunks) < 2 {
		t.Fatalf("fixture produced %d chunks, need at least 2", len(chunks))
	}
	client.failures[chunks[1]] = 2

	p := processorUnderTest(&fakeExtractor{}, client)
	res, err := p.Process(context.Background(), []byte(text), "text/plain")
	if err != nil {
		t.Fatalf("Process returned error: %v", err)
	}
	if res.Chunks[1].Embedding.Present {
		t.Fatal("chunk 1 should have an absent embedding")
	}
	if !res.Chunks[0].Embedding.Present || !res.Chunks[2].Embedding.Present {
		t.Fatal("other chunks should keep their embeddings")
	}
}
