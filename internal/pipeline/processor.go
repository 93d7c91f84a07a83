package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/internal/splitter"
	"ai-doc-chat-go/pkg/log"
	"ai-doc-chat-go/pkg/tika"
)

const defaultMaxChunkSize = 1000

// Extraction is the text-extraction collaborator's output.
type Extraction struct {
	Text  string
	Pages int
	Info  map[string]string
}

// Extractor converts raw binary document bytes into plain text.
type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*Extraction, error)
}

// TikaExtractor adapts the Tika client to the Extractor interface.
type TikaExtractor struct {
	Client *tika.Client
}

func (t *TikaExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*Extraction, error) {
	res, err := t.Client.Extract(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}
	return &Extraction{Text: res.Text, Pages: res.Pages, Info: res.Metadata}, nil
}

// binaryTypes lists the MIME types routed through the extraction
// collaborator. text/* passes through without an extraction call.
var binaryTypes = map[string]bool{
	"application/pdf":    true,
	"application/msword": true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
	"application/vnd.ms-powerpoint":                                           true,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"application/rtf": true,
}

// IsSupportedType reports whether a MIME type has a processing path.
func IsSupportedType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "text/") || binaryTypes[mimeType]
}

// Metadata summarizes a processed document.
type Metadata struct {
	Pages       int
	Info        map[string]string
	TotalChunks int
}

// Result is the output of one processing pass: the extracted text and the
// index-ordered chunks ready for persistence.
type Result struct {
	Text     string
	Chunks   []model.DocumentChunk
	Metadata Metadata
}

// Processor converts one uploaded document into embedded chunks:
// extraction, segmentation, then embedding. It holds no state between calls.
type Processor struct {
	extractor    Extractor
	embedder     *BatchEmbedder
	maxChunkSize int
}

// NewProcessor creates a Processor. maxChunkSize <= 0 selects the default
// of 1000 characters.
func NewProcessor(extractor Extractor, embedder *BatchEmbedder, maxChunkSize int) *Processor {
	if maxChunkSize <= 0 {
		maxChunkSize = defaultMaxChunkSize
	}
	return &Processor{extractor: extractor, embedder: embedder, maxChunkSize: maxChunkSize}
}

// Process runs the Received -> Extracted -> Segmented -> Embedded -> Done
// state machine for one document. Extraction failures and total embedding
// unavailability are fatal and surface as a ProcessError naming the failed
// stage; individual chunks whose embedding failed after retry are kept with
// an absent embedding and do not fail the pass.
func (p *Processor) Process(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	log.Infof("[Processor] processing document, mimeType: %s, size: %d bytes", mimeType, len(data))

	extraction, err := p.extract(ctx, data, mimeType)
	if err != nil {
		return nil, failAt(StageReceived, err)
	}
	if strings.TrimSpace(extraction.Text) == "" {
		return nil, failAt(StageExtracted, errors.New("extracted text is empty"))
	}
	log.Infof("[Processor] extracted %d characters over %d pages",
		utf8.RuneCountInString(extraction.Text), extraction.Pages)

	texts := splitter.Split(extraction.Text, p.maxChunkSize)
	if len(texts) == 0 {
		return nil, failAt(StageSegmented, errors.New("no chunks produced from text"))
	}
	log.Infof("[Processor] segmented text into %d chunks, maxChunkSize: %d", len(texts), p.maxChunkSize)

	embeddings, err := p.embedder.EmbedAll(ctx, texts)
	if err != nil {
		return nil, failAt(StageSegmented, fmt.Errorf("failed to embed chunks: %w", err))
	}

	chunks := make([]model.DocumentChunk, len(texts))
	embedded := 0
	for i, text := range texts {
		chunks[i] = model.DocumentChunk{
			ChunkIndex: i,
			Content:    text,
			Embedding:  embeddings[i],
		}
		if embeddings[i].Present {
			embedded++
		}
	}
	log.Infof("[Processor] embedded %d of %d chunks", embedded, len(chunks))

	return &Result{
		Text:   extraction.Text,
		Chunks: chunks,
		Metadata: Metadata{
			Pages:       extraction.Pages,
			Info:        extraction.Info,
			TotalChunks: len(chunks),
		},
	}, nil
}

func (p *Processor) extract(ctx context.Context, data []byte, mimeType string) (*Extraction, error) {
	switch {
	case strings.HasPrefix(mimeType, "text/"):
		return &Extraction{Text: string(data), Pages: 1}, nil
	case binaryTypes[mimeType]:
		extraction, err := p.extractor.Extract(ctx, data, mimeType)
		if err != nil {
			return nil, fmt.Errorf("extraction failed: %w", err)
		}
		return extraction, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, mimeType)
	}
}
