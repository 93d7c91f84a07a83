package pipeline

import (
	"context"
	"fmt"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/internal/repository"
	"ai-doc-chat-go/pkg/es"
	"ai-doc-chat-go/pkg/log"
	"ai-doc-chat-go/pkg/storage"
	"ai-doc-chat-go/pkg/tasks"
)

// Ingestor consumes document tasks from the queue: it downloads the raw
// file, runs the Processor and persists the outcome. It satisfies
// kafka.TaskProcessor.
type Ingestor struct {
	processor *Processor
	docRepo   repository.DocumentRepository
	minioCfg  config.MinIOConfig
	esCfg     config.ElasticsearchConfig
	modelName string
}

// NewIngestor creates a new Ingestor instance.
func NewIngestor(
	processor *Processor,
	docRepo repository.DocumentRepository,
	minioCfg config.MinIOConfig,
	esCfg config.ElasticsearchConfig,
	embeddingCfg config.EmbeddingConfig,
) *Ingestor {
	return &Ingestor{
		processor: processor,
		docRepo:   docRepo,
		minioCfg:  minioCfg,
		esCfg:     esCfg,
		modelName: embeddingCfg.Model,
	}
}

// Process handles one ingestion task end to end. Any fatal pipeline error
// marks the document failed and is returned to the consumer, which decides
// whether to retry the task.
func (ing *Ingestor) Process(ctx context.Context, task tasks.DocumentTask) error {
	log.Infof("[Ingestor] starting ingestion, documentID: %s, fileName: %s", task.DocumentID, task.FileName)

	if err := ing.ingest(ctx, task); err != nil {
		log.Errorf("[Ingestor] ingestion failed, documentID: %s, error: %v", task.DocumentID, err)
		if statusErr := ing.docRepo.UpdateStatus(task.DocumentID, model.DocumentStatusFailed); statusErr != nil {
			log.Errorf("[Ingestor] failed to mark document failed, documentID: %s, error: %v", task.DocumentID, statusErr)
		}
		return err
	}

	log.Infof("[Ingestor] ingestion completed, documentID: %s", task.DocumentID)
	return nil
}

func (ing *Ingestor) ingest(ctx context.Context, task tasks.DocumentTask) error {
	data, err := storage.GetObject(ctx, ing.minioCfg.BucketName, task.ObjectName)
	if err != nil {
		return fmt.Errorf("failed to download object %q: %w", task.ObjectName, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("object %q is empty", task.ObjectName)
	}
	log.Infof("[Ingestor] downloaded %d bytes from object storage", len(data))

	result, err := ing.processor.Process(ctx, data, task.MimeType)
	if err != nil {
		return err
	}

	chunks := make([]*model.DocumentChunk, 0, len(result.Chunks))
	for i := range result.Chunks {
		chunk := result.Chunks[i]
		chunk.DocumentID = task.DocumentID
		chunks = append(chunks, &chunk)
	}
	if err := ing.docRepo.SaveChunks(chunks); err != nil {
		return fmt.Errorf("failed to save chunks: %w", err)
	}
	log.Infof("[Ingestor] saved %d chunks for documentID: %s", len(chunks), task.DocumentID)

	// Index embedded chunks for hybrid search. Chunks whose embedding was
	// dropped after retry stay retrievable from the database but are not
	// semantically searchable.
	indexed := 0
	for _, chunk := range chunks {
		if !chunk.Embedding.Present {
			continue
		}
		doc := model.ChunkIndexDoc{
			ChunkKey:     fmt.Sprintf("%s_%d", task.DocumentID, chunk.ChunkIndex),
			DocumentID:   task.DocumentID,
			ChunkIndex:   chunk.ChunkIndex,
			Content:      chunk.Content,
			Vector:       chunk.Embedding.Values,
			ModelVersion: ing.modelName,
			UserID:       task.UserID,
		}
		if err := es.IndexChunk(ctx, ing.esCfg.IndexName, doc); err != nil {
			return fmt.Errorf("failed to index chunk %d: %w", chunk.ChunkIndex, err)
		}
		indexed++
	}
	log.Infof("[Ingestor] indexed %d of %d chunks into Elasticsearch", indexed, len(chunks))

	doc := &model.Document{
		ID:         task.DocumentID,
		Text:       result.Text,
		Pages:      result.Metadata.Pages,
		ChunkCount: result.Metadata.TotalChunks,
		Status:     model.DocumentStatusReady,
	}
	if err := ing.docRepo.UpdateProcessingResult(doc); err != nil {
		return fmt.Errorf("failed to update document record: %w", err)
	}
	return nil
}
