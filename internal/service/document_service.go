// Package service contains the application's business logic layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"ai-doc-chat-go/internal/config"
	"ai-doc-chat-go/internal/model"
	"ai-doc-chat-go/internal/pipeline"
	"ai-doc-chat-go/internal/repository"
	"ai-doc-chat-go/pkg/es"
	"ai-doc-chat-go/pkg/kafka"
	"ai-doc-chat-go/pkg/log"
	"ai-doc-chat-go/pkg/storage"
	"ai-doc-chat-go/pkg/tasks"
)

// ErrDocumentNotFound is returned when a document does not exist or belongs
// to a different user.
var ErrDocumentNotFound = errors.New("document not found")

// ErrUnsupportedUpload is returned when the uploaded file's MIME type has no
// processing path.
var ErrUnsupportedUpload = errors.New("unsupported file type")

// DocumentService defines the document management operations.
type DocumentService interface {
	Upload(ctx context.Context, userID uint, fileName, mimeType string, data []byte) (*model.Document, error)
	List(userID uint) ([]model.Document, error)
	Get(id string, userID uint) (*model.Document, error)
	Delete(ctx context.Context, id string, userID uint) error
}

type documentService struct {
	docRepo  repository.DocumentRepository
	minioCfg config.MinIOConfig
	esCfg    config.ElasticsearchConfig
}

// NewDocumentService creates a new DocumentService instance.
func NewDocumentService(docRepo repository.DocumentRepository, minioCfg config.MinIOConfig, esCfg config.ElasticsearchConfig) DocumentService {
	return &documentService{
		docRepo:  docRepo,
		minioCfg: minioCfg,
		esCfg:    esCfg,
	}
}

// Upload stores the raw file, records the document as processing and queues
// it for ingestion. The caller gets the document back immediately; embedding
// happens asynchronously.
func (s *documentService) Upload(ctx context.Context, userID uint, fileName, mimeType string, data []byte) (*model.Document, error) {
	if !pipeline.IsSupportedType(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedUpload, mimeType)
	}
	if len(data) == 0 {
		return nil, errors.New("uploaded file is empty")
	}

	doc := &model.Document{
		ID:       uuid.NewString(),
		UserID:   userID,
		Title:    titleFromFileName(fileName),
		FileName: fileName,
		MimeType: mimeType,
		FileSize: int64(len(data)),
		Status:   model.DocumentStatusProcessing,
	}

	objectName := objectNameFor(doc.ID, fileName)
	if err := storage.PutObject(ctx, s.minioCfg.BucketName, objectName, data, mimeType); err != nil {
		return nil, fmt.Errorf("failed to store uploaded file: %w", err)
	}

	if err := s.docRepo.Create(doc); err != nil {
		// The stored object is orphaned without a document row; remove it.
		if rmErr := storage.RemoveObject(ctx, s.minioCfg.BucketName, objectName); rmErr != nil {
			log.Errorf("failed to remove orphaned object %s: %v", objectName, rmErr)
		}
		return nil, fmt.Errorf("failed to create document record: %w", err)
	}

	task := tasks.DocumentTask{
		DocumentID: doc.ID,
		ObjectName: objectName,
		FileName:   fileName,
		MimeType:   mimeType,
		UserID:     userID,
	}
	if err := kafka.ProduceDocumentTask(task); err != nil {
		// The document row exists; mark it failed so the client sees a
		// terminal state instead of a permanent "processing".
		if updErr := s.docRepo.UpdateStatus(doc.ID, model.DocumentStatusFailed); updErr != nil {
			log.Errorf("failed to mark document %s as failed: %v", doc.ID, updErr)
		}
		return nil, fmt.Errorf("failed to queue document for processing: %w", err)
	}

	log.Infof("[DocumentService] document %s uploaded and queued, user: %d, file: %s", doc.ID, userID, fileName)
	return doc, nil
}

// List returns the user's documents, newest first.
func (s *documentService) List(userID uint) ([]model.Document, error) {
	return s.docRepo.FindByUser(userID)
}

// Get returns one document, enforcing ownership.
func (s *documentService) Get(id string, userID uint) (*model.Document, error) {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return nil, ErrDocumentNotFound
	}
	if doc.UserID != userID {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes a document everywhere it lives: the search index, object
// storage and the database. Index and storage cleanup failures are logged but
// do not block the database delete; a re-upload reuses neither the ID nor the
// object name.
func (s *documentService) Delete(ctx context.Context, id string, userID uint) error {
	doc, err := s.Get(id, userID)
	if err != nil {
		return err
	}

	if err := es.DeleteByDocument(ctx, s.esCfg.IndexName, doc.ID); err != nil {
		log.Errorf("failed to delete document %s from search index: %v", doc.ID, err)
	}

	objectName := objectNameFor(doc.ID, doc.FileName)
	if err := storage.RemoveObject(ctx, s.minioCfg.BucketName, objectName); err != nil {
		log.Errorf("failed to remove object %s: %v", objectName, err)
	}

	return s.docRepo.DeleteDocumentAndChunks(doc.ID, userID)
}

func objectNameFor(documentID, fileName string) string {
	return fmt.Sprintf("documents/%s/%s", documentID, fileName)
}

func titleFromFileName(fileName string) string {
	title := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	if title == "" {
		return fileName
	}
	return title
}
