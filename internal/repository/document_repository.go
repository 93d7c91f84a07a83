// Package repository defines the data access layer.
package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ai-doc-chat-go/internal/model"
)

// DocumentRepository defines persistence operations for documents and their
// chunks. There is no transaction spanning the two tables: a crash between
// saving a document and saving its chunks can leave a document with zero
// chunks, which callers tolerate by re-ingesting.
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByID(id string) (*model.Document, error)
	FindByUser(userID uint) ([]model.Document, error)
	FindBatchByIDs(ids []string) ([]*model.Document, error)
	UpdateStatus(id string, status int) error
	UpdateProcessingResult(doc *model.Document) error
	SaveChunks(chunks []*model.DocumentChunk) error
	FindChunksByDocument(documentID string) ([]*model.DocumentChunk, error)
	DeleteDocumentAndChunks(id string, userID uint) error
}

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository creates a new DocumentRepository instance.
func NewDocumentRepository(db *gorm.DB) DocumentRepository {
	return &documentRepository{db: db}
}

// Create inserts a new document record.
func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

// FindByID retrieves a document by its identifier.
func (r *documentRepository) FindByID(id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ?", id).First(&doc).Error; err != nil {
		return nil, err
	}
	return &doc, nil
}

// FindByUser lists a user's documents, newest first.
func (r *documentRepository) FindByUser(userID uint) ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Where("user_id = ?", userID).Order("created_at desc").Find(&docs).Error
	return docs, err
}

// FindBatchByIDs finds documents by a slice of identifiers.
func (r *documentRepository) FindBatchByIDs(ids []string) ([]*model.Document, error) {
	var docs []*model.Document
	if len(ids) == 0 {
		return docs, nil
	}
	err := r.db.Where("id IN ?", ids).Find(&docs).Error
	return docs, err
}

// UpdateStatus updates a document's processing status.
func (r *documentRepository) UpdateStatus(id string, status int) error {
	return r.db.Model(&model.Document{}).Where("id = ?", id).Update("status", status).Error
}

// UpdateProcessingResult saves the fields filled in by ingestion: extracted
// text, page count, chunk count and status.
func (r *documentRepository) UpdateProcessingResult(doc *model.Document) error {
	return r.db.Model(&model.Document{}).Where("id = ?", doc.ID).Updates(map[string]interface{}{
		"text":        doc.Text,
		"pages":       doc.Pages,
		"chunk_count": doc.ChunkCount,
		"status":      doc.Status,
	}).Error
}

// SaveChunks batch-inserts chunk records, 100 rows per insert.
func (r *documentRepository) SaveChunks(chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error
}

// FindChunksByDocument returns a document's chunks ordered by chunk index,
// which is the document's reading order.
func (r *documentRepository) FindChunksByDocument(documentID string) ([]*model.DocumentChunk, error) {
	var chunks []*model.DocumentChunk
	err := r.db.Where("document_id = ?", documentID).Order("chunk_index asc").Find(&chunks).Error
	return chunks, err
}

// DeleteDocumentAndChunks removes a document and all of its chunks. The two
// deletes are not atomic; partial failures are joined and reported.
func (r *documentRepository) DeleteDocumentAndChunks(id string, userID uint) error {
	var errs []error

	if err := r.db.Where("document_id = ?", id).Delete(&model.DocumentChunk{}).Error; err != nil {
		errs = append(errs, err)
	}
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).Delete(&model.Document{}).Error; err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to fully delete document (id=%s, userID=%d): %w", id, userID, errors.Join(errs...))
	}
	return nil
}
