// Package model contains the application's data model definitions.
package model

import "time"

// Document processing status values.
const (
	DocumentStatusProcessing = 0
	DocumentStatusReady      = 1
	DocumentStatusFailed     = 2
)

// Document maps to the 'documents' table. One row per uploaded file; the
// extracted text and summary metadata are filled in once ingestion completes.
type Document struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"userId"`
	Title      string    `gorm:"type:varchar(255);not null" json:"title"`
	FileName   string    `gorm:"type:varchar(255);not null" json:"fileName"`
	MimeType   string    `gorm:"type:varchar(100);not null" json:"mimeType"`
	FileSize   int64     `gorm:"not null" json:"fileSize"`
	Text       string    `gorm:"type:longtext" json:"-"`
	Pages      int       `gorm:"not null;default:0" json:"pages"`
	ChunkCount int       `gorm:"not null;default:0" json:"chunkCount"`
	Status     int       `gorm:"type:tinyint;not null;default:0" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the database table for this model.
func (Document) TableName() string {
	return "documents"
}

// DocumentChunk maps to the 'document_chunks' table. Chunks belong to
// exactly one document and are created together in a single ingestion pass.
// ChunkIndex is the chunk's zero-based position in the source text; ordering
// by it reconstructs the document's reading order.
type DocumentChunk struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	DocumentID string    `gorm:"type:varchar(36);not null;index" json:"documentId"`
	ChunkIndex int       `gorm:"not null" json:"chunkIndex"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	Embedding  Embedding `gorm:"serializer:json" json:"embedding"`
	PageNumber *int      `json:"pageNumber,omitempty"`
}

// TableName specifies the database table for this model.
func (DocumentChunk) TableName() string {
	return "document_chunks"
}
