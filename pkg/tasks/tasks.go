// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// DocumentTask is one document ingestion job.
type DocumentTask struct {
	DocumentID string `json:"document_id"`
	ObjectName string `json:"object_name"`
	FileName   string `json:"file_name"`
	MimeType   string `json:"mime_type"`
	UserID     uint   `json:"user_id"`
}
