package model

// ChunkIndexDoc is the chunk representation stored in Elasticsearch for the
// hybrid search feature. Only chunks with a present embedding are indexed.
type ChunkIndexDoc struct {
	ChunkKey     string    `json:"chunk_key"` // documentID_chunkIndex
	DocumentID   string    `json:"document_id"`
	ChunkIndex   int       `json:"chunk_index"`
	Content      string    `json:"content"`
	Vector       []float32 `json:"vector"`
	ModelVersion string    `json:"model_version"`
	UserID       uint      `json:"user_id"`
}

// SearchResponseDTO is a single hybrid search hit returned to the client.
type SearchResponseDTO struct {
	DocumentID string  `json:"documentId"`
	Title      string  `json:"title"`
	ChunkIndex int     `json:"chunkIndex"`
	Content    string  `json:"content"`
	Score      float64 `json:"score"`
}
