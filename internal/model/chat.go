package model

import "time"

// ChatMessage is a single conversation message stored in Redis.
type ChatMessage struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatRequest is the payload sent over the chat websocket: the question and
// the document set the answer must be grounded in.
type ChatRequest struct {
	Message     string   `json:"message"`
	DocumentIDs []string `json:"documentIds"`
}
