package model

// Embedding is the vector attached to a chunk. A chunk whose embedding
// generation failed after retry carries an absent embedding; consumers must
// check Present before reading Values. The zero value is absent.
type Embedding struct {
	Values  []float32 `json:"values,omitempty"`
	Present bool      `json:"present"`
}

// NewEmbedding wraps a model-produced vector. An empty vector yields an
// absent embedding.
func NewEmbedding(values []float32) Embedding {
	if len(values) == 0 {
		return Embedding{}
	}
	return Embedding{Values: values, Present: true}
}
