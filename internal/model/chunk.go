package model

import (
	"encoding/json"
	"time"
)

// Chunk stores a contiguous span of a document's text and its embedding for
// retrieval. Embedding is stored as a JSON array of float32 for portability.
// Chunks are immutable after ingestion; re-ingesting a document replaces them.
type Chunk struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	DocumentID  string    `gorm:"size:36;not null;index" json:"document_id"`
	Ordinal     int       `gorm:"not null" json:"ordinal"`
	Text        string    `gorm:"type:text;not null" json:"text"`
	StartOffset int       `gorm:"not null" json:"start_offset"`
	CharLength  int       `gorm:"not null" json:"char_length"`
	Embedding   string    `gorm:"type:text" json:"-"` // JSON array of float32
	CreatedAt   time.Time `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; empty on parse error.
func (c *Chunk) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *Chunk) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}
