package model

import "time"

// Document is a source artifact reference. The raw text lives with the
// ingestion side; the core only keeps the chunks derived from it.
type Document struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Title      string    `gorm:"size:256;not null" json:"title"`
	SourceType string    `gorm:"size:16;not null" json:"source_type"` // text or pdf
	CreatedAt  time.Time `json:"created_at"`
}
