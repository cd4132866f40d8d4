package repository

import (
	"fmt"

	"gorm.io/gorm"

	"research-chatbot/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// ReplaceForDocument atomically swaps a document's chunks: prior chunks are
// deleted and the new set inserted in one transaction, so a re-ingested
// document never leaves orphaned embeddings behind.
func (r *ChunkRepository) ReplaceForDocument(documentID string, chunks []model.Chunk) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
			return fmt.Errorf("delete prior chunks failed: %w", err)
		}
		if len(chunks) == 0 {
			return nil
		}
		if err := tx.Create(&chunks).Error; err != nil {
			return fmt.Errorf("insert chunks failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("replace chunks for document %s failed: %w", documentID, err)
	}
	return nil
}

func (r *ChunkRepository) ListByDocumentID(documentID string) ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Where("document_id = ?", documentID).Order("ordinal ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document failed: %w", err)
	}
	return chunks, nil
}

// ListAll returns every stored chunk, used to build the in-memory index.
func (r *ChunkRepository) ListAll() ([]model.Chunk, error) {
	var chunks []model.Chunk
	if err := r.db.Order("document_id ASC, ordinal ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list all chunks failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) DeleteByDocumentID(documentID string) error {
	if err := r.db.Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}
