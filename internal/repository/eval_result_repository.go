package repository

import (
	"fmt"

	"gorm.io/gorm"

	"research-chatbot/internal/model"
)

type EvalResultRepository struct {
	db *gorm.DB
}

func NewEvalResultRepository(db *gorm.DB) *EvalResultRepository {
	return &EvalResultRepository{db: db}
}

func (r *EvalResultRepository) Create(result *model.EvalResult) error {
	if err := r.db.Create(result).Error; err != nil {
		return fmt.Errorf("create eval result failed: %w", err)
	}
	return nil
}

func (r *EvalResultRepository) ListRecent(limit int) ([]model.EvalResult, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var results []model.EvalResult
	if err := r.db.Order("id DESC").Limit(limit).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("list eval results failed: %w", err)
	}
	return results, nil
}
