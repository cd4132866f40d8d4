package repository

import (
	"fmt"

	"gorm.io/gorm"

	"research-chatbot/internal/model"
)

type TurnRepository struct {
	db *gorm.DB
}

func NewTurnRepository(db *gorm.DB) *TurnRepository {
	return &TurnRepository{db: db}
}

func (r *TurnRepository) Create(turn *model.Turn) error {
	if err := r.db.Create(turn).Error; err != nil {
		return fmt.Errorf("create turn failed: %w", err)
	}
	return nil
}

// ListRecentBySessionID returns at most limit most recent turns in
// chronological order.
func (r *TurnRepository) ListRecentBySessionID(sessionID string, limit int) ([]model.Turn, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	var recent []model.Turn
	if err := r.db.Where("session_id = ?", sessionID).
		Order("id DESC").
		Limit(limit).
		Find(&recent).Error; err != nil {
		return nil, fmt.Errorf("list turns failed: %w", err)
	}

	// reverse newest-first to chronological
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	return recent, nil
}

// ToolUsage returns per-tool turn counts for a session.
func (r *TurnRepository) ToolUsage(sessionID string) (map[string]int, error) {
	type row struct {
		ToolUsed string
		N        int
	}
	var rows []row
	if err := r.db.Model(&model.Turn{}).
		Select("tool_used, COUNT(*) AS n").
		Where("session_id = ?", sessionID).
		Group("tool_used").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("tool usage query failed: %w", err)
	}

	usage := make(map[string]int, len(rows))
	for _, r := range rows {
		usage[r.ToolUsed] = r.N
	}
	return usage, nil
}

func (r *TurnRepository) DeleteBySessionID(sessionID string) error {
	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.Turn{}).Error; err != nil {
		return fmt.Errorf("delete turns failed: %w", err)
	}
	return nil
}

func (r *TurnRepository) CountBySessionID(sessionID string) (int64, error) {
	var n int64
	if err := r.db.Model(&model.Turn{}).Where("session_id = ?", sessionID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count turns failed: %w", err)
	}
	return n, nil
}
