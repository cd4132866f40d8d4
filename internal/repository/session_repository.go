package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"research-chatbot/internal/model"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(session *model.Session) error {
	if err := r.db.Create(session).Error; err != nil {
		return fmt.Errorf("create session failed: %w", err)
	}
	return nil
}

// GetBySessionID returns nil, nil when the session does not exist.
func (r *SessionRepository) GetBySessionID(sessionID string) (*model.Session, error) {
	var session model.Session
	if err := r.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session failed: %w", err)
	}
	return &session, nil
}

func (r *SessionRepository) ListByUserID(userID string) ([]model.Session, error) {
	var sessions []model.Session
	if err := r.db.Where("user_id = ?", userID).Order("last_activity DESC").Find(&sessions).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	return sessions, nil
}

func (r *SessionRepository) Delete(sessionID string) error {
	if err := r.db.Where("session_id = ?", sessionID).Delete(&model.Session{}).Error; err != nil {
		return fmt.Errorf("delete session failed: %w", err)
	}
	return nil
}

func (r *SessionRepository) TouchActivity(sessionID string, at time.Time) error {
	if err := r.db.Model(&model.Session{}).
		Where("session_id = ?", sessionID).
		Update("last_activity", at).Error; err != nil {
		return fmt.Errorf("touch session activity failed: %w", err)
	}
	return nil
}
