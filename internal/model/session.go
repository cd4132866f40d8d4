package model

import "time"

type Session struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	SessionID    string    `gorm:"size:36;not null;uniqueIndex" json:"session_id"`
	UserID       string    `gorm:"size:64;not null;index" json:"user_id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
}
