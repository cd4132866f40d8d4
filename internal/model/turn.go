package model

import (
	"encoding/json"
	"time"
)

// Turn is one completed question/answer exchange in a session. Turns are
// append-only; the memory window excludes old turns but never rewrites them.
type Turn struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;not null;index" json:"session_id"`
	Query     string    `gorm:"type:text;not null" json:"query"`
	Response  string    `gorm:"type:text;not null" json:"response"`
	ToolUsed  string    `gorm:"size:16;not null;index" json:"tool_used"`
	Citations string    `gorm:"type:text" json:"-"` // JSON array of Citation
	CreatedAt time.Time `json:"created_at"`
}

// CitationList returns the parsed citations; empty on parse error.
func (t *Turn) CitationList() []Citation {
	if t.Citations == "" {
		return nil
	}
	var list []Citation
	_ = json.Unmarshal([]byte(t.Citations), &list)
	return list
}

// SetCitations stores the citations as JSON.
func (t *Turn) SetCitations(list []Citation) {
	if len(list) == 0 {
		t.Citations = "[]"
		return
	}
	b, _ := json.Marshal(list)
	t.Citations = string(b)
}
