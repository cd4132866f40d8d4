package model

import "time"

// EvalCase is one entry of the evaluation dataset. ExpectedAnswer and
// ExpectedTool are optional; metrics that need them are skipped when unset.
type EvalCase struct {
	ID             string `json:"id"`
	Question       string `json:"question"`
	ExpectedAnswer string `json:"expected_answer,omitempty"`
	ExpectedTool   string `json:"expected_tool,omitempty"`
	Category       string `json:"category,omitempty"`
}

// EvalResult is the append-only scoring record for one evaluated case.
// Nil scores mean the metric could not be computed (judge failure or missing
// reference), not a zero.
type EvalResult struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CaseID         string    `gorm:"size:64;index" json:"case_id"`
	Question       string    `gorm:"type:text;not null" json:"question"`
	ExpectedAnswer string    `gorm:"type:text" json:"expected_answer,omitempty"`
	Answer         string    `gorm:"type:text;not null" json:"answer"`
	ToolUsed       string    `gorm:"size:16;not null" json:"tool_used"`
	Category       string    `gorm:"size:64" json:"category,omitempty"`
	Faithfulness   *float64  `json:"faithfulness"`
	Relevance      *float64  `json:"relevance"`
	RoutingCorrect *bool     `json:"routing_correct"`
	Reasoning      string    `gorm:"type:text" json:"reasoning,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
