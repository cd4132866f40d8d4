package tool

import (
	"context"

	"research-chatbot/internal/model"
)

const unsupportedAnswer = "I couldn't find an answer for that. The question doesn't match the local knowledge base, " +
	"and no other source is available for it. Try rephrasing, or ask about the ingested documents."

// UnsupportedTool is the terminal fallback: a graceful refusal with zero
// citations. Reaching it is a normal response state, not an error.
type UnsupportedTool struct{}

func NewUnsupportedTool() *UnsupportedTool { return &UnsupportedTool{} }

func (t *UnsupportedTool) Name() Name { return NameUnsupported }

func (t *UnsupportedTool) Execute(ctx context.Context, query string, conv ConvContext) (Result, error) {
	return Result{Answer: unsupportedAnswer, Citations: []model.Citation{}}, nil
}
