// Package tool holds the closed set of answer strategies the chatbot can
// route a turn to, plus the router that picks one. Adding a strategy means
// adding a variant here and a rule in the router, not ad hoc branching.
package tool

import (
	"context"

	"research-chatbot/internal/model"
	"research-chatbot/internal/retrieval"
)

type Name string

const (
	NameRAG         Name = "rag"
	NameWebSearch   Name = "web_search"
	NameMath        Name = "math"
	NameUnsupported Name = "unsupported"
)

// ConvContext is the conversation context a tool may condition on. Retrieval
// carries the router's probe result so the RAG tool does not retrieve twice.
type ConvContext struct {
	Turns     []model.Turn
	Retrieval *retrieval.Result
}

// Result is a tool's answer plus the evidence actually consulted. An empty
// citation list is valid and must be surfaced as such; citations are never
// fabricated without a backing chunk, search result, or calculation.
type Result struct {
	Answer    string
	Citations []model.Citation
}

type Tool interface {
	Name() Name
	Execute(ctx context.Context, query string, conv ConvContext) (Result, error)
}

// Generator is the black-box text generation function tools answer through.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
}
