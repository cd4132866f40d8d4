package tool

import (
	"context"
	"fmt"
	"strings"

	"research-chatbot/internal/model"
	"research-chatbot/internal/search"
)

const webSystemPrompt = "You are a research assistant. Answer the user's question based on the web search results. " +
	"Cite sources with their URLs. If the results are insufficient, say so."

// Searcher is the web-search collaborator contract.
type Searcher interface {
	Search(ctx context.Context, query string) ([]search.Result, error)
}

type WebSearchTool struct {
	searcher  Searcher
	generator Generator
}

func NewWebSearchTool(searcher Searcher, generator Generator) *WebSearchTool {
	return &WebSearchTool{searcher: searcher, generator: generator}
}

func (t *WebSearchTool) Name() Name { return NameWebSearch }

func (t *WebSearchTool) Execute(ctx context.Context, query string, conv ConvContext) (Result, error) {
	results, err := t.searcher.Search(ctx, query)
	if err != nil {
		return Result{}, fmt.Errorf("web search: %w", err)
	}
	if len(results) == 0 {
		return Result{}, fmt.Errorf("web search returned no results")
	}

	var block strings.Builder
	for i, r := range results {
		if i > 0 {
			block.WriteString("\n\n")
		}
		fmt.Fprintf(&block, "Title: %s\nURL: %s\nContent: %s", r.Title, r.URL, r.Content)
	}

	var user strings.Builder
	if history := buildHistoryBlock(conv.Turns); history != "" {
		user.WriteString("Conversation so far:\n")
		user.WriteString(history)
		user.WriteString("\n")
	}
	user.WriteString("Search results:\n")
	user.WriteString(block.String())
	user.WriteString("\n\nQuestion: ")
	user.WriteString(query)
	user.WriteString("\n\nAnswer:")

	answer, err := t.generator.Generate(ctx, webSystemPrompt, user.String())
	if err != nil {
		return Result{}, fmt.Errorf("generate web answer: %w", err)
	}

	citations := make([]model.Citation, 0, len(results))
	for _, r := range results {
		citations = append(citations, model.Citation{
			SourceID:   r.URL,
			Excerpt:    excerpt(r.Content, 200),
			Score:      r.Score,
			SourceType: model.SourceTypeWeb,
		})
	}
	return Result{Answer: strings.TrimSpace(answer), Citations: citations}, nil
}
