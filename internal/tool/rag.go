package tool

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"research-chatbot/internal/model"
	"research-chatbot/internal/retrieval"
)

const ragSystemPrompt = "You are a research assistant. Answer the user's question based only on the provided context. " +
	"If the context does not contain enough information, say so. " +
	"Cite your sources as [Document N]. Do not make up facts."

// RAGTool answers from the local knowledge base. It reuses the router's
// retrieval probe when present, so classification and answering cost one
// retrieval between them.
type RAGTool struct {
	retriever *retrieval.Retriever
	generator Generator
	topK      int
	threshold float64
}

func NewRAGTool(retriever *retrieval.Retriever, generator Generator, topK int, threshold float64) *RAGTool {
	return &RAGTool{retriever: retriever, generator: generator, topK: topK, threshold: threshold}
}

func (t *RAGTool) Name() Name { return NameRAG }

func (t *RAGTool) Execute(ctx context.Context, query string, conv ConvContext) (Result, error) {
	var result retrieval.Result
	if conv.Retrieval != nil {
		result = *conv.Retrieval
	} else {
		var err error
		result, err = t.retriever.Retrieve(ctx, query, t.topK, t.threshold)
		if err != nil {
			return Result{}, fmt.Errorf("retrieve evidence: %w", err)
		}
	}
	if result.Empty() {
		return Result{}, retrieval.ErrNoEvidenceFound
	}

	grounding, used := buildGroundingBlock(result.Chunks)

	var user strings.Builder
	if history := buildHistoryBlock(conv.Turns); history != "" {
		user.WriteString("Conversation so far:\n")
		user.WriteString(history)
		user.WriteString("\n")
	}
	user.WriteString("Context:\n")
	user.WriteString(grounding)
	user.WriteString("\n\nQuestion: ")
	user.WriteString(query)
	user.WriteString("\n\nAnswer:")

	answer, err := t.generator.Generate(ctx, ragSystemPrompt, user.String())
	if err != nil {
		return Result{}, fmt.Errorf("generate grounded answer: %w", err)
	}

	citations := make([]model.Citation, 0, len(used))
	for _, c := range used {
		citations = append(citations, model.Citation{
			SourceID:   strconv.FormatUint(uint64(c.ChunkID), 10),
			Excerpt:    excerpt(c.Text, 200),
			Score:      c.Score,
			SourceType: model.SourceTypeLocal,
		})
	}
	return Result{Answer: strings.TrimSpace(answer), Citations: citations}, nil
}
