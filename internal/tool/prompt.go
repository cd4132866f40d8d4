package tool

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"research-chatbot/internal/model"
	"research-chatbot/internal/retrieval"
)

const (
	groundingTokenBudget = 3000
	historyTurnBudget    = 6
)

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// countTokens counts BPE tokens with the cl100k_base encoding; if the
// encoding cannot be loaded it falls back to a bytes/4 estimate.
func countTokens(text string) int {
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return len(text)/4 + 1
	}
	return len(encoding.Encode(text, nil, nil))
}

// buildGroundingBlock formats retrieved chunks into a numbered context block,
// stopping once the token budget is spent. Returns the block and the chunks
// actually included, so citations match the evidence the model saw.
func buildGroundingBlock(chunks []retrieval.ScoredChunk) (string, []retrieval.ScoredChunk) {
	var b strings.Builder
	var used []retrieval.ScoredChunk
	budget := groundingTokenBudget

	for i, c := range chunks {
		part := fmt.Sprintf("[Document %d: %s]\n%s", i+1, c.DocumentTitle, c.Text)
		cost := countTokens(part)
		if cost > budget && len(used) > 0 {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(part)
		used = append(used, c)
		budget -= cost
	}
	return b.String(), used
}

// buildHistoryBlock renders the most recent turns as a transcript prefix.
func buildHistoryBlock(turns []model.Turn) string {
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > historyTurnBudget {
		turns = turns[len(turns)-historyTurnBudget:]
	}
	var b strings.Builder
	for _, t := range turns {
		fmt.Fprintf(&b, "User: %s\nAssistant: %s\n", t.Query, t.Response)
	}
	return b.String()
}

// excerpt trims text to at most n runes for citation display.
func excerpt(text string, n int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= n {
		return string(runes)
	}
	return string(runes[:n]) + "..."
}
