package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"research-chatbot/internal/ai"
)

// Judge scores an answer on a 0-5 scale and explains the score. Implementations
// must be injectable so evaluation runs are reproducible with a stub.
type Judge interface {
	Faithfulness(ctx context.Context, answer, evidence string) (float64, string, error)
	Relevance(ctx context.Context, question, answer string) (float64, string, error)
}

const faithfulnessPrompt = `You are grading whether an answer is supported by the provided evidence.
Score 0-5: 5 means every claim is directly supported, 0 means the answer contradicts or ignores the evidence.
Respond with JSON only: {"score": <number>, "reasoning": "<one sentence>"}`

const relevancePrompt = `You are grading whether an answer addresses the question asked.
Score 0-5: 5 means fully on-topic and complete, 0 means unrelated.
Respond with JSON only: {"score": <number>, "reasoning": "<one sentence>"}`

// LLMJudge scores with a chat model held at temperature zero.
type LLMJudge struct {
	client *ai.Client
	cfg    ai.ChatConfig
}

func NewLLMJudge(client *ai.Client, baseURL, apiKey, model string) *LLMJudge {
	return &LLMJudge{
		client: client,
		cfg: ai.ChatConfig{
			BaseURL:     baseURL,
			APIKey:      apiKey,
			Model:       model,
			Temperature: 0,
		},
	}
}

func (j *LLMJudge) Faithfulness(ctx context.Context, answer, evidence string) (float64, string, error) {
	user := fmt.Sprintf("Evidence:\n%s\n\nAnswer:\n%s", evidence, answer)
	return j.score(ctx, faithfulnessPrompt, user)
}

func (j *LLMJudge) Relevance(ctx context.Context, question, answer string) (float64, string, error) {
	user := fmt.Sprintf("Question:\n%s\n\nAnswer:\n%s", question, answer)
	return j.score(ctx, relevancePrompt, user)
}

func (j *LLMJudge) score(ctx context.Context, system, user string) (float64, string, error) {
	raw, err := j.client.Complete(ctx, j.cfg, []ai.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
	if err != nil {
		return 0, "", fmt.Errorf("judge completion failed: %w", err)
	}

	score, reasoning, err := parseVerdict(raw)
	if err != nil {
		return 0, "", fmt.Errorf("judge verdict unparsable: %w", err)
	}
	return score, reasoning, nil
}

// parseVerdict tolerates markdown fences around the JSON verdict and clamps
// the score to the 0-5 scale.
func parseVerdict(raw string) (float64, string, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var verdict struct {
		Score     float64 `json:"score"`
		Reasoning string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(trimmed), &verdict); err != nil {
		return 0, "", fmt.Errorf("decode verdict %q: %w", raw, err)
	}

	score := verdict.Score
	if score < 0 {
		score = 0
	}
	if score > 5 {
		score = 5
	}
	return score, verdict.Reasoning, nil
}
