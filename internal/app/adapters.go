package app

import (
	"context"

	"research-chatbot/internal/ai"
	"research-chatbot/internal/config"
)

// LLMEmbedder adapts the OpenAI-compatible client to the retrieval and
// ingestion embedding contracts.
type LLMEmbedder struct {
	client *ai.Client
	cfg    ai.EmbeddingConfig
}

func NewLLMEmbedder(client *ai.Client, cfg *config.Config) *LLMEmbedder {
	return &LLMEmbedder{
		client: client,
		cfg: ai.EmbeddingConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.EmbeddingModel,
		},
	}
}

func (e *LLMEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embed(ctx, e.cfg, text)
}

func (e *LLMEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.client.EmbedBatch(ctx, e.cfg, texts)
}

// LLMGenerator adapts the client to the tool-side text generation contract.
type LLMGenerator struct {
	client *ai.Client
	cfg    ai.ChatConfig
}

func NewLLMGenerator(client *ai.Client, cfg *config.Config) *LLMGenerator {
	return &LLMGenerator{
		client: client,
		cfg: ai.ChatConfig{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
		},
	}
}

func (g *LLMGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	return g.client.Complete(ctx, g.cfg, []ai.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: user},
	})
}
