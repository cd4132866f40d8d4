package tool

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"research-chatbot/internal/model"
	"research-chatbot/internal/retrieval"
)

type stubGenerator struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
}

func (s *stubGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	s.lastSystem = system
	s.lastUser = user
	return s.answer, s.err
}

func ragFixture(t *testing.T, scores []float64, gen *stubGenerator) *RAGTool {
	t.Helper()
	ix, err := retrieval.NewIndex(3)
	require.NoError(t, err)

	entries := make([]retrieval.Entry, 0, len(scores))
	for i, score := range scores {
		entries = append(entries, retrieval.Entry{
			ChunkID:    uint(i + 1),
			DocumentID: "doc-1",
			Text:       "evidence chunk " + strings.Repeat("x", i),
			Vector:     scoredVec(score),
		})
	}
	require.NoError(t, ix.ReplaceAll(entries))

	retriever := retrieval.NewRetriever(ix, &fixedEmbedder{vec: []float32{1, 0, 0}}, zap.NewNop())
	return NewRAGTool(retriever, gen, 5, 0.7)
}

func TestRAGToolCitesOnlyUsedChunks(t *testing.T) {
	gen := &stubGenerator{answer: "grounded answer"}
	rag := ragFixture(t, []float64{0.9, 0.85, 0.4}, gen)

	result, err := rag.Execute(context.Background(), "what is in the corpus", ConvContext{})
	require.NoError(t, err)

	assert.Equal(t, "grounded answer", result.Answer)
	require.Len(t, result.Citations, 2)
	for _, c := range result.Citations {
		assert.Equal(t, model.SourceTypeLocal, c.SourceType)
		assert.GreaterOrEqual(t, c.Score, 0.7)
		assert.Contains(t, gen.lastUser, c.Excerpt)
	}
}

func TestRAGToolReusesProbeResult(t *testing.T) {
	gen := &stubGenerator{answer: "answer"}
	// the index is empty; only the handed-in probe result can supply evidence
	rag := ragFixture(t, nil, gen)

	probe := &retrieval.Result{Chunks: []retrieval.ScoredChunk{
		{ChunkID: 42, DocumentID: "doc-9", Text: "probe evidence", Score: 0.91},
	}}
	result, err := rag.Execute(context.Background(), "query", ConvContext{Retrieval: probe})
	require.NoError(t, err)

	require.Len(t, result.Citations, 1)
	assert.Equal(t, "42", result.Citations[0].SourceID)
}

func TestRAGToolEmptyStoreFails(t *testing.T) {
	gen := &stubGenerator{answer: "should not be called"}
	rag := ragFixture(t, nil, gen)

	_, err := rag.Execute(context.Background(), "query", ConvContext{})
	assert.ErrorIs(t, err, retrieval.ErrRetrievalUnavailable)
	assert.Empty(t, gen.lastUser)
}

func TestRAGToolBelowThresholdReturnsNoEvidence(t *testing.T) {
	gen := &stubGenerator{answer: "should not be called"}
	// the store has content, but nothing scores above the 0.7 threshold
	rag := ragFixture(t, []float64{0.4, 0.2}, gen)

	_, err := rag.Execute(context.Background(), "query", ConvContext{})
	assert.ErrorIs(t, err, retrieval.ErrNoEvidenceFound)
	assert.NotErrorIs(t, err, retrieval.ErrRetrievalUnavailable)
	assert.Empty(t, gen.lastUser)
}

func TestRAGToolIncludesHistory(t *testing.T) {
	gen := &stubGenerator{answer: "answer"}
	rag := ragFixture(t, []float64{0.9}, gen)

	turns := []model.Turn{
		{Query: "what are transformers", Response: "a neural architecture"},
	}
	_, err := rag.Execute(context.Background(), "tell me more", ConvContext{Turns: turns})
	require.NoError(t, err)

	assert.Contains(t, gen.lastUser, "what are transformers")
	assert.Contains(t, gen.lastUser, "a neural architecture")
}

func TestRAGToolGeneratorFailure(t *testing.T) {
	genErr := errors.New("llm down")
	rag := ragFixture(t, []float64{0.9}, &stubGenerator{err: genErr})

	_, err := rag.Execute(context.Background(), "query", ConvContext{})
	assert.ErrorIs(t, err, genErr)
}
