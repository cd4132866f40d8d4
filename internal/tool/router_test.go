package tool

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"research-chatbot/internal/retrieval"
)

type fixedEmbedder struct {
	vec []float32
	err error
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.vec, f.err
}

func scoredVec(score float64) []float32 {
	return []float32{float32(score), float32(math.Sqrt(1 - score*score)), 0}
}

func newRouterFixture(t *testing.T, scores []float64, embedErr error, webEnabled bool) *Router {
	t.Helper()
	ix, err := retrieval.NewIndex(3)
	require.NoError(t, err)

	entries := make([]retrieval.Entry, 0, len(scores))
	for i, score := range scores {
		entries = append(entries, retrieval.Entry{
			ChunkID:    uint(i + 1),
			DocumentID: "doc-1",
			Text:       "indexed chunk",
			Vector:     scoredVec(score),
		})
	}
	require.NoError(t, ix.ReplaceAll(entries))

	embedder := &fixedEmbedder{vec: []float32{1, 0, 0}, err: embedErr}
	retriever := retrieval.NewRetriever(ix, embedder, zap.NewNop())
	return NewRouter(retriever, 5, 0.7, webEnabled, zap.NewNop())
}

func TestRouteMathHasPriority(t *testing.T) {
	// even with a populated index, arithmetic short-circuits the chain
	r := newRouterFixture(t, []float64{0.95}, nil, true)

	decision, err := r.Route(context.Background(), "Calculate 15% of 250000", ConvContext{})
	require.NoError(t, err)
	assert.Equal(t, NameMath, decision.Tool)
	assert.Nil(t, decision.Retrieval)
}

func TestRouteProbeHitSelectsRAG(t *testing.T) {
	r := newRouterFixture(t, []float64{0.9, 0.85, 0.4}, nil, true)

	decision, err := r.Route(context.Background(), "what does the corpus say", ConvContext{})
	require.NoError(t, err)
	assert.Equal(t, NameRAG, decision.Tool)
	require.NotNil(t, decision.Retrieval)
	assert.Len(t, decision.Retrieval.Chunks, 2)
}

func TestRouteEmptyStoreFallsToWebSearch(t *testing.T) {
	r := newRouterFixture(t, nil, nil, true)

	decision, err := r.Route(context.Background(), "latest llm releases", ConvContext{})
	require.NoError(t, err)
	assert.Equal(t, NameWebSearch, decision.Tool)
}

func TestRouteEmptyStoreNoWebIsUnsupported(t *testing.T) {
	r := newRouterFixture(t, nil, nil, false)

	decision, err := r.Route(context.Background(), "latest llm releases", ConvContext{})
	require.NoError(t, err)
	assert.Equal(t, NameUnsupported, decision.Tool)
}

func TestRouteBelowThresholdFallsThrough(t *testing.T) {
	r := newRouterFixture(t, []float64{0.3, 0.2}, nil, false)

	decision, err := r.Route(context.Background(), "completely unrelated topic", ConvContext{})
	require.NoError(t, err)
	assert.Equal(t, NameUnsupported, decision.Tool)
}

func TestRouteProbeErrorDegradesAlongChain(t *testing.T) {
	r := newRouterFixture(t, []float64{0.9}, errors.New("embedding api down"), true)

	decision, err := r.Route(context.Background(), "what does the corpus say", ConvContext{})
	require.NoError(t, err)
	assert.Equal(t, NameWebSearch, decision.Tool)
}

func TestRouteIsDeterministic(t *testing.T) {
	r := newRouterFixture(t, []float64{0.9, 0.2}, nil, true)

	first, err := r.Route(context.Background(), "repeatable query", ConvContext{})
	require.NoError(t, err)
	second, err := r.Route(context.Background(), "repeatable query", ConvContext{})
	require.NoError(t, err)

	assert.Equal(t, first.Tool, second.Tool)
	assert.Equal(t, first.Retrieval, second.Retrieval)
	assert.Equal(t, first.Reasoning, second.Reasoning)
}

func TestRouteNeverErrors(t *testing.T) {
	queries := []string{"", "   ", "what?", "2 + 2", "tell me things"}
	r := newRouterFixture(t, nil, nil, false)
	for _, q := range queries {
		_, err := r.Route(context.Background(), q, ConvContext{})
		assert.NoError(t, err, "query %q", q)
	}
}
