package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-chatbot/internal/model"
	"research-chatbot/internal/search"
)

type stubSearcher struct {
	results []search.Result
	err     error
}

func (s *stubSearcher) Search(ctx context.Context, query string) ([]search.Result, error) {
	return s.results, s.err
}

func TestWebSearchToolCitesURLs(t *testing.T) {
	searcher := &stubSearcher{results: []search.Result{
		{Title: "Release notes", URL: "https://example.com/notes", Content: "the release shipped", Score: 0.8},
		{Title: "Blog post", URL: "https://example.com/blog", Content: "a deep dive", Score: 0.6},
	}}
	gen := &stubGenerator{answer: "summarized answer"}
	ws := NewWebSearchTool(searcher, gen)

	result, err := ws.Execute(context.Background(), "latest release", ConvContext{})
	require.NoError(t, err)

	assert.Equal(t, "summarized answer", result.Answer)
	require.Len(t, result.Citations, 2)
	assert.Equal(t, "https://example.com/notes", result.Citations[0].SourceID)
	assert.Equal(t, model.SourceTypeWeb, result.Citations[0].SourceType)
	assert.Contains(t, gen.lastUser, "the release shipped")
}

func TestWebSearchToolNoResultsFails(t *testing.T) {
	ws := NewWebSearchTool(&stubSearcher{}, &stubGenerator{answer: "unused"})

	_, err := ws.Execute(context.Background(), "query", ConvContext{})
	assert.Error(t, err)
}

func TestWebSearchToolSearchFailure(t *testing.T) {
	searchErr := errors.New("search api down")
	ws := NewWebSearchTool(&stubSearcher{err: searchErr}, &stubGenerator{})

	_, err := ws.Execute(context.Background(), "query", ConvContext{})
	assert.ErrorIs(t, err, searchErr)
}

func TestUnsupportedToolAlwaysAnswers(t *testing.T) {
	result, err := NewUnsupportedTool().Execute(context.Background(), "anything at all", ConvContext{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)
	assert.NotNil(t, result.Citations)
	assert.Empty(t, result.Citations)
}
