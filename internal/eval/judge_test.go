package eval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-chatbot/internal/ai"
)

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		name      string
		raw       string
		wantScore float64
		wantErr   bool
	}{
		{"plain json", `{"score": 4, "reasoning": "good"}`, 4, false},
		{"fenced json", "```json\n{\"score\": 3.5, \"reasoning\": \"ok\"}\n```", 3.5, false},
		{"bare fence", "```\n{\"score\": 2, \"reasoning\": \"meh\"}\n```", 2, false},
		{"clamped high", `{"score": 9, "reasoning": "overenthusiastic"}`, 5, false},
		{"clamped low", `{"score": -1, "reasoning": "harsh"}`, 0, false},
		{"not json", "the answer is fine", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, _, err := parseVerdict(tc.raw)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantScore, score)
		})
	}
}

func TestLLMJudgeScoresThroughAPI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": `{"score": 4.5, "reasoning": "well supported"}`}},
			},
		})
	}))
	defer srv.Close()

	judge := NewLLMJudge(ai.NewClientWithHTTP(srv.Client()), srv.URL, "test-key", "judge-model")

	score, reasoning, err := judge.Faithfulness(context.Background(), "the answer", "the evidence")
	require.NoError(t, err)
	assert.Equal(t, 4.5, score)
	assert.Equal(t, "well supported", reasoning)

	score, _, err = judge.Relevance(context.Background(), "the question", "the answer")
	require.NoError(t, err)
	assert.Equal(t, 4.5, score)
}

func TestLLMJudgeAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	judge := NewLLMJudge(ai.NewClientWithHTTP(srv.Client()), srv.URL, "test-key", "judge-model")

	_, _, err := judge.Faithfulness(context.Background(), "a", "e")
	assert.Error(t, err)
}

func TestLoadDatasetCreatesSample(t *testing.T) {
	path := t.TempDir() + "/dataset.json"

	cases, err := LoadDataset(path)
	require.NoError(t, err)
	require.NotEmpty(t, cases)

	// the sample must round-trip on a second load
	again, err := LoadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, cases, again)
}
