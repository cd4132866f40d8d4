package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchSendsConfiguredRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tvly-key", body["api_key"])
		assert.Equal(t, "current events", body["query"])
		assert.Equal(t, float64(3), body["max_results"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{
				{"title": "News", "url": "https://example.com/news", "content": "something happened", "score": 0.92},
			},
		})
	}))
	defer srv.Close()

	client := NewClientWithHTTP(Config{BaseURL: srv.URL, APIKey: "tvly-key", MaxResults: 3}, srv.Client())

	results, err := client.Search(context.Background(), "current events")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "https://example.com/news", results[0].URL)
	assert.InDelta(t, 0.92, results[0].Score, 1e-9)
}

func TestSearchEmptyQueryFails(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://unused"})
	_, err := client.Search(context.Background(), "   ")
	assert.Error(t, err)
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClientWithHTTP(Config{BaseURL: srv.URL}, srv.Client())
	_, err := client.Search(context.Background(), "query")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
