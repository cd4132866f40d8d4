// Package search provides the web-search collaborator used by the WebSearch
// tool. The client targets the Tavily HTTP API.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Config struct {
	BaseURL    string
	APIKey     string
	MaxResults int
}

type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTP allows injecting the transport, used by tests.
func NewClientWithHTTP(cfg Config, hc *http.Client) *Client {
	c := NewClient(cfg)
	c.httpClient = hc
	return c
}

// Search issues a web search and returns ranked results with snippets.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query is empty")
	}

	reqBody := map[string]interface{}{
		"api_key":      c.cfg.APIKey,
		"query":        query,
		"search_depth": "advanced",
		"max_results":  c.cfg.MaxResults,
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search request failed: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("build search request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read search response failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("search response status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("parse search json failed: %w", err)
	}
	return parsed.Results, nil
}
