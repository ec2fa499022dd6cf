package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

type tavily struct {
	http    *httpDoer
	baseURL string
	key     string
	max     int
}

type tavilyRequest struct {
	Query       string `json:"query"`
	MaxResults  int    `json:"max_results"`
	SearchDepth string `json:"search_depth"`
	Topic       string `json:"topic,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

func (t *tavily) Name() string { return Tavily }

func (t *tavily) Search(ctx context.Context, query string) ([]Result, error) {
	payload, err := json.Marshal(tavilyRequest{Query: query, MaxResults: t.max, SearchDepth: "basic"})
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}
	body, err := t.http.do(ctx, func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, t.baseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.key)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("tavily: %w", err)
	}

	var resp tavilyResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}
	results := make([]Result, 0, len(resp.Results))
	for _, r := range resp.Results {
		if len(results) >= t.max {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
	}
	return results, nil
}
