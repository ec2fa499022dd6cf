package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

type brave struct {
	http    *httpDoer
	baseURL string
	key     string
	max     int
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

func (b *brave) Name() string { return Brave }

func (b *brave) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := b.http.do(ctx, func() (*http.Request, error) {
		u, err := url.Parse(b.baseURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("q", query)
		q.Set("count", strconv.Itoa(b.max))
		u.RawQuery = q.Encode()
		req, err := http.NewRequest(http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Subscription-Token", b.key)
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("brave: %w", err)
	}

	var resp braveResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("brave: decode response: %w", err)
	}
	results := make([]Result, 0, len(resp.Web.Results))
	for _, r := range resp.Web.Results {
		if len(results) >= b.max {
			break
		}
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: stripTags(r.Description)})
	}
	return results, nil
}
