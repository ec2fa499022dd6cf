// Package websearch queries web search backends for the research pipeline.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/x/exp/ordered"
	"golang.org/x/time/rate"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/logging"
)

// Provider names.
const (
	DuckDuckGo = "duckduckgo"
	Tavily     = "tavily"
	Brave      = "brave"
)

const (
	maxBackoff   = 30 * time.Second
	maxAttempts  = 4
	maxBodyBytes = 4 << 20
	userAgent    = "deepresearch/1.0 (+https://github.com/dotcommander/deepresearch)"
)

// ErrRateLimited is returned when the backend keeps answering 429.
var ErrRateLimited = errors.New("rate limited")

// Result is one search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	// Content is the page text, filled only when page fetching is enabled.
	Content string `json:"content,omitempty"`
}

// Provider runs a web search.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// New builds the provider named in cfg, wrapped with rate limiting and
// optional page fetching. A nil client uses one with cfg.Timeout.
func New(cfg config.SearchSettings, client *http.Client) (Provider, error) {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := cfg.MaxResults
	if limit <= 0 {
		limit = 5
	}
	h := &httpDoer{client: client, limiter: newLimiter(cfg.QPS), backoff: time.Second}

	var p Provider
	switch strings.ToLower(cfg.Provider) {
	case "", DuckDuckGo:
		p = &duckDuckGo{http: h, baseURL: ordered.First(cfg.BaseURL, "https://lite.duckduckgo.com/lite/"), max: limit}
	case Tavily:
		if cfg.TavilyAPIKey == "" {
			return nil, fmt.Errorf("websearch: tavily requires an API key (TAVILY_API_KEY)")
		}
		p = &tavily{http: h, baseURL: ordered.First(cfg.BaseURL, "https://api.tavily.com/search"), key: cfg.TavilyAPIKey, max: limit}
	case Brave:
		if cfg.BraveAPIKey == "" {
			return nil, fmt.Errorf("websearch: brave requires an API key (BRAVE_API_KEY)")
		}
		p = &brave{http: h, baseURL: ordered.First(cfg.BaseURL, "https://api.search.brave.com/res/v1/web/search"), key: cfg.BraveAPIKey, max: limit}
	default:
		return nil, fmt.Errorf("websearch: unknown provider %q", cfg.Provider)
	}

	if cfg.FetchPages {
		p = &pageFetcher{Provider: p, http: h}
	}
	return p, nil
}

func newLimiter(qps float64) *rate.Limiter {
	if qps <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(qps), 1)
}

// httpDoer sends requests through a shared limiter and retries 429s with
// exponential backoff.
type httpDoer struct {
	client  *http.Client
	limiter *rate.Limiter
	backoff time.Duration
}

func (h *httpDoer) do(ctx context.Context, newReq func() (*http.Request, error)) ([]byte, error) {
	delay := h.backoff
	for attempt := 1; ; attempt++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		req, err := newReq()
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := h.client.Do(req.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Host, err)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt >= maxAttempts {
				return nil, fmt.Errorf("%s: %w", req.URL.Host, ErrRateLimited)
			}
			wait := retryAfter(resp.Header.Get("Retry-After"), delay)
			logging.L.Warn("search rate limited", "host", req.URL.Host, "attempt", attempt, "wait", wait)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
			delay = min(delay*2, maxBackoff)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			return nil, fmt.Errorf("%s: HTTP %d: %s", req.URL.Host, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200))
		default:
			return body, nil
		}
	}
}

func retryAfter(header string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return min(time.Duration(secs)*time.Second, maxBackoff)
	}
	return min(fallback, maxBackoff)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

