package websearch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/deepresearch/internal/logging"
)

const (
	maxPageChars     = 4000
	fetchConcurrency = 3
)

// pageFetcher decorates a Provider by downloading the text of every hit.
// Pages that fail to load keep their snippet only.
type pageFetcher struct {
	Provider
	http *httpDoer
}

func (p *pageFetcher) Search(ctx context.Context, query string) ([]Result, error) {
	results, err := p.Provider.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchConcurrency)
	for i := range results {
		g.Go(func() error {
			text, err := p.fetchText(gctx, results[i].URL)
			if err != nil {
				logging.L.Debug("page fetch failed", "url", results[i].URL, "err", err)
				return nil
			}
			results[i].Content = truncate(text, maxPageChars)
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

func (p *pageFetcher) fetchText(ctx context.Context, pageURL string) (string, error) {
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return "", fmt.Errorf("unsupported url %q", pageURL)
	}
	body, err := p.http.do(ctx, func() (*http.Request, error) {
		return http.NewRequest(http.MethodGet, pageURL, nil)
	})
	if err != nil {
		return "", err
	}
	return ExtractText(bytes.NewReader(body))
}

// ExtractText returns the visible text of an HTML document, one text run per
// line, skipping script and style contents.
func ExtractText(r io.Reader) (string, error) {
	var (
		text strings.Builder
		skip int
	)
	tokenizer := html.NewTokenizer(r)
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			if errors.Is(tokenizer.Err(), io.EOF) {
				return strings.TrimSpace(text.String()), nil
			}
			return "", fmt.Errorf("tokenizer error: %w", tokenizer.Err())
		case html.StartTagToken:
			if isHiddenTag(tokenizer) {
				skip++
			}
		case html.EndTagToken:
			if isHiddenTag(tokenizer) && skip > 0 {
				skip--
			}
		case html.TextToken:
			if skip > 0 {
				continue
			}
			trimmed := bytes.TrimSpace(tokenizer.Text())
			if len(trimmed) > 0 {
				text.Write(trimmed)
				text.WriteRune('\n')
			}
		}
	}
}

func isHiddenTag(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch string(name) {
	case "script", "style", "noscript", "head":
		return true
	}
	return false
}

// stripTags removes inline markup such as <strong> from API snippets.
func stripTags(s string) string {
	if !strings.ContainsRune(s, '<') {
		return s
	}
	text, err := ExtractText(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(text), " ")
}
