package websearch

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// duckDuckGo scrapes the key-less lite HTML endpoint.
type duckDuckGo struct {
	http    *httpDoer
	baseURL string
	max     int
}

func (d *duckDuckGo) Name() string { return DuckDuckGo }

func (d *duckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	body, err := d.http.do(ctx, func() (*http.Request, error) {
		u, err := url.Parse(d.baseURL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("q", query)
		u.RawQuery = q.Encode()
		return http.NewRequest(http.MethodGet, u.String(), nil)
	})
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	results, err := parseDuckDuckGo(body, d.max)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: %w", err)
	}
	return results, nil
}

// parseDuckDuckGo extracts result links and the snippet row that follows
// each of them.
func parseDuckDuckGo(body []byte, limit int) ([]Result, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var results []Result
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result-link"):
				if len(results) >= limit {
					return false
				}
				results = append(results, Result{
					Title: nodeText(n),
					URL:   resolveDuckDuckGoURL(attr(n, "href")),
				})
				return true
			case n.Data == "td" && hasClass(n, "result-snippet"):
				if len(results) > 0 && results[len(results)-1].Snippet == "" {
					results[len(results)-1].Snippet = nodeText(n)
				}
				return true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)
	return results, nil
}

// resolveDuckDuckGoURL unwraps the /l/?uddg= redirect links.
func resolveDuckDuckGoURL(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var sb strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}
