package config

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	maxRemoteMsgBytes = 2 << 20
	remoteMsgTimeout  = 10 * time.Second
	frontmatterFence  = "---"
)

// LoadMsg resolves a role message or prompt override. msg is used as is
// unless it is an http(s) URL or a file:// path, in which case the target
// is read. Markdown files lose their YAML frontmatter.
func LoadMsg(ctx context.Context, msg string) (string, error) {
	switch {
	case strings.HasPrefix(msg, "https://"), strings.HasPrefix(msg, "http://"):
		return fetchMsg(ctx, msg)
	case strings.HasPrefix(msg, "file://"):
		return readMsgFile(strings.TrimPrefix(msg, "file://"))
	default:
		return msg, nil
	}
}

func fetchMsg(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, remoteMsgTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("fetch message: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch message: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	// One byte past the limit tells a full body from a truncated one.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteMsgBytes+1))
	if err != nil {
		return "", fmt.Errorf("read message: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("fetch message: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(firstBytes(body, 512)))
	}
	if len(body) > maxRemoteMsgBytes {
		return "", fmt.Errorf("read message: response larger than %d bytes", maxRemoteMsgBytes)
	}
	return string(body), nil
}

func firstBytes(b []byte, n int) string {
	return string(b[:min(len(b), n)])
}

func readMsgFile(path string) (string, error) {
	bts, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read message file: %w", err)
	}
	if !strings.EqualFold(filepath.Ext(path), ".md") {
		return string(bts), nil
	}
	return StripYAMLFrontmatter(string(bts))
}

// StripYAMLFrontmatter drops a leading "---" fenced YAML block. The block
// must parse; content without one is returned unchanged.
func StripYAMLFrontmatter(content string) (string, error) {
	first, rest, _ := strings.Cut(content, "\n")
	if strings.TrimSpace(first) != frontmatterFence {
		return content, nil
	}

	var head strings.Builder
	for {
		line, tail, more := strings.Cut(rest, "\n")
		rest = tail
		if strings.TrimSpace(line) == frontmatterFence {
			break
		}
		if !more {
			return "", fmt.Errorf("invalid markdown frontmatter: missing closing delimiter")
		}
		head.WriteString(line)
		head.WriteByte('\n')
	}

	var meta map[string]any
	if err := yaml.Unmarshal([]byte(head.String()), &meta); err != nil {
		return "", fmt.Errorf("invalid markdown frontmatter: %w", err)
	}
	return strings.TrimLeft(rest, "\r\n"), nil
}
