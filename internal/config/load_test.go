package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMsg(t *testing.T) {
	ctx := context.Background()
	writeFile := func(t *testing.T, name, content string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		return "file://" + path
	}

	t.Run("plain text", func(t *testing.T) {
		msg, err := LoadMsg(ctx, "You cover semiconductors.")
		require.NoError(t, err)
		require.Equal(t, "You cover semiconductors.", msg)
	})

	t.Run("text file keeps fences", func(t *testing.T) {
		msg, err := LoadMsg(ctx, writeFile(t, "analyst.txt", "---\nsector: tech\n---\nbody"))
		require.NoError(t, err)
		require.Equal(t, "---\nsector: tech\n---\nbody", msg)
	})

	t.Run("markdown file drops frontmatter", func(t *testing.T) {
		msg, err := LoadMsg(ctx, writeFile(t, "analyst.md", "---\nname: analyst\nsector: tech\n---\n\nYou cover semiconductors.\n"))
		require.NoError(t, err)
		require.Equal(t, "You cover semiconductors.\n", msg)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadMsg(ctx, "file://"+filepath.Join(t.TempDir(), "nope.md"))
		require.ErrorContains(t, err, "read message file")
	})

	t.Run("http", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("remote role"))
		}))
		t.Cleanup(srv.Close)

		msg, err := LoadMsg(ctx, srv.URL)
		require.NoError(t, err)
		require.Equal(t, "remote role", msg)
	})

	t.Run("http error status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		t.Cleanup(srv.Close)

		_, err := LoadMsg(ctx, srv.URL)
		require.ErrorContains(t, err, "HTTP 404: gone")
	})

	t.Run("http body too large", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", maxRemoteMsgBytes+1)))
		}))
		t.Cleanup(srv.Close)

		_, err := LoadMsg(ctx, srv.URL)
		require.ErrorContains(t, err, "larger than")
	})
}

func TestStripYAMLFrontmatter(t *testing.T) {
	for name, tc := range map[string]struct {
		in, want string
		err      string
	}{
		"no frontmatter":   {in: "just text", want: "just text"},
		"crlf":             {in: "---\r\na: 1\r\n---\r\nbody", want: "body"},
		"empty body":       {in: "---\na: 1\n---", want: ""},
		"unclosed":         {in: "---\na: 1\nbody", err: "missing closing delimiter"},
		"invalid yaml":     {in: "---\nname: [broken\n---\nbody", err: "invalid markdown frontmatter"},
		"fence only later": {in: "intro\n---\na: 1\n---", want: "intro\n---\na: 1\n---"},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := StripYAMLFrontmatter(tc.in)
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
