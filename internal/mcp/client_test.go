package mcp

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/config"
)

func newTestService(disable ...string) *Service {
	return New(&config.Config{Settings: config.Settings{
		MCPServers: map[string]config.MCPServerConfig{
			"github":      {Command: "github-mcp", Args: []string{"--stdio"}},
			"web":         {Type: "http", URL: "http://localhost:9000/mcp"},
			"web_archive": {Command: "archive-mcp"},
		},
		MCPDisable: disable,
	}})
}

func TestSplitToolName(t *testing.T) {
	svc := newTestService()

	tests := map[string]struct {
		in, server, tool string
		ok               bool
	}{
		"simple":              {"github_list_issues", "github", "list_issues", true},
		"longest prefix wins": {"web_archive_fetch", "web_archive", "fetch", true},
		"shorter server":      {"web_search", "web", "search", true},
		"unknown server":      {"gitlab_list", "", "", false},
		"missing tool":        {"github_", "", "", false},
		"no separator":        {"github", "", "", false},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			server, tool, ok := svc.SplitToolName(tc.in)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.server, server)
			require.Equal(t, tc.tool, tool)
		})
	}
}

func TestServers(t *testing.T) {
	t.Run("sorted with targets", func(t *testing.T) {
		got := newTestService("web").Servers()
		require.Equal(t, []ServerInfo{
			{Name: "github", Type: "stdio", Target: "github-mcp --stdio", Enabled: true},
			{Name: "web", Type: "http", Target: "http://localhost:9000/mcp", Enabled: false},
			{Name: "web_archive", Type: "stdio", Target: "archive-mcp", Enabled: true},
		}, got)
	})

	t.Run("enabled iteration skips disabled", func(t *testing.T) {
		var names []string
		for name := range newTestService("web").EnabledServers() {
			names = append(names, name)
		}
		require.Equal(t, []string{"github", "web_archive"}, names)
	})

	t.Run("wildcard disables all", func(t *testing.T) {
		svc := newTestService("*")
		for name := range svc.EnabledServers() {
			t.Fatalf("unexpected server %s", name)
		}
		require.False(t, svc.IsEnabled("github"))
	})
}

func TestCallToolRejects(t *testing.T) {
	t.Run("unknown server", func(t *testing.T) {
		_, err := newTestService().CallTool(context.Background(), "nope_tool", nil)
		require.ErrorContains(t, err, "no configured server")
	})

	t.Run("disabled server", func(t *testing.T) {
		_, err := newTestService("github").CallTool(context.Background(), "github_list", nil)
		require.ErrorContains(t, err, "server is disabled")
	})

	t.Run("bad arguments", func(t *testing.T) {
		_, err := newTestService().CallTool(context.Background(), "github_list", []byte("{"))
		require.ErrorContains(t, err, "bad arguments for github_list")
	})

	t.Run("unsupported type", func(t *testing.T) {
		svc := New(&config.Config{Settings: config.Settings{
			MCPServers: map[string]config.MCPServerConfig{"odd": {Type: "grpc"}},
		}})
		_, err := svc.CallTool(context.Background(), "odd_x", nil)
		require.ErrorContains(t, err, `unsupported MCP server type "grpc"`)
	})
}

func TestToolsWithNoServers(t *testing.T) {
	tools, err := New(&config.Config{}).Tools(context.Background())
	require.NoError(t, err)
	require.Empty(t, tools)
}

func TestTextOf(t *testing.T) {
	res := &mcp.CallToolResult{Content: []mcp.Content{
		mcp.NewTextContent("a"),
		mcp.NewImageContent("AAAA", "image/png"),
		mcp.NewTextContent("b"),
	}}
	require.Equal(t, "a[Non-text content]b", TextOf(res))
}
