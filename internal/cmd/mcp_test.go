package cmd

import (
	"bytes"
	"testing"

	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/mcp"
)

func TestPrintServers(t *testing.T) {
	var buf bytes.Buffer
	printServers(&buf, []mcp.ServerInfo{
		{Name: "github", Type: "stdio", Target: "github-mcp", Enabled: true},
		{Name: "web", Type: "http", Target: "http://localhost/mcp"},
	})
	out := buf.String()
	require.Contains(t, out, "github stdio github-mcp (enabled)\n")
	require.Contains(t, out, "web http http://localhost/mcp\n")
}

func TestPrintTools(t *testing.T) {
	var buf bytes.Buffer
	printTools(&buf, map[string][]mmcp.Tool{
		"web":    {{Name: "search"}, {Name: "fetch"}},
		"github": {{Name: "issues"}},
	})
	require.Equal(t, "github > issues\nweb > fetch\nweb > search\n", buf.String())
}

func TestMCPServeRegistered(t *testing.T) {
	root := NewRootCmd(BuildInfo{Version: "test"}, config.Config{}, nil)
	cmd, _, err := root.Find([]string{"mcp", "serve"})
	require.NoError(t, err)
	require.Equal(t, "serve", cmd.Name())
}
