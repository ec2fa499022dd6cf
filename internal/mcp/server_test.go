package mcp

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	gotQuery string
	gotLimit int
	fail     error
	reports  []ReportSummary
	healthy  bool
}

func (f *fakeBackend) Research(_ context.Context, query string, limit int, progress func(string)) (string, string, error) {
	f.gotQuery, f.gotLimit = query, limit
	progress("planning")
	if f.fail != nil {
		return "", "", f.fail
	}
	return "abc123", "# " + query, nil
}

func (f *fakeBackend) Reports() ([]ReportSummary, error) { return f.reports, f.fail }

func (f *fakeBackend) Report(id string) (string, error) {
	if id == "missing" {
		return "", errors.New("no entries found: missing")
	}
	return "report " + id, nil
}

func (f *fakeBackend) Doctor(context.Context) (any, bool) {
	return map[string]any{"checks": []string{"api key"}}, f.healthy
}

func connectTo(t *testing.T, b Backend) *client.Client {
	t.Helper()
	cli, err := client.NewInProcessClient(NewServer("test", b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	require.NoError(t, cli.Start(ctx))
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "test"}
	_, err = cli.Initialize(ctx, req)
	require.NoError(t, err)
	return cli
}

func call(t *testing.T, cli *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	res, err := cli.CallTool(context.Background(), req)
	require.NoError(t, err)
	return res
}

func TestServerListsTools(t *testing.T) {
	cli := connectTo(t, &fakeBackend{})
	res, err := cli.ListTools(context.Background(), mcp.ListToolsRequest{})
	require.NoError(t, err)

	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"research", "list_reports", "get_report", "doctor"}, names)
}

func TestServerResearch(t *testing.T) {
	t.Run("runs the query", func(t *testing.T) {
		b := &fakeBackend{}
		res := call(t, connectTo(t, b), "research", map[string]any{"query": "NVDA outlook", "max_searches": 3})
		require.False(t, res.IsError)
		require.Equal(t, "# NVDA outlook", TextOf(res))
		require.Equal(t, "NVDA outlook", b.gotQuery)
		require.Equal(t, 3, b.gotLimit)
	})

	t.Run("missing query", func(t *testing.T) {
		res := call(t, connectTo(t, &fakeBackend{}), "research", map[string]any{})
		require.True(t, res.IsError)
	})

	t.Run("pipeline failure", func(t *testing.T) {
		b := &fakeBackend{fail: errors.New("planner exploded")}
		res := call(t, connectTo(t, b), "research", map[string]any{"query": "x"})
		require.True(t, res.IsError)
		require.Contains(t, TextOf(res), "planner exploded")
	})
}

func TestServerReports(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		b := &fakeBackend{reports: []ReportSummary{
			{ID: "0123456789abcdef", Title: "NVDA outlook", UpdatedAt: time.Now()},
		}}
		res := call(t, connectTo(t, b), "list_reports", nil)
		require.False(t, res.IsError)
		require.Equal(t, "0123456  NVDA outlook\n", TextOf(res))
		require.NotNil(t, res.StructuredContent)
	})

	t.Run("list empty", func(t *testing.T) {
		res := call(t, connectTo(t, &fakeBackend{}), "list_reports", nil)
		require.Equal(t, "No reports found.", TextOf(res))
	})

	t.Run("get latest", func(t *testing.T) {
		res := call(t, connectTo(t, &fakeBackend{}), "get_report", nil)
		require.Equal(t, "report ", TextOf(res))
	})

	t.Run("get missing", func(t *testing.T) {
		res := call(t, connectTo(t, &fakeBackend{}), "get_report", map[string]any{"id": "missing"})
		require.True(t, res.IsError)
		require.Contains(t, TextOf(res), "no entries found")
	})
}

func TestServerDoctor(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		res := call(t, connectTo(t, &fakeBackend{healthy: true}), "doctor", nil)
		require.False(t, res.IsError)
		require.Equal(t, "all checks passed", TextOf(res))
	})

	t.Run("failing", func(t *testing.T) {
		res := call(t, connectTo(t, &fakeBackend{}), "doctor", nil)
		require.True(t, res.IsError)
		require.Equal(t, "one or more checks failed", TextOf(res))
	})
}

func TestServeStopsAtEOF(t *testing.T) {
	in := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"ping"}` + "\n")
	var out bytes.Buffer
	err := Serve(context.Background(), NewServer("test", &fakeBackend{}), in, &out)
	require.NoError(t, err)
	require.Contains(t, out.String(), `"id":1`)
}
