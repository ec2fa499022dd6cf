// Package mcp connects chat to external MCP servers and exposes the research
// pipeline as an MCP server of its own.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/logging"
)

// maxParallelDiscovery bounds how many servers are started at once when
// listing tools.
const maxParallelDiscovery = 4

// Service talks to the MCP servers configured in settings.
type Service struct {
	servers  map[string]config.MCPServerConfig
	disabled []string
	inherit  bool
}

// New reads the server table from cfg.
func New(cfg *config.Config) *Service {
	return &Service{
		servers:  cfg.MCPServers,
		disabled: cfg.MCPDisable,
		inherit:  !cfg.MCPNoInheritEnv,
	}
}

// ServerInfo describes one configured server.
type ServerInfo struct {
	Name    string
	Type    string
	Target  string
	Enabled bool
}

// IsEnabled is false when name, or "*", is listed in mcp-disable.
func (s *Service) IsEnabled(name string) bool {
	return !slices.Contains(s.disabled, "*") && !slices.Contains(s.disabled, name)
}

// Servers lists every configured server by name.
func (s *Service) Servers() []ServerInfo {
	out := make([]ServerInfo, 0, len(s.servers))
	for _, name := range slices.Sorted(maps.Keys(s.servers)) {
		srv := s.servers[name]
		info := ServerInfo{Name: name, Type: srv.Type, Target: srv.URL, Enabled: s.IsEnabled(name)}
		if info.Type == "" {
			info.Type = "stdio"
		}
		if info.Target == "" {
			info.Target = strings.Join(append([]string{srv.Command}, srv.Args...), " ")
		}
		out = append(out, info)
	}
	return out
}

// EnabledServers yields enabled servers sorted by name.
func (s *Service) EnabledServers() iter.Seq2[string, config.MCPServerConfig] {
	return func(yield func(string, config.MCPServerConfig) bool) {
		for _, name := range slices.Sorted(maps.Keys(s.servers)) {
			if s.IsEnabled(name) && !yield(name, s.servers[name]) {
				return
			}
		}
	}
}

// Tools starts every enabled server and collects its tools by server name.
func (s *Service) Tools(ctx context.Context) (map[string][]mcp.Tool, error) {
	var mu sync.Mutex
	found := map[string][]mcp.Tool{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelDiscovery)
	for name, srv := range s.EnabledServers() {
		g.Go(func() error {
			tools, err := s.listTools(ctx, name, srv)
			if err != nil {
				return err
			}
			mu.Lock()
			found[name] = tools
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("mcp tools: %w", err)
	}
	return found, nil
}

func (s *Service) listTools(ctx context.Context, name string, srv config.MCPServerConfig) ([]mcp.Tool, error) {
	cli, err := s.connect(ctx, srv)
	if err != nil {
		return nil, discoveryError(name, err)
	}
	defer cli.Close() //nolint:errcheck

	res, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, discoveryError(name, err)
	}
	logging.L.Debug("mcp tools", "server", name, "count", len(res.Tools))
	return res.Tools, nil
}

func discoveryError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("timed out starting %q; check its command and that any container it needs is running", name)
	}
	return errs.Wrapf(err, "Could not list tools for %s.", name)
}

// SplitToolName splits a qualified <server>_<tool> name. Server names may
// contain underscores, so the longest matching server name wins.
func (s *Service) SplitToolName(fullName string) (server, tool string, ok bool) {
	for name := range s.servers {
		rest, found := strings.CutPrefix(fullName, name+"_")
		if found && rest != "" && len(name) > len(server) {
			server, tool, ok = name, rest, true
		}
	}
	return server, tool, ok
}

// CallTool runs the qualified tool fullName with JSON-encoded arguments and
// returns its text output.
func (s *Service) CallTool(ctx context.Context, fullName string, data []byte) (string, error) {
	name, tool, ok := s.SplitToolName(fullName)
	if !ok {
		return "", fmt.Errorf("mcp: no configured server for tool %q", fullName)
	}
	if !s.IsEnabled(name) {
		return "", fmt.Errorf("mcp: server is disabled: %q", name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = tool
	if len(data) > 0 {
		var args map[string]any
		if err := json.Unmarshal(data, &args); err != nil {
			return "", fmt.Errorf("mcp: bad arguments for %s: %w", fullName, err)
		}
		req.Params.Arguments = args
	}

	cli, err := s.connect(ctx, s.servers[name])
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}
	defer cli.Close() //nolint:errcheck

	logging.L.Debug("mcp call", "server", name, "tool", tool, "bytes", len(data))
	res, err := cli.CallTool(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mcp: %w", err)
	}
	text := TextOf(res)
	if res.IsError {
		logging.L.Warn("mcp tool failed", "server", name, "tool", tool)
		return "", errors.New(text)
	}
	return text, nil
}

// TextOf joins the text parts of a tool result.
func TextOf(res *mcp.CallToolResult) string {
	var sb strings.Builder
	for _, c := range res.Content {
		if t, ok := mcp.AsTextContent(c); ok {
			sb.WriteString(t.Text)
			continue
		}
		sb.WriteString("[Non-text content]")
	}
	return sb.String()
}

func (s *Service) connect(ctx context.Context, srv config.MCPServerConfig) (*client.Client, error) {
	cli, err := s.newClient(srv)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	if err := cli.Start(ctx); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("start client: %w", err)
	}
	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{Name: config.AppName}
	if _, err := cli.Initialize(ctx, initReq); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return cli, nil
}

func (s *Service) newClient(srv config.MCPServerConfig) (*client.Client, error) {
	switch srv.Type {
	case "", "stdio":
		env := srv.Env
		if s.inherit {
			env = append(os.Environ(), srv.Env...)
		}
		return client.NewStdioMCPClient(srv.Command, env, srv.Args...) //nolint:wrapcheck
	case "sse":
		return client.NewSSEMCPClient(srv.URL) //nolint:wrapcheck
	case "http":
		return client.NewStreamableHttpClient(srv.URL) //nolint:wrapcheck
	default:
		return nil, fmt.Errorf("unsupported MCP server type %q, use stdio, sse or http", srv.Type)
	}
}
