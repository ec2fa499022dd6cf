package cmd

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	mmcp "github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"

	"github.com/dotcommander/deepresearch/internal/agent"
	"github.com/dotcommander/deepresearch/internal/doctor"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/mcp"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/research"
)

func newMCPCmd(rt *runtime) *cobra.Command {
	mcpCmd := &cobra.Command{
		Use:   "mcp",
		Short: "Use MCP servers in chat, or serve research over MCP",
	}

	mcpCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List configured MCP servers",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if rt.cfgErr != nil {
					return rt.cfgErr
				}
				printServers(os.Stdout, mcp.New(&rt.cfg).Servers())
				return nil
			},
		},
		&cobra.Command{
			Use:   "tools",
			Short: "List tools from enabled MCP servers",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if rt.cfgErr != nil {
					return rt.cfgErr
				}
				ctx, cancel := context.WithTimeout(cmd.Context(), rt.cfg.MCPTimeout)
				defer cancel()
				tools, err := mcp.New(&rt.cfg).Tools(ctx)
				if err != nil {
					return err //nolint:wrapcheck
				}
				printTools(os.Stdout, tools)
				return nil
			},
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve research, reports and doctor as MCP tools on stdio",
			Long: "Run deepresearch as an MCP server speaking JSON-RPC on stdin and stdout.\n" +
				"Logs go to the log file only; stdout carries protocol messages.",
			Args: cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if rt.cfgErr != nil {
					return rt.cfgErr
				}
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				logging.L.Info("mcp serve", "version", rt.build.Version)
				return mcp.Serve(ctx, mcp.NewServer(rt.build.Version, mcpBackend{rt}), os.Stdin, os.Stdout)
			},
		},
	)

	return mcpCmd
}

func printServers(w io.Writer, servers []mcp.ServerInfo) {
	s := present.StdoutStyles()
	for _, srv := range servers {
		line := srv.Name + s.Comment.Render(" "+srv.Type+" "+srv.Target)
		if srv.Enabled {
			line += s.Timeago.Render(" (enabled)")
		}
		fmt.Fprintln(w, line)
	}
}

func printTools(w io.Writer, servers map[string][]mmcp.Tool) {
	for _, name := range slices.Sorted(maps.Keys(servers)) {
		tools := slices.SortedFunc(slices.Values(servers[name]), func(a, b mmcp.Tool) int {
			return strings.Compare(a.Name, b.Name)
		})
		for _, tool := range tools {
			fmt.Fprintln(w, present.StdoutStyles().Timeago.Render(name+" > ")+tool.Name)
		}
	}
}

// mcpBackend runs served tool calls with the loaded settings.
type mcpBackend struct {
	rt *runtime
}

func (b mcpBackend) Research(ctx context.Context, query string, maxSearches int, progress func(string)) (string, string, error) {
	settings := b.rt.cfg.Research
	if maxSearches > 0 {
		settings.MaxSearches = maxSearches
	}
	mgr, err := b.rt.newManager(settings)
	if err != nil {
		return "", "", err
	}
	report, err := mgr.Run(ctx, query, func(s research.Status) {
		progress(fmt.Sprintf("[%s] %s", s.Stage, s.Message))
	})
	if err != nil {
		return "", "", err //nolint:wrapcheck
	}
	// Saving is best effort: the caller still gets the markdown.
	if err := saveReport(b.rt.cfg.NoCache, true, b.rt.cfg.CachePath, &report); err != nil {
		logging.L.Warn("mcp report not saved", "err", err)
	}
	return report.ID, report.Markdown(), nil
}

func (b mcpBackend) Reports() ([]mcp.ReportSummary, error) {
	store, err := research.OpenStore(b.rt.cfg.CachePath)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	defer store.Close() //nolint:errcheck

	entries := store.List()
	out := make([]mcp.ReportSummary, 0, len(entries))
	for _, e := range entries {
		out = append(out, mcp.ReportSummary{ID: e.ID, Title: e.Title, UpdatedAt: e.UpdatedAt})
	}
	return out, nil
}

func (b mcpBackend) Report(id string) (string, error) {
	var args []string
	if id != "" {
		args = []string{id}
	}
	report, err := findReport(b.rt.cfg.CachePath, args)
	if err != nil {
		return "", err
	}
	return report.Markdown(), nil
}

func (b mcpBackend) Doctor(ctx context.Context) (any, bool) {
	res := doctor.New(b.rt.cfg.Doctor, agent.New(&b.rt.cfg, nil, nil)).Run(ctx, nil)
	return res, res.OK()
}

var _ mcp.Backend = mcpBackend{}
