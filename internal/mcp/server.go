package mcp

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/storage"
)

// ReportSummary is one row of list_reports.
type ReportSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReportList wraps list_reports output; structured content must be an object.
type ReportList struct {
	Reports []ReportSummary `json:"reports"`
}

// Backend runs the work behind the exposed tools.
type Backend interface {
	// Research runs the pipeline and returns the report ID and markdown.
	// progress receives one line per pipeline step.
	Research(ctx context.Context, query string, maxSearches int, progress func(string)) (id, markdown string, err error)
	Reports() ([]ReportSummary, error)
	// Report returns the markdown for id, or for the latest report when id is empty.
	Report(id string) (string, error)
	// Doctor returns the check results and whether all checks passed.
	Doctor(ctx context.Context) (any, bool)
}

const serverInstructions = `deepresearch runs multi-step web research on stock market questions.
Use "research" for a new question; it can take a few minutes.
Use "list_reports" and "get_report" to reuse earlier results.`

// NewServer exposes b as MCP tools.
func NewServer(version string, b Backend) *server.MCPServer {
	s := server.NewMCPServer(
		"deepresearch",
		version,
		server.WithToolCapabilities(false),
		server.WithInstructions(serverInstructions),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool("research",
		mcp.WithTitleAnnotation("Run deep research"),
		mcp.WithDescription("Plan web searches for a query, summarize the results and write a report in markdown."),
		mcp.WithString("query", mcp.Required(), mcp.Description("The research question")),
		mcp.WithNumber("max_searches",
			mcp.Description("Upper bound on planned searches, 0 keeps the configured value"),
			mcp.DefaultNumber(0),
			mcp.Min(0),
			mcp.Max(20), //nolint:mnd
		),
		mcp.WithOpenWorldHintAnnotation(true),
		mcp.WithReadOnlyHintAnnotation(false),
	), researchHandler(b))

	s.AddTool(mcp.NewTool("list_reports",
		mcp.WithTitleAnnotation("List saved reports"),
		mcp.WithDescription("List saved research reports, newest first."),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reports, err := b.Reports()
		if err != nil {
			return mcp.NewToolResultErrorFromErr("could not list reports", err), nil
		}
		var sb strings.Builder
		for _, r := range reports {
			fmt.Fprintf(&sb, "%s  %s\n", storage.Short(r.ID), r.Title)
		}
		if sb.Len() == 0 {
			sb.WriteString("No reports found.")
		}
		return mcp.NewToolResultStructured(ReportList{Reports: reports}, sb.String()), nil
	})

	s.AddTool(mcp.NewTool("get_report",
		mcp.WithTitleAnnotation("Read a saved report"),
		mcp.WithDescription("Return a saved report as markdown. Omit id for the latest report."),
		mcp.WithString("id", mcp.Description("Report ID prefix or exact query")),
		mcp.WithReadOnlyHintAnnotation(true),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		md, err := b.Report(req.GetString("id", ""))
		if err != nil {
			return mcp.NewToolResultErrorFromErr("could not load report", err), nil
		}
		return mcp.NewToolResultText(md), nil
	})

	s.AddTool(mcp.NewTool("doctor",
		mcp.WithTitleAnnotation("Check OpenAI connectivity"),
		mcp.WithDescription("Check the API key, internet access and OpenAI reachability."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(true),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res, ok := b.Doctor(ctx)
		out := mcp.NewToolResultStructured(res, "all checks passed")
		if !ok {
			out.Content = []mcp.Content{mcp.NewTextContent("one or more checks failed")}
			out.IsError = true
		}
		return out, nil
	})

	return s
}

func researchHandler(b Backend) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		limit := req.GetInt("max_searches", 0)
		logging.L.Info("mcp research", "query", query, "max_searches", limit)

		id, md, err := b.Research(ctx, query, limit, progressFor(ctx, req))
		if err != nil {
			logging.L.Warn("mcp research failed", "err", err)
			return mcp.NewToolResultErrorFromErr("research failed", err), nil
		}
		res := mcp.NewToolResultText(md)
		res.Meta = mcp.NewMetaFromMap(map[string]any{"report_id": id})
		return res, nil
	}
}

// progressFor reports steps as notifications/progress when the caller
// asked for them with a progress token.
func progressFor(ctx context.Context, req mcp.CallToolRequest) func(string) {
	srv := server.ServerFromContext(ctx)
	if srv == nil || req.Params.Meta == nil || req.Params.Meta.ProgressToken == nil {
		return func(string) {}
	}
	token := req.Params.Meta.ProgressToken
	step := 0
	return func(msg string) {
		step++
		err := srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      step,
			"message":       msg,
		})
		if err != nil {
			logging.L.Debug("mcp progress dropped", "err", err)
		}
	}
}

// Serve answers JSON-RPC requests read from in until ctx ends or in closes.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(logging.L.StandardLog())
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return err //nolint:wrapcheck
	}
	return nil
}
