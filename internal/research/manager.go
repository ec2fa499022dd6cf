// Package research runs the deep research pipeline: plan searches, run and
// summarize them, write a report, analyze the stocks it mentions, chart the
// analysis and optionally mail the result.
package research

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/charmbracelet/x/exp/ordered"
	"golang.org/x/sync/errgroup"

	"github.com/dotcommander/deepresearch/internal/agent"
	"github.com/dotcommander/deepresearch/internal/charts"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/mail"
	"github.com/dotcommander/deepresearch/internal/storage"
	"github.com/dotcommander/deepresearch/internal/websearch"
)

// ErrAllSearchesFailed is returned when no planned search produced a summary.
var ErrAllSearchesFailed = errors.New("all searches failed")

// Stage identifies a pipeline step in status updates.
type Stage string

// Pipeline stages.
const (
	StageStart    Stage = "start"
	StagePlan     Stage = "plan"
	StageSearch   Stage = "search"
	StageWrite    Stage = "write"
	StageAnalyze  Stage = "analyze"
	StageCharts   Stage = "charts"
	StageEmail    Stage = "email"
	StageComplete Stage = "complete"
)

// Status is a progress update.
type Status struct {
	Stage   Stage
	Message string
	Current int
	Total   int
	Warning bool
}

// Manager runs research queries.
type Manager struct {
	gen      Generator
	search   websearch.Provider
	sender   mail.Sender
	settings config.ResearchSettings
	rng      *rand.Rand
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSender mails every finished report through s.
func WithSender(s mail.Sender) Option {
	return func(m *Manager) { m.sender = s }
}

// WithRand sets the random source used for simulated chart series.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) { m.rng = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager returns a Manager using gen for every model call.
func NewManager(gen Generator, search websearch.Provider, settings config.ResearchSettings, opts ...Option) *Manager {
	m := &Manager{
		gen:      gen,
		search:   search,
		settings: settings,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = charts.NewRand(uint64(m.now().UnixNano())) //nolint:gosec
	}
	return m
}

// Run executes the full pipeline for query. onStatus may be nil; it is
// never called concurrently.
func (m *Manager) Run(ctx context.Context, query string, onStatus func(Status)) (Report, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Report{}, errors.New("research: empty query")
	}

	var mu sync.Mutex
	emit := func(s Status) {
		if onStatus == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		onStatus(s)
	}

	report := Report{
		ID:        storage.NewID(),
		Query:     query,
		CreatedAt: m.now().UTC(),
		API:       m.settings.API,
		Model:     m.settings.Model,
	}
	log := logging.With("run", storage.Short(report.ID))
	warn := func(stage Stage, msg string, err error) {
		log.Warn(msg, "stage", stage, "err", err)
		text := fmt.Sprintf("%s: %v", msg, err)
		report.Warnings = append(report.Warnings, text)
		emit(Status{Stage: stage, Message: text, Warning: true})
	}

	emit(Status{Stage: StageStart, Message: fmt.Sprintf("Run %s", storage.Short(report.ID))})
	emit(Status{Stage: StageStart, Message: "Starting research..."})
	log.Info("research start", "query", query)

	p, err := loadPrompts(ctx, m.settings)
	if err != nil {
		return report, err
	}

	emit(Status{Stage: StagePlan, Message: "Planning searches..."})
	plan, err := m.plan(ctx, p, query, log)
	if err != nil {
		return report, fmt.Errorf("plan: %w", err)
	}
	report.Plan = plan
	emit(Status{Stage: StagePlan, Message: fmt.Sprintf("Will perform %d searches", len(plan.Searches)), Total: len(plan.Searches)})

	summaries, err := m.performSearches(ctx, p, plan, emit)
	report.Searches = summaries
	if err != nil {
		return report, fmt.Errorf("search: %w", err)
	}

	emit(Status{Stage: StageWrite, Message: "Writing report..."})
	data, err := generateJSON[ReportData](ctx, m.gen, agent.Completion{
		API:    m.settings.API,
		Model:  m.modelFor(m.settings.WriterModel),
		Prompt: writerPrompt(query, summaries),
	}, p.writer)
	if err != nil {
		return report, fmt.Errorf("write: %w", err)
	}
	if strings.TrimSpace(data.MarkdownReport) == "" {
		return report, errors.New("write: empty report")
	}
	report.Report = data
	log.Info("report written", "chars", len(data.MarkdownReport))

	if !m.settings.NoAnalysis {
		emit(Status{Stage: StageAnalyze, Message: "Analyzing stocks..."})
		analysis, err := generateJSON[StockAnalysis](ctx, m.gen, agent.Completion{
			API:    m.settings.API,
			Model:  m.modelFor(m.settings.AnalystModel),
			Prompt: data.MarkdownReport,
		}, p.analyst)
		switch {
		case ctx.Err() != nil:
			return report, ctx.Err()
		case err != nil:
			warn(StageAnalyze, "stock analysis skipped", err)
		default:
			report.Analysis = &analysis
		}
	}

	if !m.settings.NoCharts && report.Analysis != nil {
		emit(Status{Stage: StageCharts, Message: "Generating charts..."})
		pkg, err := charts.Build(chartInput(report.Analysis), m.rng)
		if err != nil {
			warn(StageCharts, "charts skipped", err)
		} else {
			report.Charts = &pkg
		}
	}

	if m.sender != nil {
		emit(Status{Stage: StageEmail, Message: "Sending email..."})
		if err := m.mail(ctx, report); err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			warn(StageEmail, "email not sent", err)
		} else {
			report.Emailed = true
		}
	}

	emit(Status{Stage: StageComplete, Message: "Research complete!"})
	log.Info("research complete", "searches", len(summaries), "warnings", len(report.Warnings))
	return report, nil
}

func (m *Manager) modelFor(stage string) string {
	return ordered.First(stage, m.settings.Model)
}

func (m *Manager) plan(ctx context.Context, p prompts, query string, log *clog.Logger) (SearchPlan, error) {
	attempts := max(m.settings.PlannerAttempts, 1)
	prompt := "Query: " + query
	var plan SearchPlan
	for attempt := 1; attempt <= attempts; attempt++ {
		var err error
		plan, err = generateJSON[SearchPlan](ctx, m.gen, agent.Completion{
			API:    m.settings.API,
			Model:  m.modelFor(m.settings.PlannerModel),
			Prompt: prompt,
		}, p.planner)
		if err != nil {
			return SearchPlan{}, err
		}
		plan.Searches = cleanPlan(plan.Searches)
		if len(plan.Searches) > 0 && stockFocused(plan) {
			break
		}
		log.Warn("plan needs stock focus", "attempt", attempt, "searches", len(plan.Searches))
		prompt = "Query: " + query + "\n\n" + stockFocusNote
	}
	if len(plan.Searches) == 0 {
		return SearchPlan{}, errors.New("planner returned no searches")
	}
	if n := maxSearches(m.settings); len(plan.Searches) > n {
		plan.Searches = plan.Searches[:n]
	}
	return plan, nil
}

func (m *Manager) performSearches(ctx context.Context, p prompts, plan SearchPlan, emit func(Status)) ([]SearchSummary, error) {
	total := len(plan.Searches)
	out := make([]SearchSummary, total)
	var done int
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.settings.SearchConcurrency, 1))
	for i, item := range plan.Searches {
		g.Go(func() error {
			summary, err := m.searchOne(gctx, p, item)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				logging.L.Warn("search failed", "query", item.Query, "err", err)
				summary.Err = err.Error()
			}
			out[i] = summary

			mu.Lock()
			done++
			n := done
			mu.Unlock()
			emit(Status{Stage: StageSearch, Message: fmt.Sprintf("Searching... %d/%d completed", n, total), Current: n, Total: total})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}

	for _, s := range out {
		if s.OK() {
			return out, nil
		}
	}
	return out, ErrAllSearchesFailed
}

func (m *Manager) searchOne(ctx context.Context, p prompts, item SearchItem) (SearchSummary, error) {
	summary := SearchSummary{Item: item}
	results, err := m.search.Search(ctx, item.Query)
	if err != nil {
		return summary, fmt.Errorf("%s: %w", m.search.Name(), err)
	}
	summary.Sources = results
	if len(results) == 0 {
		return summary, errors.New("no results")
	}

	res, err := m.gen.Generate(ctx, agent.Completion{
		API:    m.settings.API,
		Model:  m.modelFor(m.settings.SearchModel),
		System: p.search,
		Prompt: searchPrompt(item, results),
	})
	if err != nil {
		return summary, fmt.Errorf("summarize: %w", err)
	}
	summary.Summary = strings.TrimSpace(res.Text)
	if summary.Summary == "" {
		return summary, errors.New("empty summary")
	}
	return summary, nil
}

func (m *Manager) mail(ctx context.Context, r Report) error {
	msg, err := mail.Compose(MailContent(r), m.now())
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, msg)
}

// MailContent builds the e-mail body for r.
func MailContent(r Report) mail.Content {
	c := mail.Content{
		Query:    r.Query,
		Markdown: r.Markdown(),
	}
	if r.Charts != nil {
		c.Charts = r.Charts.Charts
		c.Summary = r.Charts.Summary
	}
	return c
}

func maxSearches(s config.ResearchSettings) int {
	if s.MaxSearches <= 0 {
		return 5
	}
	return s.MaxSearches
}

func cleanPlan(items []SearchItem) []SearchItem {
	seen := map[string]bool{}
	out := items[:0]
	for _, it := range items {
		q := strings.TrimSpace(it.Query)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		it.Query = q
		out = append(out, it)
	}
	return out
}

var marketTerms = []string{
	"stock", "share", "market", "equit", "invest", "earning", "ticker",
	"nasdaq", "nyse", "s&p", "dow", "etf", "sector", "valuation", "price", "portfolio", "trading",
}

// stockFocused reports whether any search in the plan is about markets.
func stockFocused(plan SearchPlan) bool {
	for _, it := range plan.Searches {
		text := strings.ToLower(it.Query + " " + it.Reason)
		for _, term := range marketTerms {
			if strings.Contains(text, term) {
				return true
			}
		}
	}
	return false
}

func searchPrompt(item SearchItem, results []websearch.Result) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Search term: %s\nReason for searching: %s\n\nResults:\n", item.Query, item.Reason)
	for i, r := range results {
		fmt.Fprintf(&sb, "\n[%d] %s\n%s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			sb.WriteString(r.Snippet + "\n")
		}
		if r.Content != "" {
			sb.WriteString(r.Content + "\n")
		}
	}
	return sb.String()
}

func writerPrompt(query string, summaries []SearchSummary) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original query: %s\n\nSummarized search results:\n", query)
	for _, s := range summaries {
		if !s.OK() {
			continue
		}
		fmt.Fprintf(&sb, "\n### %s\n\n%s\n", s.Item.Query, s.Summary)
	}
	return sb.String()
}

func chartInput(a *StockAnalysis) charts.Input {
	var in charts.Input
	for _, p := range a.StockPredictions {
		risk := p.RiskLevel
		if risk == "" {
			risk = a.RiskAssessment.RiskLevel
		}
		in.Predictions = append(in.Predictions, charts.Prediction{
			Ticker:       p.TickerSymbol,
			CurrentPrice: p.CurrentPrice,
			TargetPrice:  p.TargetPrice,
			Months:       p.TimeframeMonths,
			RiskLevel:    risk,
		})
	}
	return in
}
