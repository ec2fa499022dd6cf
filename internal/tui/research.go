package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/research"
)

// Runner executes a research query and reports progress.
type Runner interface {
	Run(ctx context.Context, query string, onStatus func(research.Status)) (research.Report, error)
}

// Research is the Bubble Tea model that shows research progress while a
// Runner works through the pipeline.
type Research struct {
	// Report is populated once the run finishes, even when it failed part way.
	Report research.Report
	Error  *errs.Error
	Styles present.Styles

	query  string
	runner Runner
	quiet  bool

	anim    tea.Model
	stage   research.Stage
	current string
	lines   []string
	done    bool

	events chan tea.Msg
	ctx    context.Context
	cancel context.CancelFunc
}

type statusMsg research.Status

type researchDoneMsg struct {
	report research.Report
	err    error
}

// NewResearch creates the progress model for query.
func NewResearch(ctx context.Context, r *lipgloss.Renderer, cfg *config.Config, runner Runner, query string) *Research {
	ctx, cancel := context.WithCancel(ctx)
	s := present.MakeStyles(r)
	m := &Research{
		Styles:  s,
		query:   query,
		runner:  runner,
		quiet:   cfg.Quiet,
		current: cfg.StatusText,
		events:  make(chan tea.Msg),
		ctx:     ctx,
		cancel:  cancel,
	}
	if !m.quiet {
		m.anim = newAnim(cfg.Fanciness, cfg.StatusText, r, s)
	}
	return m
}

// Init implements tea.Model.
func (m *Research) Init() tea.Cmd {
	cmds := []tea.Cmd{m.runCmd, m.nextEvent}
	if m.anim != nil {
		cmds = append(cmds, m.anim.Init())
	}
	return tea.Batch(cmds...)
}

// runCmd drives the pipeline. Status updates and the final result share one
// channel so they arrive in order.
func (m *Research) runCmd() tea.Msg {
	report, err := m.runner.Run(m.ctx, m.query, func(s research.Status) {
		select {
		case m.events <- statusMsg(s):
		case <-m.ctx.Done():
		}
	})
	m.events <- researchDoneMsg{report: report, err: err}
	return nil
}

func (m *Research) nextEvent() tea.Msg {
	return <-m.events
}

// Update implements tea.Model.
func (m *Research) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case statusMsg:
		m.record(research.Status(msg))
		cmds = append(cmds, m.nextEvent)

	case researchDoneMsg:
		m.done = true
		m.Report = msg.report
		if msg.err != nil {
			m.Error = ResearchError(msg.err)
		}
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.cancel()
			m.current = "Canceling..."
		}
	}
	if m.anim != nil && !m.done {
		var cmd tea.Cmd
		m.anim, cmd = m.anim.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m *Research) record(s research.Status) {
	if s.Warning {
		m.lines = append(m.lines, m.Styles.Failure.Render("! ")+m.Styles.Comment.Render(s.Message))
		return
	}
	// Counted updates within one stage replace the spinner label.
	if m.stage != "" && (m.stage != s.Stage || s.Total == 0) {
		m.lines = append(m.lines, m.Styles.Success.Render("✓ ")+m.current)
	}
	m.stage = s.Stage
	m.current = s.Message
	if a, ok := m.anim.(*anim); ok {
		a.SetLabel(m.current)
	}
}

// View implements tea.Model.
func (m *Research) View() string {
	if m.quiet {
		return ""
	}
	var b strings.Builder
	for _, l := range m.lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if m.done {
		if m.Error == nil && m.current != "" {
			b.WriteString(m.Styles.Success.Render("✓ ") + m.current + "\n")
		}
		return b.String()
	}
	b.WriteString(m.anim.View())
	return b.String()
}

// ResearchError turns a failed run into a user-facing error.
func ResearchError(err error) *errs.Error {
	if e, ok := errs.As(err); ok {
		return &e
	}
	if errors.Is(err, context.Canceled) {
		return &errs.Error{Err: err, Reason: "Research canceled."}
	}
	return &errs.Error{Err: err, Reason: "Research failed."}
}
