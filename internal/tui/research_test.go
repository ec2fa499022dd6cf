package tui

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/research"
)

type fakeRunner struct {
	statuses []research.Status
	report   research.Report
	err      error
}

func (f fakeRunner) Run(ctx context.Context, _ string, onStatus func(research.Status)) (research.Report, error) {
	for _, s := range f.statuses {
		onStatus(s)
	}
	if err := ctx.Err(); err != nil {
		return f.report, err
	}
	return f.report, f.err
}

func newTestResearch(runner Runner, quiet bool) *Research {
	cfg := &config.Config{Settings: config.Settings{Quiet: quiet, StatusText: "Researching"}}
	return NewResearch(context.Background(), lipgloss.DefaultRenderer(), cfg, runner, "nvidia outlook")
}

func TestResearchRecord(t *testing.T) {
	t.Run("stage changes add lines", func(t *testing.T) {
		m := newTestResearch(fakeRunner{}, false)
		m.record(research.Status{Stage: research.StageStart, Message: "Starting research..."})
		m.record(research.Status{Stage: research.StagePlan, Message: "Planning searches..."})
		require.Len(t, m.lines, 1)
		require.Contains(t, m.lines[0], "Starting research...")
		require.Equal(t, "Planning searches...", m.current)
	})

	t.Run("counted updates replace the label", func(t *testing.T) {
		m := newTestResearch(fakeRunner{}, false)
		m.record(research.Status{Stage: research.StageSearch, Message: "Searching... 1/3 completed", Current: 1, Total: 3})
		m.record(research.Status{Stage: research.StageSearch, Message: "Searching... 2/3 completed", Current: 2, Total: 3})
		require.Empty(t, m.lines)
		require.Equal(t, "Searching... 2/3 completed", m.current)
		require.Contains(t, m.View(), "Searching... 2/3 completed")
	})

	t.Run("warnings are kept", func(t *testing.T) {
		m := newTestResearch(fakeRunner{}, false)
		m.record(research.Status{Stage: research.StageEmail, Message: "email not sent: boom", Warning: true})
		require.Len(t, m.lines, 1)
		require.Contains(t, m.lines[0], "email not sent: boom")
	})
}

func TestResearchUpdate(t *testing.T) {
	t.Run("done stores the report and quits", func(t *testing.T) {
		m := newTestResearch(fakeRunner{}, true)
		_, cmd := m.Update(researchDoneMsg{report: research.Report{Query: "nvidia outlook"}})
		require.NotNil(t, cmd)
		require.IsType(t, tea.QuitMsg{}, cmd())
		require.Nil(t, m.Error)
		require.Equal(t, "nvidia outlook", m.Report.Query)
		require.Empty(t, m.View())
	})

	t.Run("failure becomes an error", func(t *testing.T) {
		m := newTestResearch(fakeRunner{}, true)
		_, _ = m.Update(researchDoneMsg{err: research.ErrAllSearchesFailed})
		require.NotNil(t, m.Error)
		require.Equal(t, "Research failed.", m.Error.Reason)
		require.ErrorIs(t, m.Error.Err, research.ErrAllSearchesFailed)
	})

	t.Run("ctrl+c cancels the run", func(t *testing.T) {
		m := newTestResearch(fakeRunner{}, false)
		_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.ErrorIs(t, m.ctx.Err(), context.Canceled)
		require.Equal(t, "Canceling...", m.current)
	})
}

func TestResearchRunDeliversEventsInOrder(t *testing.T) {
	runner := fakeRunner{
		statuses: []research.Status{
			{Stage: research.StageStart, Message: "Starting research..."},
			{Stage: research.StageComplete, Message: "Research complete!"},
		},
		report: research.Report{Query: "nvidia outlook"},
	}
	m := newTestResearch(runner, true)
	go m.runCmd()

	var got []tea.Msg
	for range 3 {
		got = append(got, m.nextEvent())
	}
	require.Equal(t, statusMsg(runner.statuses[0]), got[0])
	require.Equal(t, statusMsg(runner.statuses[1]), got[1])
	done, ok := got[2].(researchDoneMsg)
	require.True(t, ok)
	require.Equal(t, "nvidia outlook", done.report.Query)
}

func TestResearchError(t *testing.T) {
	require.Equal(t, "Research canceled.", ResearchError(context.Canceled).Reason)
	require.Equal(t, "Research failed.", ResearchError(errors.New("boom")).Reason)
}
