package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/deepresearch/internal/present"
)

// anim is the waiting indicator: a spinner followed by the status label.
// Higher fanciness picks busier spinners and a gradient label.
type anim struct {
	spinner spinner.Model
	label   string
	styles  present.Styles
	fancy   bool
}

func newAnim(fanciness uint, label string, r *lipgloss.Renderer, s present.Styles) tea.Model {
	kind := spinner.Line
	switch {
	case fanciness >= 10:
		kind = spinner.Points
	case fanciness >= 5:
		kind = spinner.Dot
	}
	sp := spinner.New(
		spinner.WithSpinner(kind),
		spinner.WithStyle(r.NewStyle().Inherit(s.CyclingChars)),
	)
	return &anim{
		spinner: sp,
		label:   strings.TrimSpace(label),
		styles:  s,
		fancy:   fanciness > 0,
	}
}

func (a *anim) Init() tea.Cmd {
	return a.spinner.Tick
}

func (a *anim) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	a.spinner, cmd = a.spinner.Update(msg)
	return a, cmd
}

// SetLabel replaces the status label.
func (a *anim) SetLabel(label string) {
	a.label = strings.TrimSpace(label)
}

func (a *anim) View() string {
	label := a.label
	if a.fancy {
		label = present.MakeGradientText(a.styles.AppName, label)
	}
	return a.spinner.View() + " " + label
}
