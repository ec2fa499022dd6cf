package present

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

func isTerminal(f *os.File) func() bool {
	return sync.OnceValue(func() bool { return isatty.IsTerminal(f.Fd()) })
}

var (
	// IsInputTTY reports whether stdin is a terminal.
	IsInputTTY = isTerminal(os.Stdin)
	// IsOutputTTY reports whether stdout is a terminal.
	IsOutputTTY = isTerminal(os.Stdout)
	// IsErrorTTY reports whether stderr is a terminal. Progress output
	// goes to stderr, so it checks this rather than stdout.
	IsErrorTTY = isTerminal(os.Stderr)
)

var (
	// StdoutRenderer is the lipgloss renderer for stdout.
	StdoutRenderer = sync.OnceValue(lipgloss.DefaultRenderer)
	// StderrRenderer is the lipgloss renderer for stderr.
	StderrRenderer = sync.OnceValue(func() *lipgloss.Renderer {
		return lipgloss.NewRenderer(os.Stderr, termenv.WithColorCache(true))
	})

	// StdoutStyles are styles bound to stdout.
	StdoutStyles = sync.OnceValue(func() Styles { return MakeStyles(StdoutRenderer()) })
	// StderrStyles are styles bound to stderr.
	StderrStyles = sync.OnceValue(func() Styles { return MakeStyles(StderrRenderer()) })
)
