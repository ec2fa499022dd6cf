package present

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var actionBadge = lipgloss.NewStyle().
	Foreground(lipgloss.Color("#F1F1F1")).
	Background(lipgloss.Color("#6C50FF")).
	Bold(true).
	Padding(0, 1).
	MarginRight(1)

// PrintConfirmation writes an uppercased action badge followed by content,
// for example "COPIED <id>" or "WROTE report.md".
func PrintConfirmation(w io.Writer, action, content string) {
	if action == "" {
		action = "wrote"
	}
	badge := actionBadge.Render(strings.ToUpper(action))
	fmt.Fprintln(w, lipgloss.JoinHorizontal(lipgloss.Center, badge, content))
}
