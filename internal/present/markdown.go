package present

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/glamour"
)

// RenderMarkdownForTTY renders markdown the way the chat view does, for
// commands that print a report or conversation without Bubble Tea. Tabs
// become four spaces.
func RenderMarkdownForTTY(md string, wordWrap int) (string, error) {
	r, err := glamour.NewTermRenderer(glamour.WithEnvironmentConfig(), glamour.WithWordWrap(wordWrap))
	if err != nil {
		return "", fmt.Errorf("new markdown renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	out = strings.ReplaceAll(strings.TrimRightFunc(out, unicode.IsSpace), "\t", "    ")
	return out + "\n", nil
}
