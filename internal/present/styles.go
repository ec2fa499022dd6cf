package present

import "github.com/charmbracelet/lipgloss"

// Styles are the lipgloss styles shared by commands and views.
type Styles struct {
	AppName          lipgloss.Style
	CliArgs          lipgloss.Style
	Comment          lipgloss.Style
	CyclingChars     lipgloss.Style
	ErrorHeader      lipgloss.Style
	ErrorDetails     lipgloss.Style
	ErrPadding       lipgloss.Style
	Flag             lipgloss.Style
	FlagComma        lipgloss.Style
	FlagDesc         lipgloss.Style
	InlineCode       lipgloss.Style
	Link             lipgloss.Style
	Pipe             lipgloss.Style
	Quote            lipgloss.Style
	ConversationList lipgloss.Style
	SHA1             lipgloss.Style
	Timeago          lipgloss.Style

	// research and doctor status lines
	Stage   lipgloss.Style
	Success lipgloss.Style
	Failure lipgloss.Style
	Skipped lipgloss.Style
	Hint    lipgloss.Style
}

// MakeStyles builds the styles for a renderer.
func MakeStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		AppName:          r.NewStyle().Bold(true),
		CliArgs:          r.NewStyle().Foreground(lipgloss.Color("#585858")),
		Comment:          r.NewStyle().Foreground(lipgloss.Color("#757575")),
		CyclingChars:     r.NewStyle().Foreground(lipgloss.Color("#FF87D7")),
		ErrorHeader:      r.NewStyle().Foreground(lipgloss.Color("#F1F1F1")).Background(lipgloss.Color("#FF5F87")).Bold(true).Padding(0, 1).SetString("ERROR"),
		ErrorDetails:     r.NewStyle().Foreground(lipgloss.Color("#757575")),
		ErrPadding:       r.NewStyle().Padding(0, horizontalEdgePadding),
		Flag:             r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}).Bold(true),
		FlagComma:        r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5DD6C0", Dark: "#427C72"}).SetString(","),
		FlagDesc:         r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#959595", Dark: "#757575"}),
		InlineCode:       r.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Background(lipgloss.Color("#3A3A3A")).Padding(0, 1),
		Link:             r.NewStyle().Foreground(lipgloss.Color("#00AF87")).Underline(true),
		Pipe:             r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8470FF", Dark: "#745CFF"}),
		Quote:            r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF71D0", Dark: "#FF78FC"}),
		ConversationList: r.NewStyle().Padding(0, 1),
		SHA1:             r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5DD6C0", Dark: "#427C72"}),
		Timeago:          r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#999", Dark: "#555"}),
		Stage:            r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#8470FF", Dark: "#745CFF"}).Bold(true),
		Success:          r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00B594", Dark: "#3EEFCF"}),
		Failure:          r.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true),
		Skipped:          r.NewStyle().Foreground(lipgloss.Color("#757575")),
		Hint:             r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#959595", Dark: "#757575"}).Italic(true).PaddingLeft(horizontalEdgePadding),
	}
}

const horizontalEdgePadding = 2
