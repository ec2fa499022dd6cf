package present

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/lucasb-eyer/go-colorful"
)

var (
	gradientFrom, _ = colorful.Hex("#F967DC")
	gradientTo, _   = colorful.Hex("#6B50FF")
)

// MakeGradientRamp blends n colors from pink to violet in Luv space.
func MakeGradientRamp(n int) []lipgloss.Color {
	ramp := make([]lipgloss.Color, n)
	for i := range ramp {
		ramp[i] = lipgloss.Color(gradientFrom.BlendLuv(gradientTo, float64(i)/float64(n)).Hex())
	}
	return ramp
}

// MakeGradientText colors str one rune at a time. Strings shorter than three
// runes are returned as is.
func MakeGradientText(base lipgloss.Style, str string) string {
	runes := []rune(str)
	if len(runes) < 3 { //nolint:mnd
		return str
	}
	var sb strings.Builder
	for i, color := range MakeGradientRamp(len(runes)) {
		sb.WriteString(base.Foreground(color).Render(string(runes[i])))
	}
	return sb.String()
}
