package present

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownForTTY(t *testing.T) {
	out, err := RenderMarkdownForTTY("hello\tworld\n", 80)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, "\n"))
	require.False(t, strings.Contains(out, "\t"))
}

func TestMakeStyles(t *testing.T) {
	s := MakeStyles(StderrRenderer())
	require.Contains(t, s.ErrorHeader.String(), "ERROR")
	require.Equal(t, ",", s.FlagComma.String())
	require.Contains(t, s.Success.Render("ok"), "ok")
}

func TestMakeGradientText(t *testing.T) {
	require.Equal(t, "ab", MakeGradientText(StdoutStyles().AppName, "ab"))
	require.Contains(t, MakeGradientText(StdoutStyles().AppName, "deep"), "d")
}

func TestMakeGradientRamp(t *testing.T) {
	ramp := MakeGradientRamp(4)
	require.Len(t, ramp, 4)
	require.Regexp(t, `^#[0-9a-f]{6}$`, string(ramp[0]))
	require.NotEqual(t, ramp[0], ramp[3])
}

func TestPrintConfirmation(t *testing.T) {
	var sb strings.Builder
	PrintConfirmation(&sb, "copied", "df31ae2")
	require.Contains(t, sb.String(), "COPIED")
	require.Contains(t, sb.String(), "df31ae2")

	sb.Reset()
	PrintConfirmation(&sb, "", "report.md")
	require.Contains(t, sb.String(), "WROTE")
}
