package cmd

import (
	"math/rand/v2"
	"regexp"

	"github.com/dotcommander/deepresearch/internal/present"
)

type usageExample struct {
	title   string
	command string
}

var usageExamples = []usageExample{
	{"Research a stock outlook", `deepresearch "outlook for NVDA and AMD over the next 6 months"`},
	{"Mail the report with charts", `deepresearch --email -o ./reports "semiconductor sector risks in 2025"`},
	{"Research from a notes file", `cat watchlist.md | deepresearch -n 3 "which of these look undervalued"`},
	{"Chat and research in the same session", `deepresearch chat`},
	{"Check your OpenAI connectivity", `deepresearch doctor`},
}

var (
	quotedArg = regexp.MustCompile(`"([^"\\]|\\.)*"`)
	shellPipe = regexp.MustCompile(`\|`)
)

// randomExample picks the example shown in --help. The title goes into
// cobra's Example field; exampleCommand maps it back.
func randomExample() string {
	return usageExamples[rand.IntN(len(usageExamples))].title //nolint:gosec
}

func exampleCommand(title string) string {
	for _, ex := range usageExamples {
		if ex.title == title {
			return ex.command
		}
	}
	return ""
}

// highlightExample colors quoted arguments and pipes.
func highlightExample(s present.Styles, command string) string {
	command = quotedArg.ReplaceAllStringFunc(command, func(q string) string { return s.Quote.Render(q) })
	return shellPipe.ReplaceAllStringFunc(command, func(p string) string { return s.Pipe.Render(p) })
}
