package cmd

import (
	"regexp"
	"time"

	"github.com/caarlos0/duration"

	"github.com/dotcommander/deepresearch/internal/present"
)

var helpText = map[string]string{
	"api":                   "OpenAI compatible REST API (openai, anthropic, ollama, etc.)",
	"model":                 "Default model (gpt-4o-mini, claude-sonnet-4-5, ...)",
	"ask-model":             "Ask which model to use via interactive prompt",
	"http-proxy":            "HTTP proxy to use for API requests",
	"format":                "Ask for the response to be formatted as markdown unless otherwise set",
	"format-as":             "Format the response as a given format, e.g. markdown or json",
	"raw":                   "Render output as raw text when connected to a TTY",
	"quiet":                 "Quiet mode (hide the spinner while loading and stderr messages for success)",
	"continue":              "Continue from the last response or a given save title",
	"continue-last":         "Continue from the last response",
	"title":                 "Saves the current conversation with the given title",
	"role":                  "System role to use",
	"no-cache":              "Disables caching of prompt/response",
	"max-tokens":            "Maximum number of tokens in response",
	"max-completion-tokens": "Maximum number of completion tokens in response",
	"temp":                  "Temperature (randomness) of results, from 0.0 to 2.0, -1.0 to disable",
	"topp":                  "TopP, an alternative to temperature that narrows response, from 0.0 to 1.0, -1.0 to disable",
	"topk":                  "TopK, only sample from the top K options for each subsequent token, -1 to disable",
	"max-retries":           "Maximum number of times to retry API calls",
	"request-timeout":       "Timeout for each model request (0 disables it)",
	"word-wrap":             "Wrap formatted output at specific width (default is 80)",
	"no-limit":              "Turn off the client-side limit on the size of the input into the model",
	"stop":                  "Up to 4 sequences where the API will stop generating further tokens",
	"fanciness":             "Your desired level of fanciness",
	"status-text":           "Text to show while generating",
	"theme":                 "Theme to use in the forms; valid choices are charm, catppuccin, dracula, and base16",
	"mcp-disable":           "Disable specific MCP servers",
	"mcp-no-inherit-env":    "Do not pass the parent environment to MCP servers",
	"verbose":               "Also write log lines to stderr",
	"log-level":             "Log level (debug, info, warn, error)",
	"log-file":              "Log file path",
	"log-format":            "Log line format (text, json, logfmt)",

	"research-api":      "API used by the research agents",
	"research-model":    "Model used by the research agents",
	"max-searches":      "Maximum number of web searches to plan",
	"concurrency":       "Number of searches to run at once",
	"no-charts":         "Skip chart generation",
	"no-analysis":       "Skip the structured stock analysis",
	"email":             "Mail the finished report through SendGrid",
	"email-to":          "Recipient of the report email",
	"output-dir":        "Export markdown, HTML and chart images to this directory",
	"search-provider":   "Web search backend (duckduckgo, tavily, brave)",
	"fetch-pages":       "Fetch result pages and hand their text to the summarizer",
	"doctor-json":       "Print the checks as JSON",
	"older-than":        "Age to prune; e.g. 24h, 7d",
	"last":              "Use the most recent entry",
	"export-dir":        "Directory to export into",
}

// flagHelp renders the help text registered under name.
func flagHelp(name string) string {
	return flagDesc(helpText[name])
}

func flagDesc(s string) string {
	return present.StdoutStyles().FlagDesc.Render(s)
}

type durationFlag time.Duration

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d = durationFlag(v)
	//nolint: wrapcheck
	return err
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}

var flagErrorPatterns = []struct {
	re     *regexp.Regexp
	reason string
}{
	{regexp.MustCompile(`^flag needs an argument: (?:'.' in )?(-{1,2}[\w-]+)`), "Flag %s needs an argument."},
	{regexp.MustCompile(`^unknown shorthand flag: '.' in (-[\w-]+)`), "Short flag %s is missing."},
	{regexp.MustCompile(`^unknown flag: (-{1,2}[\w-]+)`), "Flag %s is missing."},
	{regexp.MustCompile(`^invalid argument ".*?" for "([^"]+)" flag: `), "Flag %s have an invalid argument."},
}

// flagParseError is a pflag error with the offending flag pulled out so it
// can be highlighted.
type flagParseError struct {
	err    error
	reason string
	flag   string
}

func newFlagParseError(err error) flagParseError {
	s := err.Error()
	for _, p := range flagErrorPatterns {
		if m := p.re.FindStringSubmatch(s); m != nil {
			return flagParseError{err: err, reason: p.reason, flag: m[1]}
		}
	}
	return flagParseError{err: err, reason: s}
}

func (f flagParseError) Error() string {
	return f.err.Error()
}

func (f flagParseError) ReasonFormat() string {
	return f.reason
}

func (f flagParseError) Flag() string {
	return f.flag
}
