package tui

import "strings"

type commandKind int

const (
	cmdPrompt commandKind = iota
	cmdQuit
	cmdHelp
	cmdClear
	cmdResearch
	cmdUnknown
)

type command struct {
	kind commandKind
	arg  string
}

const chatHelp = "Commands: `/research <query>` runs the research pipeline and adds the report to the conversation, " +
	"`/clear` starts over, `/help` shows this, `/exit` quits. Anything else is sent to the model."

// parseCommand classifies one line of input. Lines that do not start with a
// slash, and "//..." escapes, are prompts.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdPrompt, arg: line}
	}
	if strings.HasPrefix(line, "//") {
		return command{kind: cmdPrompt, arg: line[1:]}
	}
	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(name) {
	case "exit", "quit", "q":
		return command{kind: cmdQuit}
	case "help", "?":
		return command{kind: cmdHelp}
	case "clear", "new":
		return command{kind: cmdClear}
	case "research", "r":
		return command{kind: cmdResearch, arg: arg}
	default:
		return command{kind: cmdUnknown, arg: name}
	}
}
