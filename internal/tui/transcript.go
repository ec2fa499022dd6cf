package tui

import (
	"strings"

	"github.com/dotcommander/deepresearch/internal/proto"
)

type entryKind int

const (
	entryUser entryKind = iota
	entryAnswer
	entryNote
)

type entry struct {
	kind entryKind
	text string
}

// transcript is what the viewport shows: user turns quoted, answers and
// notes as plain markdown. It is rebuilt from history on resume and never
// sent to the model.
type transcript struct {
	entries []entry
}

func transcriptFrom(history []proto.Message) transcript {
	var t transcript
	for _, msg := range history {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case proto.RoleUser:
			t.add(entryUser, msg.Content)
		case proto.RoleAssistant:
			t.add(entryAnswer, msg.Content)
		}
	}
	return t
}

func (t *transcript) add(kind entryKind, text string) {
	if text = strings.TrimSpace(text); text != "" {
		t.entries = append(t.entries, entry{kind: kind, text: text})
	}
}

func (t *transcript) reset() {
	t.entries = nil
}

// markdown renders every entry followed by pending, the answer still being
// streamed.
func (t *transcript) markdown(pending string) string {
	var sb strings.Builder
	for _, e := range t.entries {
		switch e.kind {
		case entryUser:
			for _, line := range strings.Split(e.text, "\n") {
				sb.WriteString("> ")
				sb.WriteString(line)
				sb.WriteByte('\n')
			}
		case entryNote:
			sb.WriteString("*")
			sb.WriteString(e.text)
			sb.WriteString("*\n")
		default:
			sb.WriteString(e.text)
			sb.WriteByte('\n')
		}
		sb.WriteByte('\n')
	}
	sb.WriteString(pending)
	return sb.String()
}
