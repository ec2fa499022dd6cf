package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/research"
)

func newTestChat(opts ChatOptions) *Chat {
	cfg := &config.Config{Settings: config.Settings{
		WordWrap:   80,
		MaxRetries: 3,
		Quiet:      true,
	}}
	c := NewChat(context.Background(), lipgloss.DefaultRenderer(), cfg, opts)
	c.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return c
}

func press(t *testing.T, c *Chat, line string) tea.Cmd {
	t.Helper()
	c.input.SetValue(line)
	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func TestParseCommand(t *testing.T) {
	tests := map[string]command{
		"hello":               {kind: cmdPrompt, arg: "hello"},
		"  spaced  ":          {kind: cmdPrompt, arg: "spaced"},
		"//etc/hosts":         {kind: cmdPrompt, arg: "/etc/hosts"},
		"/exit":               {kind: cmdQuit},
		"/QUIT":               {kind: cmdQuit},
		"/help":               {kind: cmdHelp},
		"/clear":              {kind: cmdClear},
		"/research NVDA 2026": {kind: cmdResearch, arg: "NVDA 2026"},
		"/r  TSLA ":           {kind: cmdResearch, arg: "TSLA"},
		"/research":           {kind: cmdResearch},
		"/nope":               {kind: cmdUnknown, arg: "nope"},
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			require.Equal(t, want, parseCommand(in))
		})
	}
}

func TestTranscript(t *testing.T) {
	t.Run("from history skips system and tool", func(t *testing.T) {
		tr := transcriptFrom([]proto.Message{
			{Role: proto.RoleSystem, Content: "be brief"},
			{Role: proto.RoleUser, Content: "hi\nthere"},
			{Role: proto.RoleTool, Content: "{}"},
			{Role: proto.RoleAssistant, Content: "hello"},
		})
		require.Equal(t, "> hi\n> there\n\nhello\n\n", tr.markdown(""))
	})

	t.Run("notes and pending", func(t *testing.T) {
		var tr transcript
		tr.add(entryNote, "Started a new conversation.")
		tr.add(entryAnswer, "   ")
		require.Equal(t, "*Started a new conversation.*\n\npartial", tr.markdown("partial"))
	})
}

func TestChatQuit(t *testing.T) {
	for _, line := range []string{"/exit", "/quit"} {
		t.Run(line, func(t *testing.T) {
			cmd := press(t, newTestChat(ChatOptions{}), line)
			require.NotNil(t, cmd)
			require.IsType(t, tea.QuitMsg{}, cmd())
		})
	}

	t.Run("ctrl+c while idle", func(t *testing.T) {
		_, cmd := newTestChat(ChatOptions{}).Update(tea.KeyMsg{Type: tea.KeyCtrlC})
		require.NotNil(t, cmd)
		require.IsType(t, tea.QuitMsg{}, cmd())
	})
}

func TestChatCtrlCWhileStreaming(t *testing.T) {
	c := newTestChat(ChatOptions{})
	c.state = chatStreamState
	c.pending.WriteString("half an answer")

	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.Nil(t, cmd)
	require.Equal(t, chatInputState, c.state)
	require.Zero(t, c.pending.Len())
	require.Contains(t, c.log.markdown(""), "half an answer")
}

func TestChatBlankInputIgnored(t *testing.T) {
	for _, line := range []string{"", "   "} {
		c := newTestChat(ChatOptions{})
		require.Nil(t, press(t, c, line))
		require.Equal(t, chatInputState, c.state)
	}
}

func TestChatLocalCommands(t *testing.T) {
	t.Run("help", func(t *testing.T) {
		c := newTestChat(ChatOptions{})
		require.Nil(t, press(t, c, "/help"))
		require.Contains(t, c.log.markdown(""), "/research <query>")
	})

	t.Run("unknown", func(t *testing.T) {
		c := newTestChat(ChatOptions{})
		require.Nil(t, press(t, c, "/frobnicate"))
		require.Contains(t, c.log.markdown(""), "Unknown command `/frobnicate`")
	})

	t.Run("clear keeps system prompt", func(t *testing.T) {
		c := newTestChat(ChatOptions{History: []proto.Message{
			{Role: proto.RoleSystem, Content: "be brief"},
			{Role: proto.RoleUser, Content: "hi"},
			{Role: proto.RoleAssistant, Content: "hello"},
		}})
		require.Nil(t, press(t, c, "/clear"))
		require.Equal(t, []proto.Message{{Role: proto.RoleSystem, Content: "be brief"}}, c.Messages())
		require.Equal(t, "*Started a new conversation.*\n\n", c.log.markdown(""))
	})

	t.Run("research without runner", func(t *testing.T) {
		c := newTestChat(ChatOptions{})
		require.Nil(t, press(t, c, "/research NVDA"))
		require.Contains(t, c.log.markdown(""), "Research is not available")
	})

	t.Run("research without query", func(t *testing.T) {
		c := newTestChat(ChatOptions{Research: fakeRunner{}})
		require.Nil(t, press(t, c, "/research"))
		require.Contains(t, c.log.markdown(""), "Usage: `/research <query>`")
	})
}

func TestChatSubmitStartsStream(t *testing.T) {
	c := newTestChat(ChatOptions{})
	cmd := press(t, c, "hello")
	require.NotNil(t, cmd)
	require.Equal(t, chatSubmitMsg{prompt: "hello"}, cmd())

	_, cmd = c.Update(chatSubmitMsg{prompt: "hello"})
	require.NotNil(t, cmd)
	require.Equal(t, chatStreamState, c.state)
	require.Contains(t, c.log.markdown(""), "> hello")
}

func TestChatStreamDone(t *testing.T) {
	var saved []proto.Message
	c := newTestChat(ChatOptions{Save: func(msgs []proto.Message) error {
		saved = msgs
		return nil
	}})
	c.state = chatStreamState
	c.pending.WriteString("hello")
	msgs := []proto.Message{
		{Role: proto.RoleUser, Content: "hi"},
		{Role: proto.RoleAssistant, Content: "hello"},
	}

	c.Update(chatDoneMsg{messages: msgs})
	require.Equal(t, chatInputState, c.state)
	require.Equal(t, msgs, c.Messages())
	require.Equal(t, msgs, saved)
	require.Zero(t, c.pending.Len())
}

func TestChatIgnoresLateStreamMessages(t *testing.T) {
	c := newTestChat(ChatOptions{})
	c.Update(chatDoneMsg{messages: []proto.Message{{Role: proto.RoleUser, Content: "late"}}})
	require.Empty(t, c.Messages())
}

func TestChatResearch(t *testing.T) {
	t.Run("report joins the conversation", func(t *testing.T) {
		var got []research.Report
		runner := fakeRunner{
			statuses: []research.Status{{Stage: research.StagePlan, Message: "Planning searches..."}},
			report:   research.Report{Query: "NVDA", Report: research.ReportData{MarkdownReport: "# NVDA\n\nBuy."}},
		}
		c := newTestChat(ChatOptions{
			Research: runner,
			OnReport: func(r research.Report) error {
				got = append(got, r)
				return nil
			},
		})

		drive(t, c, c.dispatch("/research NVDA"))
		require.Equal(t, chatInputState, c.state)
		require.Len(t, got, 1)
		require.Equal(t, "NVDA", got[0].Query)

		msgs := c.Messages()
		require.Len(t, msgs, 2)
		require.Equal(t, proto.RoleAssistant, msgs[1].Role)
		require.Contains(t, msgs[1].Content, "Buy.")
		require.Contains(t, c.log.markdown(""), "> /research NVDA")
	})

	t.Run("failure becomes a note", func(t *testing.T) {
		c := newTestChat(ChatOptions{Research: fakeRunner{err: errors.New("no results")}})
		drive(t, c, c.dispatch("/research NVDA"))
		require.Equal(t, chatInputState, c.state)
		require.Empty(t, c.Messages())
		require.Contains(t, c.log.markdown(""), "Research failed. no results")
	})
}

// drive feeds msg to the chat and follows the resulting research commands
// until the run is over.
func drive(t *testing.T, c *Chat, msg tea.Msg) {
	t.Helper()
	start, ok := msg.(researchStartMsg)
	require.True(t, ok, "got %T", msg)

	_, cmd := c.Update(start)
	require.Equal(t, chatResearchState, c.state)

	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok)
	go batch[0]() // the pipeline
	next := batch[1]
	deadline := time.After(5 * time.Second)
	for next != nil {
		ev := make(chan tea.Msg, 1)
		go func() { ev <- next() }()
		select {
		case m := <-ev:
			_, next = c.Update(m)
		case <-deadline:
			t.Fatal("research did not finish")
		}
	}
}

func TestChatWaitingStatus(t *testing.T) {
	c := newTestChat(ChatOptions{})
	now := time.Date(2026, time.February, 16, 12, 0, 0, 0, time.UTC)

	c.since = now.Add(-(1*time.Minute + 15*time.Second))
	require.Contains(t, c.waitingStatus(now), "Waiting for response... [01:15]")

	c.state = chatResearchState
	c.label = "Searching (2/5)"
	require.Contains(t, c.waitingStatus(now), "Researching: Searching (2/5) [01:15]")

	c.state = chatStreamState
	require.True(t, strings.Contains(c.View(), "Waiting for response..."))
}

func TestFormatElapsedClock(t *testing.T) {
	require.Equal(t, "00:05", formatElapsedClock(5*time.Second))
	require.Equal(t, "01:02:03", formatElapsedClock(time.Hour+2*time.Minute+3*time.Second))
}
