package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/deepresearch/internal/agent"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/research"
	"github.com/dotcommander/deepresearch/internal/stream"
)

type chatState int

const (
	chatInputState chatState = iota
	chatStreamState
	chatResearchState
)

// SaveFn persists conversation messages after each turn.
type SaveFn func([]proto.Message) error

// ChatOptions holds the collaborators of a Chat. Only Agent is required.
type ChatOptions struct {
	Agent   *agent.Service
	History []proto.Message
	Save    SaveFn
	// Research enables /research.
	Research Runner
	// OnReport receives every report produced by /research.
	OnReport func(research.Report) error
	// Prompt is submitted as soon as the chat starts.
	Prompt string
}

// Chat is the Bubble Tea model for the interactive REPL.
type Chat struct {
	Error *errs.Error

	state    chatState
	input    textinput.Model
	viewport viewport.Model
	glam     *glamour.TermRenderer
	renderer *lipgloss.Renderer
	styles   present.Styles
	anim     tea.Model

	opts    ChatOptions
	cfg     *config.Config
	ctx     context.Context
	history []proto.Message
	log     transcript
	pending strings.Builder

	active     stream.Stream
	cancelTurn context.CancelFunc
	events     chan tea.Msg

	width, height int

	renderQueued bool
	dirty        bool
	stopWarned   bool
	retries      int
	since        time.Time
	label        string
}

// NewChat creates the chat model.
func NewChat(ctx context.Context, r *lipgloss.Renderer, cfg *config.Config, opts ChatOptions) *Chat {
	gr, _ := glamour.NewTermRenderer(
		glamour.WithEnvironmentConfig(),
		glamour.WithWordWrap(cfg.WordWrap),
	)

	in := textinput.New()
	in.Prompt = "you> "
	in.Placeholder = "ask a question, or /research <query>"
	in.CharLimit = 0
	in.Focus()

	return &Chat{
		input:    in,
		viewport: viewport.New(0, 0),
		glam:     gr,
		renderer: r,
		styles:   present.MakeStyles(r),
		opts:     opts,
		cfg:      cfg,
		ctx:      ctx,
		history:  opts.History,
		log:      transcriptFrom(opts.History),
		dirty:    true,
	}
}

type (
	chatSubmitMsg struct{ prompt string }
	chatRetryMsg  struct{ prompt string }

	chatChunkMsg struct {
		content string
		stream  stream.Stream
		onErr   func(error) tea.Msg
	}
	chatDoneMsg struct{ messages []proto.Message }

	chatRenderMsg  struct{}
	chatWaitingMsg struct{}
)

// Init implements tea.Model.
func (c *Chat) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if !c.cfg.Quiet {
		c.anim = newAnim(c.cfg.Fanciness, c.cfg.StatusText, c.renderer, c.styles)
		cmds = append(cmds, c.anim.Init())
	}
	if p := strings.TrimSpace(c.opts.Prompt); p != "" {
		cmds = append(cmds, func() tea.Msg { return c.dispatch(p) })
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (c *Chat) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width, c.height = msg.Width, msg.Height
		c.layout()
		c.render()
		return c, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if c.state == chatInputState {
				return c, tea.Quit
			}
			c.interrupt()
			return c, nil
		case "enter":
			if c.state != chatInputState {
				return c, nil
			}
			line := strings.TrimSpace(c.input.Value())
			if line == "" {
				return c, nil
			}
			c.input.SetValue("")
			next := c.dispatch(line)
			if _, ok := next.(tea.QuitMsg); ok {
				return c, tea.Quit
			}
			if next == nil {
				return c, nil
			}
			return c, func() tea.Msg { return next }
		}

	case chatSubmitMsg:
		c.log.add(entryUser, msg.prompt)
		c.retries = 0
		return c, c.beginTurn(msg.prompt)

	case chatRetryMsg:
		return c, c.beginTurn(msg.prompt)

	case chatChunkMsg:
		if c.state != chatStreamState {
			return c, nil
		}
		return c, c.onChunk(msg)

	case chatDoneMsg:
		if c.state != chatStreamState {
			return c, nil
		}
		c.history = msg.messages
		c.endTurn()
		return c, nil

	case researchStartMsg:
		return c, c.beginResearch(msg.query)

	case chatEventMsg:
		return c, c.onResearchEvent(msg)

	case chatWaitingMsg:
		if c.state != chatInputState && c.pending.Len() == 0 {
			return c, c.waitingTick()
		}
		return c, nil

	case chatRenderMsg:
		c.renderQueued = false
		if c.dirty {
			c.render()
		}
		return c, nil

	case errs.Error:
		c.Error = &msg
		return c, tea.Quit

	case error:
		c.Error = &errs.Error{Err: msg}
		return c, tea.Quit
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	if c.state == chatInputState {
		c.input, cmd = c.input.Update(msg)
		cmds = append(cmds, cmd)
	} else if c.anim != nil {
		c.anim, cmd = c.anim.Update(msg)
		cmds = append(cmds, cmd)
	}
	c.viewport, cmd = c.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return c, tea.Batch(cmds...)
}

type researchStartMsg struct{ query string }

// dispatch turns a line of input into the message that handles it. A nil
// result means the line was handled in place.
func (c *Chat) dispatch(line string) tea.Msg {
	cmd := parseCommand(line)
	switch cmd.kind {
	case cmdQuit:
		return tea.QuitMsg{}
	case cmdHelp:
		c.note(chatHelp)
	case cmdClear:
		c.clear()
	case cmdUnknown:
		c.note(fmt.Sprintf("Unknown command `/%s`. Type /help for the list.", cmd.arg))
	case cmdResearch:
		switch {
		case c.opts.Research == nil:
			c.note("Research is not available in this session.")
		case cmd.arg == "":
			c.note("Usage: `/research <query>`")
		default:
			return researchStartMsg{query: cmd.arg}
		}
	default:
		return chatSubmitMsg{prompt: cmd.arg}
	}
	return nil
}

func (c *Chat) note(text string) {
	c.log.add(entryNote, text)
	c.dirty = true
	c.render()
}

// clear drops the conversation but keeps the system prompt.
func (c *Chat) clear() {
	var kept []proto.Message
	for _, m := range c.history {
		if m.Role == proto.RoleSystem {
			kept = append(kept, m)
		}
	}
	c.history = kept
	c.log.reset()
	c.viewport.SetContent("")
	c.note("Started a new conversation.")
}

// interrupt stops the running turn or research run and returns to input.
func (c *Chat) interrupt() {
	c.stopTurn()
	if c.state == chatResearchState {
		c.note("Research canceled.")
	}
	c.endTurn()
}

// endTurn moves the streamed answer into the transcript and saves.
func (c *Chat) endTurn() {
	if c.pending.Len() > 0 {
		c.log.add(entryAnswer, c.pending.String())
		c.pending.Reset()
	}
	c.since = time.Time{}
	c.state = chatInputState
	c.events = nil
	c.dirty = true
	c.layout()
	c.render()
	c.save()
}

func (c *Chat) save() {
	if c.opts.Save == nil || len(c.history) == 0 {
		return
	}
	if err := c.opts.Save(c.history); err != nil {
		c.warn("failed to save conversation: " + err.Error())
	}
}

func (c *Chat) warn(text string) {
	if !c.cfg.Quiet {
		fmt.Fprintln(os.Stderr, c.styles.Comment.Render("Warning: "+text))
	}
}

// Messages returns the conversation history.
func (c *Chat) Messages() []proto.Message {
	return c.history
}

// View implements tea.Model.
func (c *Chat) View() string {
	if c.width == 0 || c.height == 0 {
		return ""
	}
	divider := c.styles.Comment.Render(strings.Repeat("─", max(c.width, 1)))
	parts := []string{c.viewport.View(), divider}
	if c.waiting() {
		parts = append(parts, c.waitingStatus(time.Now()))
		if c.anim != nil {
			parts = append(parts, c.anim.View())
		}
	} else {
		parts = append(parts, c.input.View())
	}
	return strings.Join(parts, "\n")
}

// waiting is true while work is in flight and nothing has streamed yet.
func (c *Chat) waiting() bool {
	return c.state != chatInputState && c.pending.Len() == 0
}

func (c *Chat) waitingStatus(now time.Time) string {
	label := "Waiting for response..."
	if c.state == chatResearchState {
		label = "Researching: " + c.label
	}
	if !c.since.IsZero() {
		label += " [" + formatElapsedClock(max(now.Sub(c.since), 0)) + "]"
	}
	return c.styles.Comment.Render(label)
}

func (c *Chat) render() {
	md := c.log.markdown(c.pending.String())
	if strings.TrimSpace(md) == "" {
		return
	}
	out, err := c.glam.Render(md)
	if err != nil {
		out = md
	}
	out = strings.TrimRightFunc(out, unicode.IsSpace) + "\n"

	atBottom := c.viewport.AtBottom() || c.viewport.ScrollPercent() >= 1
	c.viewport.SetContent(c.renderer.NewStyle().MaxWidth(c.width).Render(out))
	if atBottom {
		c.viewport.GotoBottom()
	}
	c.dirty = false
}

func (c *Chat) scheduleRender() tea.Cmd {
	c.dirty = true
	if c.renderQueued {
		return nil
	}
	c.renderQueued = true
	return tea.Tick(33*time.Millisecond, func(time.Time) tea.Msg { //nolint:mnd
		return chatRenderMsg{}
	})
}

func (c *Chat) waitingTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg { //nolint:mnd
		return chatWaitingMsg{}
	})
}

// layout sizes the viewport above the footer.
func (c *Chat) layout() {
	footer := 2
	if c.waiting() && c.anim != nil {
		footer = 3
	}
	if c.width > 0 {
		c.viewport.Width = c.width
	}
	c.viewport.Height = max(c.height-footer, 1)
}

func formatElapsedClock(d time.Duration) string {
	secs := int(d / time.Second)
	h, m, s := secs/3600, secs%3600/60, secs%60 //nolint:mnd
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
