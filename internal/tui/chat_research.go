package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/research"
)

// beginResearch runs the pipeline for query in the background. Progress and
// the result arrive on c.events.
func (c *Chat) beginResearch(query string) tea.Cmd {
	c.log.add(entryUser, "/research "+query)
	c.state = chatResearchState
	c.since = time.Now()
	c.label = c.cfg.StatusText
	c.setAnimLabel(c.label)
	c.layout()
	c.render()

	ctx, cancel := context.WithCancel(c.ctx)
	c.cancelTurn = cancel
	events := make(chan tea.Msg)
	c.events = events
	run := func() tea.Msg {
		report, err := c.opts.Research.Run(ctx, query, func(s research.Status) {
			select {
			case events <- statusMsg(s):
			case <-ctx.Done():
			}
		})
		select {
		case events <- researchDoneMsg{report: report, err: err}:
		case <-c.ctx.Done():
		}
		return nil
	}
	return tea.Batch(run, nextFrom(events), c.waitingTick())
}

// chatEventMsg carries one event of a research run along with its channel,
// so events of a canceled run can be told apart and drained.
type chatEventMsg struct {
	events chan tea.Msg
	msg    tea.Msg
}

func nextFrom(events chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return chatEventMsg{events: events, msg: <-events}
	}
}

func (c *Chat) onResearchEvent(ev chatEventMsg) tea.Cmd {
	switch msg := ev.msg.(type) {
	case statusMsg:
		if ev.events == c.events {
			c.onResearchStatus(research.Status(msg))
		}
		return nextFrom(ev.events)
	case researchDoneMsg:
		if ev.events == c.events {
			c.onResearchDone(msg)
		}
	}
	return nil
}

func (c *Chat) onResearchStatus(s research.Status) {
	if s.Warning {
		c.log.add(entryNote, "Warning: "+s.Message)
		c.dirty = true
		c.render()
		return
	}
	c.label = s.Message
	c.setAnimLabel(s.Message)
}

// onResearchDone adds the report to the conversation so follow-up prompts
// can refer to it.
func (c *Chat) onResearchDone(msg researchDoneMsg) {
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
	if msg.err != nil {
		e := ResearchError(msg.err)
		c.log.add(entryNote, e.Reason+" "+e.Error())
		c.endTurn()
		return
	}

	md := msg.report.Markdown()
	c.history = append(c.history,
		proto.Message{Role: proto.RoleUser, Content: "Research this: " + msg.report.Query},
		proto.Message{Role: proto.RoleAssistant, Content: md},
	)
	c.pending.WriteString(md)
	if c.opts.OnReport != nil {
		if err := c.opts.OnReport(msg.report); err != nil {
			c.warn("failed to save report: " + err.Error())
		}
	}
	c.endTurn()
}

func (c *Chat) setAnimLabel(label string) {
	if a, ok := c.anim.(*anim); ok {
		a.SetLabel(label)
	}
}
