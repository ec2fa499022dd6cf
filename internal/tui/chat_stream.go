package tui

import (
	"context"
	"errors"
	"time"

	"charm.land/fantasy"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/stream"
)

// beginTurn switches to streaming and starts the request for prompt.
func (c *Chat) beginTurn(prompt string) tea.Cmd {
	c.pending.Reset()
	c.since = time.Now()
	c.state = chatStreamState
	c.setAnimLabel(c.cfg.StatusText)
	c.layout()
	c.render()
	return tea.Batch(c.startStream(prompt), c.waitingTick())
}

func (c *Chat) startStream(prompt string) tea.Cmd {
	return func() tea.Msg {
		if c.opts.Agent == nil {
			return errs.Error{Reason: "Agent is not available"}
		}
		c.stopTurn()

		ctx := c.ctx
		if c.cfg.RequestTimeout > 0 {
			ctx, c.cancelTurn = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		}
		res, err := c.opts.Agent.StreamContinue(ctx, c.history, prompt)
		if err != nil {
			c.stopTurn()
			return asError(err)
		}
		c.active = res.Stream

		if len(c.cfg.Stop) > 0 && !c.stopWarned {
			c.warn("stop sequences are ignored in chat.")
			c.stopWarned = true
		}
		return c.receive(chatChunkMsg{
			stream: res.Stream,
			onErr:  func(err error) tea.Msg { return c.streamFailed(err, prompt) },
		})()
	}
}

func (c *Chat) onChunk(msg chatChunkMsg) tea.Cmd {
	if msg.stream == nil {
		return nil
	}
	var cmds []tea.Cmd
	if msg.content != "" {
		c.since = time.Time{}
		c.pending.WriteString(msg.content)
		c.layout()
		cmds = append(cmds, c.scheduleRender())
	}
	cmds = append(cmds, c.receive(chatChunkMsg{stream: msg.stream, onErr: msg.onErr}))
	return tea.Batch(cmds...)
}

// receive reads the next chunk. When a step ends it runs any requested tools
// and keeps reading, so tool results show up in the answer as they happen.
func (c *Chat) receive(msg chatChunkMsg) tea.Cmd {
	return func() tea.Msg {
		s := msg.stream
		if s.Next() {
			chunk, err := s.Current()
			if err != nil && !errors.Is(err, stream.ErrNoContent) {
				_ = s.Close()
				return msg.onErr(err)
			}
			return chatChunkMsg{content: chunk.Content, stream: s, onErr: msg.onErr}
		}
		if err := s.Err(); err != nil {
			c.stopTurn()
			return msg.onErr(err)
		}
		for _, w := range s.DrainWarnings() {
			c.warn(w)
		}
		if calls := s.CallTools(); len(calls) > 0 {
			next := chatChunkMsg{stream: s, onErr: msg.onErr}
			for _, call := range calls {
				next.content += call.String()
			}
			return next
		}
		messages := s.Messages()
		c.stopTurn()
		return chatDoneMsg{messages: messages}
	}
}

// streamFailed retries retryable provider errors up to max-retries, waiting
// as the provider asks.
func (c *Chat) streamFailed(err error, prompt string) tea.Msg {
	var perr *fantasy.ProviderError
	if errors.As(err, &perr) && perr.IsRetryable() {
		c.retries++
		if c.retries < c.cfg.MaxRetries {
			c.backoff(perr)
			return chatRetryMsg{prompt: prompt}
		}
	}
	return asError(err)
}

func (c *Chat) backoff(perr *fantasy.ProviderError) {
	opts := fantasy.DefaultRetryOptions()
	opts.MaxRetries = 1
	opts.InitialDelayIn = 100 * time.Millisecond //nolint:mnd
	wait := fantasy.RetryWithExponentialBackoffRespectingRetryHeaders[struct{}](opts)
	_, _ = wait(c.ctx, func() (struct{}, error) { return struct{}{}, perr })
}

// stopTurn closes the active stream and cancels any in-flight work.
func (c *Chat) stopTurn() {
	if c.active != nil {
		_ = c.active.Close()
		c.active = nil
	}
	if c.cancelTurn != nil {
		c.cancelTurn()
		c.cancelTurn = nil
	}
}

func asError(err error) errs.Error {
	return errs.Reasoned(err, "")
}
