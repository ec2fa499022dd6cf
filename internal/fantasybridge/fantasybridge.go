package fantasybridge

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"charm.land/fantasy"
	"github.com/charmbracelet/x/exp/ordered"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/stream"
)

var _ stream.Client = &Client{}

const (
	apiAnthropic  = "anthropic"
	apiGoogle     = "google"
	apiOpenAI     = "openai"
	apiAzure      = "azure"
	apiAzureAD    = "azure-ad"
	apiOpenRouter = "openrouter"
	apiVercel     = "vercel"
	apiBedrock    = "bedrock"
)

const partBuffer = 64

// Config is the resolved provider configuration for one client.
type Config struct {
	API            string
	BaseURL        string
	APIKey         string
	HTTPClient     *http.Client
	ThinkingBudget int
}

// Client serves concurrent requests from one provider. Every Request gets
// its own Stream.
type Client struct {
	provider fantasy.Provider
	config   Config
}

// New resolves the provider for cfg.API.
func New(cfg Config) (*Client, error) {
	provider, err := newProvider(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{provider: provider, config: cfg}, nil
}

// Request starts the first model step. A failure to start is reported by
// the returned stream's Err.
func (c *Client) Request(ctx context.Context, request proto.Request) stream.Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &Stream{
		ctx:      ctx,
		cancel:   cancel,
		provider: c.provider,
		request:  request,
		messages: request.Messages,
		api:      c.config.API,
		config:   c.config,
	}
	s.err = s.begin()
	return s
}

// step is the assistant turn being streamed: its text and the tool calls
// the model asked for.
type step struct {
	text  strings.Builder
	calls []proto.ToolCall
	seen  map[string]bool
	done  bool
}

func (st *step) addCall(part fantasy.StreamPart) {
	if part.ProviderExecuted || st.seen[part.ID] {
		return
	}
	if st.seen == nil {
		st.seen = map[string]bool{}
	}
	st.seen[part.ID] = true
	st.calls = append(st.calls, proto.ToolCall{
		ID:       part.ID,
		Function: proto.Function{Name: part.ToolCallName, Arguments: []byte(part.ToolCallInput)},
	})
}

// message is the assistant turn, or false when the model said nothing.
func (st *step) message() (proto.Message, bool) {
	msg := proto.Message{
		Role:      proto.RoleAssistant,
		Content:   st.text.String(),
		ToolCalls: append([]proto.ToolCall(nil), st.calls...),
	}
	return msg, msg.Content != "" || len(msg.ToolCalls) > 0
}

// warnings collects provider warnings, each reported once per stream.
type warnings struct {
	seen    map[string]bool
	pending []string
}

func (w *warnings) add(cw fantasy.CallWarning) {
	text := ordered.First(
		strings.TrimSpace(cw.Message),
		strings.TrimSpace(cw.Details),
		settingText(cw.Setting),
		"provider warning",
	)
	key := string(cw.Type) + ":" + text
	if w.seen[key] {
		return
	}
	if w.seen == nil {
		w.seen = map[string]bool{}
	}
	w.seen[key] = true
	w.pending = append(w.pending, text)
}

func (w *warnings) drain() []string {
	out := w.pending
	w.pending = nil
	return out
}

func settingText(setting string) string {
	if setting == "" {
		return ""
	}
	return "unsupported setting: " + setting
}

// Stream runs a request as a series of model steps. A step ends when the
// provider closes its part sequence; the next call to Next after that
// starts a new step with whatever tool results were appended meanwhile.
type Stream struct {
	ctx      context.Context
	cancel   context.CancelFunc
	provider fantasy.Provider
	request  proto.Request
	api      string
	config   Config

	mu       sync.Mutex
	messages []proto.Message
	parts    chan fantasy.StreamPart
	last     fantasy.StreamPart
	err      error
	step     step
	warnings warnings
	usage    proto.Usage
}

func (s *Stream) Next() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return false
	}
	if s.step.done {
		if s.err = s.begin(); s.err != nil {
			return false
		}
	}

	part, ok := <-s.parts
	if !ok {
		if msg, said := s.step.message(); said {
			s.messages = append(s.messages, msg)
		}
		s.step.done = true
		return false
	}
	s.last = part
	s.consumePart(part)
	return true
}

// Current returns the text delta of the last part. Every other part type
// yields stream.ErrNoContent.
func (s *Stream) Current() (proto.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.last.Type == fantasy.StreamPartTypeTextDelta {
		return proto.Chunk{Content: s.last.Delta}, nil
	}
	if s.last.Type == fantasy.StreamPartTypeError && s.last.Error != nil {
		s.err = s.last.Error
		return proto.Chunk{}, s.last.Error
	}
	return proto.Chunk{}, stream.ErrNoContent
}

func (s *Stream) Close() error {
	s.cancel()
	return nil
}

func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Stream) Messages() []proto.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages
}

// CallTools runs the tool calls of the finished step and appends their
// results to the conversation.
func (s *Stream) CallTools() []proto.ToolCallStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]proto.ToolCallStatus, 0, len(s.step.calls))
	for _, call := range s.step.calls {
		msg, status := stream.CallTool(call.ID, call.Function.Name, call.Function.Arguments, s.request.ToolCaller)
		s.messages = append(s.messages, msg)
		statuses = append(statuses, status)
	}
	s.step.calls, s.step.seen = nil, nil
	return statuses
}

// Usage is the token count summed over every step.
func (s *Stream) Usage() proto.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

func (s *Stream) DrainWarnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.warnings.drain()
}

func (s *Stream) begin() error {
	model, err := s.provider.LanguageModel(s.ctx, s.request.Model)
	if err != nil {
		return fmt.Errorf("fantasy language model: %w", err)
	}
	seq, err := model.Stream(s.ctx, s.buildCall())
	if err != nil {
		return fmt.Errorf("fantasy stream: %w", err)
	}

	s.step = step{}
	s.parts = make(chan fantasy.StreamPart, partBuffer)
	go func(parts chan<- fantasy.StreamPart) {
		defer close(parts)
		for part := range seq {
			select {
			case <-s.ctx.Done():
				return
			case parts <- part:
			}
		}
	}(s.parts)
	return nil
}

func (s *Stream) buildCall() fantasy.Call {
	call := fantasy.Call{
		Prompt:          toFantasyPrompt(s.messages),
		MaxOutputTokens: s.request.MaxTokens,
		Temperature:     s.request.Temperature,
		TopP:            s.request.TopP,
		TopK:            s.request.TopK,
		Tools:           fromMCPTools(s.request.Tools),
		ToolChoice:      toolChoiceForRequest(s.request),
		ProviderOptions: fantasy.ProviderOptions{},
	}
	applyProviderOptions(&call, s.api, s.config, s.request)
	return call
}

//nolint:exhaustive
func (s *Stream) consumePart(part fantasy.StreamPart) {
	switch part.Type {
	case fantasy.StreamPartTypeTextDelta:
		s.step.text.WriteString(part.Delta)
	case fantasy.StreamPartTypeToolCall:
		s.step.addCall(part)
	case fantasy.StreamPartTypeError:
		s.err = part.Error
	case fantasy.StreamPartTypeWarnings:
		for _, w := range part.Warnings {
			s.warnings.add(w)
		}
	case fantasy.StreamPartTypeFinish:
		s.usage.Add(proto.Usage{InputTokens: part.Usage.InputTokens, OutputTokens: part.Usage.OutputTokens})
	}
}
