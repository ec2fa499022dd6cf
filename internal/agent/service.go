package agent

import (
	"context"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strings"

	"github.com/charmbracelet/x/exp/ordered"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/fantasybridge"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/mcp"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/storage/cache"
	"github.com/dotcommander/deepresearch/internal/stream"
)

// ClientFactory builds a streaming client for a resolved provider config.
type ClientFactory func(fantasybridge.Config) (stream.Client, error)

// Service owns model resolution and request building for both the chat
// view and the research pipeline.
type Service struct {
	cfg           *config.Config
	cache         *cache.Conversations
	mcp           *mcp.Service
	clientFactory ClientFactory
}

// New creates an agent service. An optional ClientFactory replaces the
// fantasy bridge.
func New(cfg *config.Config, cache *cache.Conversations, mcpSvc *mcp.Service, factory ...ClientFactory) *Service {
	svc := &Service{cfg: cfg, cache: cache, mcp: mcpSvc, clientFactory: NewFantasyClient}
	if svc.mcp == nil {
		svc.mcp = mcp.New(cfg)
	}
	if len(factory) > 0 && factory[0] != nil {
		svc.clientFactory = factory[0]
	}
	return svc
}

// StreamStart is a running stream and what it was started with.
type StreamStart struct {
	Stream   stream.Stream
	Model    config.Model
	Messages []proto.Message
}

// Stream starts a fresh conversation with prompt.
func (s *Service) Stream(ctx context.Context, prompt string) (StreamStart, error) {
	return s.StreamContinue(ctx, nil, prompt)
}

// StreamContinue appends prompt to history and streams the reply. An empty
// history gets the format, role and cached messages first. MCP tools are
// offered on a terminal or when explicitly allowed.
func (s *Service) StreamContinue(ctx context.Context, history []proto.Message, prompt string) (StreamStart, error) {
	api, mod, err := resolveModel(s.cfg.APIs, s.cfg.API, s.cfg.Model)
	if err != nil {
		return StreamStart{}, err
	}
	s.cfg.API, s.cfg.Model = mod.API, mod.Name
	mod.MaxChars = ordered.First(mod.MaxChars, s.cfg.MaxInputChars)

	client, err := s.client(ctx, api, mod, nil)
	if err != nil {
		return StreamStart{}, err
	}

	messages := slices.Clone(history)
	if len(messages) == 0 {
		if messages, err = s.openingMessages(ctx); err != nil {
			return StreamStart{}, err
		}
		if s.cfg.Prefix != "" {
			prompt = strings.TrimSpace(s.cfg.Prefix + "\n\n" + prompt)
		}
	}
	messages = append(messages, proto.Message{Role: proto.RoleUser, Content: s.limitPrompt(prompt, mod)})

	request := s.baseRequest(api, mod, messages)
	if s.cfg.MCPAllowNonTTY || present.IsInputTTY() {
		if err := s.offerTools(ctx, &request); err != nil {
			return StreamStart{}, err
		}
	}

	logging.L.Debug("stream start", "api", mod.API, "model", mod.Name, "messages", len(messages), "tools", len(request.Tools))
	return StreamStart{Stream: client.Request(ctx, request), Model: mod, Messages: messages}, nil
}

func (s *Service) offerTools(ctx context.Context, request *proto.Request) error {
	timeout := s.cfg.MCPTimeout
	listCtx, cancel := context.WithTimeout(ctx, timeout)
	tools, err := s.mcp.Tools(listCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("mcp tools: %w", err)
	}
	request.Tools = tools
	request.ToolCaller = func(name string, data []byte) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return s.mcp.CallTool(callCtx, name, data)
	}
	return nil
}

// client builds a provider client. A non-nil httpClient replaces the one
// derived from the proxy settings.
func (s *Service) client(ctx context.Context, api config.API, mod config.Model, httpClient *http.Client) (stream.Client, error) {
	pc, err := providerConfig(ctx, api, mod)
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		if httpClient, err = proxyClient(s.cfg.HTTPProxy); err != nil {
			return nil, err
		}
	}
	pc.HTTPClient = httpClient
	return s.clientFactory(pc)
}

// baseRequest builds the request from the settings. It only reads s.cfg,
// so research stages may call it from several goroutines.
func (s *Service) baseRequest(api config.API, mod config.Model, messages []proto.Message) proto.Request {
	cfg := s.cfg
	request := proto.Request{
		Messages:    messages,
		API:         mod.API,
		Model:       mod.Name,
		User:        requestUser(api, mod, cfg.User),
		Temperature: nonNegative(cfg.Temperature),
		TopP:        nonNegative(cfg.TopP),
		TopK:        nonNegative(cfg.TopK),
		Stop:        cfg.Stop,
	}
	// o1 models reject max_tokens.
	if cfg.MaxTokens > 0 && !strings.HasPrefix(mod.Name, "o1") {
		request.MaxTokens = &cfg.MaxTokens
	}
	if cfg.MaxCompletionTokens > 0 {
		request.MaxCompletionTokens = &cfg.MaxCompletionTokens
	}
	return request
}

// requestUser is the end user sent to the provider. Azure deployments may
// name their own.
func requestUser(api config.API, mod config.Model, user string) string {
	if mod.API == "azure" || mod.API == "azure-ad" {
		return ordered.First(api.User, user)
	}
	return user
}

func nonNegative[T int64 | float64](v T) *T {
	if v < 0 {
		return nil
	}
	return &v
}

// limitPrompt cuts prompt to the model's max-input-chars unless limits are
// off. A cut is logged with how much was dropped.
func (s *Service) limitPrompt(prompt string, mod config.Model) string {
	if s.cfg.NoLimit || mod.MaxChars <= 0 || int64(len(prompt)) <= mod.MaxChars {
		return prompt
	}
	logging.L.Warn("prompt truncated to max-input-chars",
		"model", mod.Name, "kept", mod.MaxChars, "dropped", int64(len(prompt))-mod.MaxChars)
	return prompt[:mod.MaxChars]
}

// openingMessages are the system messages of a new conversation, followed
// by the conversation being continued when one was requested.
func (s *Service) openingMessages(ctx context.Context) ([]proto.Message, error) {
	cfg := s.cfg
	var messages []proto.Message
	system := func(content string) {
		messages = append(messages, proto.Message{Role: proto.RoleSystem, Content: content})
	}

	if txt := cfg.FormatText[cfg.FormatAs]; cfg.Format && txt != "" {
		system(txt)
	}
	if cfg.Role != "" {
		setup, ok := cfg.Roles[cfg.Role]
		if !ok {
			return nil, errs.Wrap(fmt.Errorf("role %q does not exist", cfg.Role), "Could not use role")
		}
		for _, msg := range setup {
			content, err := config.LoadMsg(ctx, msg)
			if err != nil {
				return nil, errs.Wrap(err, "Could not use role")
			}
			system(content)
		}
	}

	if cfg.NoCache || cfg.CacheReadFromID == "" {
		return messages, nil
	}
	if s.cache == nil {
		return nil, errs.Error{Reason: "Cache is not available"}
	}
	if err := s.cache.Read(cfg.CacheReadFromID, &messages); err != nil {
		return nil, errs.Wrap(err, "There was a problem reading the cache. Use --no-cache / NO_CACHE to disable it.")
	}
	return messages, nil
}

// resolveModel finds model (a name or alias) under the named API, or under
// any API when apiName is empty.
func resolveModel(apis config.APIs, apiName, model string) (config.API, config.Model, error) {
	for _, api := range apis {
		if apiName != "" && api.Name != apiName {
			continue
		}
		if mod, ok := findModel(api, model); ok {
			return api, mod, nil
		}
		if apiName != "" {
			return config.API{}, config.Model{}, errs.Wrapf(
				errs.UserErrorf("Available models are: %s", strings.Join(slices.Sorted(maps.Keys(api.Models)), ", ")),
				"The API endpoint %s does not contain the model %s", apiName, model,
			)
		}
	}
	return config.API{}, config.Model{}, errs.Wrapf(
		errs.UserErrorf("Please specify an API endpoint with --api or configure the model in the settings: deepresearch config edit"),
		"Model %s is not in the settings file.", model,
	)
}

func findModel(api config.API, model string) (config.Model, bool) {
	if mod, ok := api.Models[model]; ok {
		mod.Name, mod.API = model, api.Name
		return mod, true
	}
	for name, mod := range api.Models {
		if name == model || slices.Contains(mod.Aliases, model) {
			mod.Name, mod.API = name, api.Name
			return mod, true
		}
	}
	return config.Model{}, false
}
