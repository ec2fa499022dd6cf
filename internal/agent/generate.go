package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"charm.land/fantasy"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/stream"
)

// Completion is a single non-interactive request. Empty API and Model fall
// back to the configured defaults.
type Completion struct {
	API         string
	Model       string
	System      string
	Prompt      string
	MaxTokens   int64
	Temperature *float64
	// HTTPClient overrides the provider's HTTP client for this call.
	HTTPClient *http.Client
}

// Result is the drained output of a Completion.
type Result struct {
	Text  string
	Usage proto.Usage
	Model config.Model
}

// Generate runs c to completion without tools, retrying provider errors the
// same way the interactive views do.
func (s *Service) Generate(ctx context.Context, c Completion) (Result, error) {
	api, mod, err := s.lookupModel(c.API, c.Model)
	if err != nil {
		return Result{}, err
	}

	messages := make([]proto.Message, 0, 2)
	if c.System != "" {
		messages = append(messages, proto.Message{Role: proto.RoleSystem, Content: c.System})
	}
	prompt := s.limitPrompt(c.Prompt, mod)
	messages = append(messages, proto.Message{Role: proto.RoleUser, Content: prompt})

	log := logging.With("api", mod.API, "model", mod.Name)
	maxAttempts := max(s.cfg.MaxRetries, 1)
	for attempt := 1; ; attempt++ {
		client, err := s.client(ctx, api, mod, c.HTTPClient)
		if err != nil {
			return Result{}, err
		}
		request := s.baseRequest(api, mod, messages)
		if c.MaxTokens > 0 {
			request.MaxTokens = &c.MaxTokens
		}
		if c.Temperature != nil {
			request.Temperature = c.Temperature
		}

		start := time.Now()
		text, usage, err := drain(client.Request(ctx, request))
		if err == nil {
			log.Debug("completion done", "attempt", attempt, "took", time.Since(start), "input_tokens", usage.InputTokens, "output_tokens", usage.OutputTokens)
			return Result{Text: text, Usage: usage, Model: mod}, nil
		}
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("generate: %w", ctx.Err())
		}

		plan := s.planRetry(err, mod, prompt)
		if !plan.Retry || attempt >= maxAttempts {
			return Result{}, plan.Err
		}
		log.Warn("completion failed, retrying", "attempt", attempt, "err", err)
		if plan.Model != "" {
			mod.Name = plan.Model
		}
		if plan.Prompt != "" && plan.Prompt != prompt {
			prompt = plan.Prompt
			messages[len(messages)-1].Content = prompt
		}
		waitRetryDelay(ctx, err)
	}
}

// lookupModel resolves a model like resolveModel, but accepts models that
// are not listed under a known API so research stages can name any model
// the provider serves.
func (s *Service) lookupModel(apiName, model string) (config.API, config.Model, error) {
	if apiName == "" {
		apiName = s.cfg.API
	}
	if model == "" {
		model = s.cfg.Model
	}
	api, mod, err := resolveModel(s.cfg.APIs, apiName, model)
	if err == nil {
		return api, mod, nil
	}
	known, ok := s.cfg.APIs.Find(apiName)
	if !ok {
		if apiName != "openai" {
			return config.API{}, config.Model{}, err
		}
		known = config.API{Name: "openai", APIKeyEnv: "OPENAI_API_KEY"}
	}
	return known, config.Model{Name: model, API: known.Name}, nil
}

func drain(st stream.Stream) (string, proto.Usage, error) {
	defer func() { _ = st.Close() }()

	var sb strings.Builder
	for {
		for st.Next() {
			chunk, err := st.Current()
			if err != nil && !errors.Is(err, stream.ErrNoContent) {
				return "", st.Usage(), err
			}
			sb.WriteString(chunk.Content)
		}
		if err := st.Err(); err != nil {
			return "", st.Usage(), err
		}
		if len(st.CallTools()) == 0 {
			break
		}
	}
	for _, w := range st.DrainWarnings() {
		logging.L.Warn("provider warning", "warning", w)
	}
	return sb.String(), st.Usage(), nil
}

func waitRetryDelay(ctx context.Context, retryErr error) {
	var providerErr *fantasy.ProviderError
	if !errors.As(retryErr, &providerErr) {
		return
	}
	opts := fantasy.DefaultRetryOptions()
	opts.MaxRetries = 1
	opts.InitialDelayIn = 100 * time.Millisecond
	retryFn := fantasy.RetryWithExponentialBackoffRespectingRetryHeaders[struct{}](opts)
	_, _ = retryFn(ctx, func() (struct{}, error) {
		return struct{}{}, providerErr
	})
}

// IsAuthError reports whether err is a provider rejection of the API key.
func IsAuthError(err error) bool {
	var providerErr *fantasy.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.StatusCode == http.StatusUnauthorized || providerErr.StatusCode == http.StatusForbidden
	}
	e, ok := errs.As(err)
	return ok && strings.Contains(strings.ToLower(e.Reason), "authentication")
}
