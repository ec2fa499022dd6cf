//go:build !deepresearch_small

package fantasybridge

import (
	"charm.land/fantasy"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"

	"github.com/dotcommander/deepresearch/internal/proto"
)

// usesOpenAIOptions reports whether api is served by the native OpenAI
// provider, which takes user and max_completion_tokens as provider options.
func usesOpenAIOptions(api string) bool {
	switch api {
	case apiOpenAI, apiAzure, apiAzureAD:
		return true
	}
	return false
}

// dropsUser lists providers with no end-user field.
func dropsUser(api string) bool {
	switch api {
	case apiAnthropic, apiGoogle, apiOpenRouter, apiVercel, apiBedrock:
		return true
	}
	return false
}

func applyProviderOptions(call *fantasy.Call, api string, cfg Config, req proto.Request) {
	if usesOpenAIOptions(api) {
		opts := &fopenai.ProviderOptions{MaxCompletionTokens: req.MaxCompletionTokens}
		if req.User != "" {
			opts.User = fantasy.Opt(req.User)
		}
		if opts.User != nil || opts.MaxCompletionTokens != nil {
			call.ProviderOptions[fopenai.Name] = opts
		}
	} else if req.User != "" && !dropsUser(api) {
		call.ProviderOptions[fopenaicompat.Name] = &fopenaicompat.ProviderOptions{User: fantasy.Opt(req.User)}
	}

	if api == apiGoogle && cfg.ThinkingBudget > 0 {
		call.ProviderOptions[fgoogle.Name] = &fgoogle.ProviderOptions{
			ThinkingConfig: &fgoogle.ThinkingConfig{ThinkingBudget: fantasy.Opt(int64(cfg.ThinkingBudget))},
		}
	}
}
