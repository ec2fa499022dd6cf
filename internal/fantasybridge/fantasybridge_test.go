package fantasybridge

import (
	"testing"

	"charm.land/fantasy"
	fgoogle "charm.land/fantasy/providers/google"
	fopenai "charm.land/fantasy/providers/openai"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/proto"
)

func TestBuildCallProviderOptions(t *testing.T) {
	tokens := int64(321)

	t.Run("google thinking budget", func(t *testing.T) {
		call := (&Stream{api: "google", config: Config{ThinkingBudget: 256}}).buildCall()
		opts, ok := call.ProviderOptions[fgoogle.Name].(*fgoogle.ProviderOptions)
		require.True(t, ok)
		require.NotNil(t, opts.ThinkingConfig)
		require.EqualValues(t, 256, *opts.ThinkingConfig.ThinkingBudget)
	})

	t.Run("thinking budget ignored elsewhere", func(t *testing.T) {
		call := (&Stream{api: "openai", config: Config{ThinkingBudget: 512}}).buildCall()
		require.Empty(t, call.ProviderOptions)
	})

	for _, api := range []string{"openai", "azure", "azure-ad"} {
		t.Run(api+" user and completion tokens", func(t *testing.T) {
			call := (&Stream{api: api, request: proto.Request{User: "analyst", MaxCompletionTokens: &tokens}}).buildCall()
			opts, ok := call.ProviderOptions[fopenai.Name].(*fopenai.ProviderOptions)
			require.True(t, ok)
			require.Equal(t, "analyst", *opts.User)
			require.EqualValues(t, 321, *opts.MaxCompletionTokens)
		})
	}

	t.Run("compatible provider gets user only", func(t *testing.T) {
		call := (&Stream{api: "deepseek", request: proto.Request{User: "analyst", MaxCompletionTokens: &tokens}}).buildCall()
		opts, ok := call.ProviderOptions[fopenaicompat.Name].(*fopenaicompat.ProviderOptions)
		require.True(t, ok)
		require.Equal(t, "analyst", *opts.User)
		require.NotContains(t, call.ProviderOptions, fopenai.Name)
	})

	for _, api := range []string{"anthropic", "google", "openrouter"} {
		t.Run(api+" drops user", func(t *testing.T) {
			call := (&Stream{api: api, request: proto.Request{User: "analyst"}}).buildCall()
			require.NotContains(t, call.ProviderOptions, fopenai.Name)
			require.NotContains(t, call.ProviderOptions, fopenaicompat.Name)
		})
	}
}

func TestNewAzureADAlias(t *testing.T) {
	client, err := New(Config{API: "azure-ad", APIKey: "token", BaseURL: "https://example.openai.azure.com"})
	require.NoError(t, err)
	require.NotNil(t, client)
}

func TestConsumePart(t *testing.T) {
	t.Run("provider executed tool calls are not run locally", func(t *testing.T) {
		s := &Stream{}
		s.consumePart(fantasy.StreamPart{
			Type:             fantasy.StreamPartTypeToolCall,
			ID:               "tc_1",
			ToolCallName:     "web_search",
			ToolCallInput:    "{}",
			ProviderExecuted: true,
		})
		require.Empty(t, s.step.calls)
	})

	t.Run("warnings are reported once", func(t *testing.T) {
		s := &Stream{}
		w := fantasy.CallWarning{Type: fantasy.CallWarningTypeUnsupportedSetting, Setting: "top_k", Message: "unsupported setting: top_k"}
		s.consumePart(fantasy.StreamPart{Type: fantasy.StreamPartTypeWarnings, Warnings: []fantasy.CallWarning{w, w}})
		require.Equal(t, []string{"unsupported setting: top_k"}, s.DrainWarnings())
		require.Empty(t, s.DrainWarnings())
	})

	t.Run("duplicate tool call ids are kept once", func(t *testing.T) {
		s := &Stream{}
		call := fantasy.StreamPart{Type: fantasy.StreamPartTypeToolCall, ID: "tc_1", ToolCallName: "web_search", ToolCallInput: `{"q":"NVDA"}`}
		s.consumePart(call)
		s.consumePart(call)
		require.Len(t, s.step.calls, 1)
		require.Equal(t, "web_search", s.step.calls[0].Function.Name)
	})

	t.Run("text and usage accumulate", func(t *testing.T) {
		s := &Stream{}
		s.consumePart(fantasy.StreamPart{Type: fantasy.StreamPartTypeTextDelta, Delta: "NVDA "})
		s.consumePart(fantasy.StreamPart{Type: fantasy.StreamPartTypeTextDelta, Delta: "rallied"})
		s.consumePart(fantasy.StreamPart{Type: fantasy.StreamPartTypeFinish, Usage: fantasy.Usage{InputTokens: 10, OutputTokens: 4}})
		s.consumePart(fantasy.StreamPart{Type: fantasy.StreamPartTypeFinish, Usage: fantasy.Usage{InputTokens: 5, OutputTokens: 1}})

		msg, said := s.step.message()
		require.True(t, said)
		require.Equal(t, "NVDA rallied", msg.Content)
		require.EqualValues(t, 15, s.Usage().InputTokens)
		require.EqualValues(t, 5, s.Usage().OutputTokens)
	})

	t.Run("empty step says nothing", func(t *testing.T) {
		_, said := (&step{}).message()
		require.False(t, said)
	})
}
