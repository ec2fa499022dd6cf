package fantasybridge

import (
	"testing"

	"charm.land/fantasy"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/proto"
)

func TestToFantasyPrompt(t *testing.T) {
	t.Run("roles and tool results", func(t *testing.T) {
		prompt := toFantasyPrompt([]proto.Message{
			{Role: proto.RoleSystem, Content: "You are a financial analyst."},
			{Role: proto.RoleUser, Content: "NVDA outlook"},
			{Role: proto.RoleAssistant, ToolCalls: []proto.ToolCall{{
				ID:       "call_1",
				Function: proto.Function{Name: "web_search", Arguments: []byte(`{"q":"NVDA"}`)},
			}}},
			{Role: proto.RoleTool, Content: "3 results", ToolCalls: []proto.ToolCall{{ID: "call_1"}}},
			{Role: proto.RoleTool, Content: "rate limited", ToolCalls: []proto.ToolCall{{ID: "call_2", IsError: true}}},
		})
		require.Len(t, prompt, 5)

		roles := make([]fantasy.MessageRole, 0, len(prompt))
		for _, m := range prompt {
			roles = append(roles, m.Role)
		}
		require.Equal(t, []fantasy.MessageRole{
			fantasy.MessageRoleSystem,
			fantasy.MessageRoleUser,
			fantasy.MessageRoleAssistant,
			fantasy.MessageRoleTool,
			fantasy.MessageRoleTool,
		}, roles)

		call, ok := fantasy.AsMessagePart[fantasy.ToolCallPart](prompt[2].Content[0])
		require.True(t, ok)
		require.Equal(t, "web_search", call.ToolName)
		require.JSONEq(t, `{"q":"NVDA"}`, call.Input)

		okPart, ok := fantasy.AsMessagePart[fantasy.ToolResultPart](prompt[3].Content[0])
		require.True(t, ok)
		text, ok := fantasy.AsToolResultOutputType[fantasy.ToolResultOutputContentText](okPart.Output)
		require.True(t, ok)
		require.Equal(t, "3 results", text.Text)

		errPart, ok := fantasy.AsMessagePart[fantasy.ToolResultPart](prompt[4].Content[0])
		require.True(t, ok)
		failed, ok := fantasy.AsToolResultOutputType[fantasy.ToolResultOutputContentError](errPart.Output)
		require.True(t, ok)
		require.EqualError(t, failed.Error, "rate limited")
	})

	t.Run("empty assistant and tool turns are dropped", func(t *testing.T) {
		prompt := toFantasyPrompt([]proto.Message{
			{Role: proto.RoleUser, Content: "hi"},
			{Role: proto.RoleAssistant},
			{Role: proto.RoleTool, Content: "orphan"},
		})
		require.Len(t, prompt, 1)
	})
}

func TestFromMCPTools(t *testing.T) {
	tools := fromMCPTools(map[string][]mcp.Tool{
		"web": {{
			Name:        "search",
			Description: "search the web",
			InputSchema: mcp.ToolInputSchema{
				Properties: map[string]any{"query": map[string]any{"type": "string"}},
				Required:   []string{"query"},
			},
		}},
		"clock": {{Name: "now"}},
	})
	require.Len(t, tools, 2)

	first, ok := tools[0].(fantasy.FunctionTool)
	require.True(t, ok)
	require.Equal(t, "clock_now", first.Name)
	require.Equal(t, map[string]any{}, first.InputSchema["properties"])
	require.NotContains(t, first.InputSchema, "required")

	second, ok := tools[1].(fantasy.FunctionTool)
	require.True(t, ok)
	require.Equal(t, "web_search", second.Name)
	require.Equal(t, "search the web", second.Description)
	require.Equal(t, "object", second.InputSchema["type"])
	require.Equal(t, []string{"query"}, second.InputSchema["required"])
}

func TestToolChoiceForRequest(t *testing.T) {
	require.Nil(t, toolChoiceForRequest(proto.Request{}))
	choice := toolChoiceForRequest(proto.Request{Tools: map[string][]mcp.Tool{"web": {{Name: "search"}}}})
	require.NotNil(t, choice)
	require.Equal(t, fantasy.ToolChoiceAuto, *choice)
}
