// Package fantasybridge adapts charm.land/fantasy providers to the stream
// contract, converting proto messages and MCP tools to fantasy types.
package fantasybridge

import (
	"errors"
	"maps"
	"slices"

	"charm.land/fantasy"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dotcommander/deepresearch/internal/proto"
)

// toFantasyPrompt converts history to a fantasy prompt. Assistant and tool
// messages that end up with no parts are dropped, since providers reject
// empty turns.
func toFantasyPrompt(input []proto.Message) fantasy.Prompt {
	prompt := make(fantasy.Prompt, 0, len(input))
	for _, msg := range input {
		var (
			role  fantasy.MessageRole
			parts []fantasy.MessagePart
		)
		switch msg.Role {
		case proto.RoleSystem:
			role, parts = fantasy.MessageRoleSystem, textParts(msg.Content)
		case proto.RoleUser:
			role, parts = fantasy.MessageRoleUser, textParts(msg.Content)
		case proto.RoleAssistant:
			role, parts = fantasy.MessageRoleAssistant, assistantParts(msg)
		case proto.RoleTool:
			role, parts = fantasy.MessageRoleTool, toolResultParts(msg)
		default:
			continue
		}
		if len(parts) == 0 {
			continue
		}
		prompt = append(prompt, fantasy.Message{Role: role, Content: parts})
	}
	return prompt
}

func textParts(text string) []fantasy.MessagePart {
	return []fantasy.MessagePart{fantasy.TextPart{Text: text}}
}

func assistantParts(msg proto.Message) []fantasy.MessagePart {
	var parts []fantasy.MessagePart
	if msg.Content != "" {
		parts = append(parts, fantasy.TextPart{Text: msg.Content})
	}
	for _, call := range msg.ToolCalls {
		parts = append(parts, fantasy.ToolCallPart{
			ToolCallID: call.ID,
			ToolName:   call.Function.Name,
			Input:      string(call.Function.Arguments),
		})
	}
	return parts
}

// toolResultParts gives every call in msg the message content as its
// result, as an error output when the call failed.
func toolResultParts(msg proto.Message) []fantasy.MessagePart {
	parts := make([]fantasy.MessagePart, 0, len(msg.ToolCalls))
	for _, call := range msg.ToolCalls {
		var out fantasy.ToolResultOutputContent = fantasy.ToolResultOutputContentText{Text: msg.Content}
		if call.IsError {
			out = fantasy.ToolResultOutputContentError{Error: errors.New(msg.Content)}
		}
		parts = append(parts, fantasy.ToolResultPart{ToolCallID: call.ID, Output: out})
	}
	return parts
}

// fromMCPTools exposes MCP tools as function tools named <server>_<tool>,
// ordered by server so requests are stable between turns.
func fromMCPTools(byServer map[string][]mcp.Tool) []fantasy.Tool {
	var tools []fantasy.Tool
	for _, server := range slices.Sorted(maps.Keys(byServer)) {
		for _, tool := range byServer[server] {
			tools = append(tools, fantasy.FunctionTool{
				Name:        server + "_" + tool.Name,
				Description: tool.Description,
				InputSchema: inputSchema(tool.InputSchema),
			})
		}
	}
	return tools
}

func inputSchema(in mcp.ToolInputSchema) map[string]any {
	schema := map[string]any{"type": "object", "properties": in.Properties}
	if in.Properties == nil {
		schema["properties"] = map[string]any{}
	}
	if len(in.Required) > 0 {
		schema["required"] = in.Required
	}
	return schema
}

func toolChoiceForRequest(request proto.Request) *fantasy.ToolChoice {
	if len(request.Tools) == 0 {
		return nil
	}
	choice := fantasy.ToolChoiceAuto
	return &choice
}
