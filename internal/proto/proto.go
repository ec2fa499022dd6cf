// Package proto holds the provider-neutral message types shared by the
// agent, the streaming bridge, the research pipeline and the TUI.
package proto

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Chunk is a streaming chunk of text.
type Chunk struct {
	Content string
}

// ToolCallStatus is the outcome of a single tool call.
type ToolCallStatus struct {
	Name string
	Err  error
}

// String renders the status as a markdown snippet for the chat transcript.
func (c ToolCallStatus) String() string {
	var sb strings.Builder
	_, _ = fmt.Fprintf(&sb, "\n> Ran tool: `%s`\n", c.Name)
	if c.Err != nil {
		_, _ = fmt.Fprintf(&sb, ">\n> *Failed*:\n> ```\n> %s\n> ```\n", c.Err)
	}
	sb.WriteString("\n")
	return sb.String()
}

// Message is a single message in a conversation.
type Message struct {
	Content   string
	Role      string
	ToolCalls []ToolCall
}

// Function is the function half of a tool call.
type Function struct {
	Name      string
	Arguments []byte
}

// ToolCall is a tool call requested by the model, or the result of one when
// attached to a RoleTool message.
type ToolCall struct {
	ID       string
	IsError  bool
	Function Function
}

// Usage is the token accounting reported by the provider.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
}

// Total is the sum of input and output tokens.
func (u Usage) Total() int64 {
	return u.InputTokens + u.OutputTokens
}

// Request is a provider-neutral completion request.
type Request struct {
	Messages            []Message
	API                 string
	Model               string
	User                string
	Tools               map[string][]mcp.Tool
	Temperature         *float64
	TopP                *float64
	TopK                *int64
	Stop                []string
	MaxTokens           *int64
	MaxCompletionTokens *int64
	ToolCaller          func(name string, data []byte) (string, error)
}

// Conversation is a list of messages that can be rendered as markdown.
type Conversation []Message

// String renders the user and assistant turns of the conversation.
func (cc Conversation) String() string {
	var sb strings.Builder
	for _, msg := range cc {
		if msg.Content == "" {
			continue
		}
		switch msg.Role {
		case RoleSystem:
			sb.WriteString("**System**: ")
		case RoleUser:
			sb.WriteString("**Prompt**: ")
		case RoleAssistant:
			sb.WriteString("**Assistant**: ")
		case RoleTool:
			sb.WriteString("**Tool**: ")
		}
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	return sb.String()
}
