// Package stream defines the streaming completion contract implemented by
// provider bridges.
package stream

import (
	"context"
	"errors"

	"github.com/dotcommander/deepresearch/internal/proto"
)

// ErrNoContent happens when the current stream part carries no text.
var ErrNoContent = errors.New("no content")

// Client is a streaming client.
type Client interface {
	Request(ctx context.Context, request proto.Request) Stream
}

// Stream is an ongoing stream.
//
// Next advances to the next part; Current returns its text. When Next returns
// false the step is complete: callers check Err, run CallTools and, if any
// tool ran, call Next again to let the model continue.
type Stream interface {
	Next() bool
	Current() (proto.Chunk, error)
	Err() error
	Close() error
	Messages() []proto.Message
	CallTools() []proto.ToolCallStatus
	DrainWarnings() []string
	Usage() proto.Usage
}

// CallTool calls a tool using the provided caller and builds the tool
// response message.
func CallTool(
	id, name string,
	data []byte,
	caller func(name string, data []byte) (string, error),
) (proto.Message, proto.ToolCallStatus) {
	status := proto.ToolCallStatus{Name: name}
	if caller == nil {
		status.Err = errors.New("tool calling is disabled")
		return toolMessage(id, status.Err.Error(), true), status
	}
	content, err := caller(name, data)
	if err != nil {
		status.Err = err
		return toolMessage(id, err.Error(), true), status
	}
	return toolMessage(id, content, false), status
}

func toolMessage(id, content string, isErr bool) proto.Message {
	return proto.Message{
		Role:    proto.RoleTool,
		Content: content,
		ToolCalls: []proto.ToolCall{
			{ID: id, IsError: isErr},
		},
	}
}
