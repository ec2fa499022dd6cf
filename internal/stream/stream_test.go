package stream

import (
	"errors"
	"testing"

	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/stretchr/testify/require"
)

func TestCallTool(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		msg, status := CallTool("call_1", "srv_echo", []byte(`{"a":1}`), func(name string, data []byte) (string, error) {
			require.Equal(t, "srv_echo", name)
			return "echo:" + string(data), nil
		})
		require.NoError(t, status.Err)
		require.Equal(t, proto.RoleTool, msg.Role)
		require.Equal(t, `echo:{"a":1}`, msg.Content)
		require.Equal(t, []proto.ToolCall{{ID: "call_1"}}, msg.ToolCalls)
	})

	t.Run("caller error", func(t *testing.T) {
		msg, status := CallTool("call_2", "srv_fail", nil, func(string, []byte) (string, error) {
			return "", errors.New("boom")
		})
		require.EqualError(t, status.Err, "boom")
		require.Equal(t, "boom", msg.Content)
		require.True(t, msg.ToolCalls[0].IsError)
	})

	t.Run("nil caller", func(t *testing.T) {
		msg, status := CallTool("call_3", "srv_x", nil, nil)
		require.Error(t, status.Err)
		require.True(t, msg.ToolCalls[0].IsError)
	})
}
