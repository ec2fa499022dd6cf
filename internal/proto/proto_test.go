package proto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConversationString(t *testing.T) {
	out := Conversation{
		{Role: RoleSystem, Content: "be terse"},
		{Role: RoleUser, Content: "hello"},
		{Role: RoleAssistant, Content: ""},
		{Role: RoleAssistant, Content: "hi"},
	}.String()

	require.Equal(t, "**System**: be terse\n\n**Prompt**: hello\n\n**Assistant**: hi\n\n", out)
}

func TestToolCallStatusString(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		s := ToolCallStatus{Name: "fs_read"}.String()
		require.Contains(t, s, "Ran tool: `fs_read`")
		require.NotContains(t, s, "Failed")
	})
	t.Run("failed", func(t *testing.T) {
		s := ToolCallStatus{Name: "fs_read", Err: errors.New("denied")}.String()
		require.Contains(t, s, "*Failed*")
		require.Contains(t, s, "denied")
	})
}

func TestUsage(t *testing.T) {
	var u Usage
	u.Add(Usage{InputTokens: 10, OutputTokens: 3})
	u.Add(Usage{InputTokens: 5, OutputTokens: 2})
	require.Equal(t, Usage{InputTokens: 15, OutputTokens: 5}, u)
	require.EqualValues(t, 20, u.Total())
}
