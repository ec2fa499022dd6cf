package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/stretchr/testify/require"
)

func TestConversationsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	convos, err := NewConversations(dir)
	require.NoError(t, err)

	id := "abcdef0123456789abcdef0123456789abcdef01"
	msgs := []proto.Message{
		{Role: proto.RoleUser, Content: "hello"},
		{Role: proto.RoleAssistant, Content: "hi"},
	}
	require.NoError(t, convos.Write(id, &msgs))

	// payloads are sharded by the first two characters of the ID
	_, err = os.Stat(filepath.Join(dir, "conversations", "ab", id+".json"))
	require.NoError(t, err)

	var got []proto.Message
	require.NoError(t, convos.Read(id, &got))
	require.Equal(t, msgs, got)

	require.NoError(t, convos.Delete(id))
	require.Error(t, convos.Read(id, &got))
}

func TestJSONReportsType(t *testing.T) {
	type payload struct {
		Query string
		Score int
	}
	dir := t.TempDir()
	reports, err := NewJSON[payload](dir, ReportCache)
	require.NoError(t, err)

	in := payload{Query: "nvda outlook", Score: 7}
	require.NoError(t, reports.Write("ff00aa", &in))

	var out payload
	require.NoError(t, reports.Read("ff00aa", &out))
	require.Equal(t, in, out)

	_, err = os.Stat(filepath.Join(dir, "reports", "ff", "ff00aa.json"))
	require.NoError(t, err)
}

func TestInvalidID(t *testing.T) {
	convos, err := NewConversations(t.TempDir())
	require.NoError(t, err)

	var msgs []proto.Message
	require.ErrorIs(t, convos.Read("", &msgs), errInvalidID)
	require.ErrorIs(t, convos.Write("", &msgs), errInvalidID)
	require.ErrorIs(t, convos.Delete(""), errInvalidID)
	require.ErrorIs(t, convos.Write("../outside", &msgs), errInvalidID)
}

func TestReadCorrupt(t *testing.T) {
	dir := t.TempDir()
	convos, err := NewConversations(dir)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "conversations", "ab"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conversations", "ab", "abcd.json"), []byte("{"), 0o600))

	var msgs []proto.Message
	require.ErrorContains(t, convos.Read("abcd", &msgs), "decode conversations")
}

func TestWriteOverwritesAtomically(t *testing.T) {
	dir := t.TempDir()
	convos, err := NewConversations(dir)
	require.NoError(t, err)

	first := []proto.Message{{Role: proto.RoleUser, Content: "one"}}
	second := []proto.Message{{Role: proto.RoleUser, Content: "two"}}
	require.NoError(t, convos.Write("0011", &first))
	require.NoError(t, convos.Write("0011", &second))

	var got []proto.Message
	require.NoError(t, convos.Read("0011", &got))
	require.Equal(t, second, got)

	entries, err := os.ReadDir(filepath.Join(dir, "conversations", "00"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files must not be left behind")
}
