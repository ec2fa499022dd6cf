package cmd

import (
	"io"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/storage"
)

func captureStdout(tb testing.TB, fn func()) string {
	tb.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(tb, err)
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	require.NoError(tb, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(tb, err)
	return string(out)
}

// seedConversations saves one conversation per title, oldest first, and
// returns their IDs. The store is closed so commands can open their own.
func seedConversations(t *testing.T, titles ...string) (*config.Config, []string) {
	t.Helper()
	cfg := &config.Config{}
	cfg.CachePath = t.TempDir()
	cfg.Quiet = true

	convos, err := openConversations(cfg.CachePath)
	require.NoError(t, err)
	ids := make([]string, 0, len(titles))
	for _, title := range titles {
		id := storage.NewID()
		msgs := []proto.Message{
			{Role: proto.RoleUser, Content: title},
			{Role: proto.RoleAssistant, Content: "answer to " + title},
		}
		require.NoError(t, convos.put(id, title, "openai", "gpt-4o", msgs))
		ids = append(ids, id)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, convos.Close())
	return cfg, ids
}

func savedIDs(t *testing.T, cfg *config.Config) []string {
	t.Helper()
	convos, err := openConversations(cfg.CachePath)
	require.NoError(t, err)
	defer convos.Close() //nolint:errcheck
	var ids []string
	for _, e := range convos.index.List() {
		ids = append(ids, e.ID)
	}
	return ids
}

func TestListConversations(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		cfg, _ := seedConversations(t)
		cfg.Raw = true
		require.NoError(t, listConversations(cfg))
	})

	t.Run("raw list is newest first", func(t *testing.T) {
		cfg, ids := seedConversations(t, "NVDA outlook", "Fed rate path")
		cfg.Raw = true
		out := captureStdout(t, func() { require.NoError(t, listConversations(cfg)) })
		require.Contains(t, out, storage.Short(ids[0]))
		require.Less(t, strings.Index(out, "Fed rate path"), strings.Index(out, "NVDA outlook"))
	})
}

func TestShowConversation(t *testing.T) {
	cfg, ids := seedConversations(t, "NVDA outlook", "Fed rate path")
	want := func(title string) string {
		return proto.Conversation([]proto.Message{
			{Role: proto.RoleUser, Content: title},
			{Role: proto.RoleAssistant, Content: "answer to " + title},
		}).String()
	}

	for name, tc := range map[string]struct {
		show  string
		last  bool
		title string
	}{
		"by id prefix": {show: ids[0][:8], title: "NVDA outlook"},
		"by title":     {show: "NVDA outlook", title: "NVDA outlook"},
		"last":         {last: true, title: "Fed rate path"},
	} {
		t.Run(name, func(t *testing.T) {
			c := *cfg
			c.Show, c.ShowLast = tc.show, tc.last
			out := captureStdout(t, func() { require.NoError(t, showConversation(&c)) })
			require.Equal(t, strings.TrimSuffix(want(tc.title), "\n")+"\n", out)
		})
	}

	t.Run("unknown", func(t *testing.T) {
		c := *cfg
		c.Show = "AMD outlook"
		require.Error(t, showConversation(&c))
	})
}

func TestDeleteConversations(t *testing.T) {
	t.Run("by id and title", func(t *testing.T) {
		cfg, ids := seedConversations(t, "NVDA outlook", "Fed rate path", "AMD outlook")
		require.NoError(t, deleteConversations(cfg, []string{ids[0][:6], "Fed rate path"}))
		require.Equal(t, []string{ids[2]}, savedIDs(t, cfg))
	})

	t.Run("unknown target", func(t *testing.T) {
		cfg, ids := seedConversations(t, "NVDA outlook")
		require.Error(t, deleteConversations(cfg, []string{"nope"}))
		require.Equal(t, ids, savedIDs(t, cfg))
	})

}

func TestPruneConversations(t *testing.T) {
	t.Run("requires a duration", func(t *testing.T) {
		cfg, ids := seedConversations(t, "NVDA outlook")
		require.Error(t, pruneConversations(cfg, 0))
		require.Equal(t, ids, savedIDs(t, cfg))
	})

	t.Run("keeps recent conversations", func(t *testing.T) {
		cfg, ids := seedConversations(t, "NVDA outlook")
		require.NoError(t, pruneConversations(cfg, time.Hour))
		require.Equal(t, ids, savedIDs(t, cfg))
	})

	t.Run("deletes older ones", func(t *testing.T) {
		cfg, _ := seedConversations(t, "NVDA outlook", "Fed rate path")
		require.NoError(t, pruneConversations(cfg, -time.Hour))
		require.Empty(t, savedIDs(t, cfg))
	})
}
