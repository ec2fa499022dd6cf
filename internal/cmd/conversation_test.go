package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/storage"
)

func memIndex(tb testing.TB) *storage.DB {
	tb.Helper()
	db, err := storage.Open(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() { require.NoError(tb, db.Close()) })
	return db
}

func TestConversationsPlan(t *testing.T) {
	const savedTitle = "NVDA outlook"

	tests := map[string]struct {
		setup func(cfg *config.Config, id string)
		check func(t *testing.T, pl conversationPlan, id string)
	}{
		"fresh conversation": {
			setup: func(*config.Config, string) {},
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Empty(t, pl.ReadID)
				require.Regexp(t, storage.SHA1Regexp, pl.WriteID)
				require.NotEqual(t, id, pl.WriteID)
				require.Empty(t, pl.Title)
			},
		},
		"show by id prefix": {
			setup: func(cfg *config.Config, id string) { cfg.Show = id[:8] },
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Equal(t, id, pl.ReadID)
			},
		},
		"show by title": {
			setup: func(cfg *config.Config, _ string) { cfg.Show = savedTitle },
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Equal(t, id, pl.ReadID)
			},
		},
		"continue by id prefix": {
			setup: func(cfg *config.Config, id string) { cfg.Continue = id[:5] },
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Equal(t, id, pl.ReadID)
				require.Equal(t, id, pl.WriteID)
				require.Equal(t, savedTitle, pl.Title)
			},
		},
		"continue by title": {
			setup: func(cfg *config.Config, _ string) { cfg.Continue = savedTitle },
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Equal(t, id, pl.ReadID)
				require.Equal(t, id, pl.WriteID)
			},
		},
		"continue last": {
			setup: func(cfg *config.Config, _ string) { cfg.ContinueLast = true },
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Equal(t, id, pl.ReadID)
				require.Equal(t, id, pl.WriteID)
				require.Equal(t, savedTitle, pl.Title)
			},
		},
		"continue unknown title falls back to latest": {
			setup: func(cfg *config.Config, _ string) { cfg.Continue = "AMD outlook" },
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Equal(t, id, pl.ReadID)
				require.Equal(t, id, pl.WriteID)
				require.Equal(t, savedTitle, pl.Title)
			},
		},
		"title of a saved conversation reuses it": {
			setup: func(cfg *config.Config, _ string) { cfg.Title = savedTitle },
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Empty(t, pl.ReadID)
				require.Equal(t, id, pl.WriteID)
			},
		},
		"new titled conversation": {
			setup: func(cfg *config.Config, _ string) { cfg.Title = "semis weekly" },
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Empty(t, pl.ReadID)
				require.Regexp(t, storage.SHA1Regexp, pl.WriteID)
				require.NotEqual(t, id, pl.WriteID)
				require.Equal(t, "semis weekly", pl.Title)
			},
		},
		"continue into a new title": {
			setup: func(cfg *config.Config, id string) {
				cfg.Continue = id[:10]
				cfg.Title = "semis weekly"
			},
			check: func(t *testing.T, pl conversationPlan, id string) {
				require.Equal(t, id, pl.ReadID)
				require.Regexp(t, storage.SHA1Regexp, pl.WriteID)
				require.NotEqual(t, id, pl.WriteID)
				require.Equal(t, "semis weekly", pl.Title)
			},
		},
		"continued conversation keeps its model": {
			setup: func(cfg *config.Config, _ string) {
				cfg.ContinueLast = true
				cfg.API, cfg.Model = "openai", "gpt-4o"
			},
			check: func(t *testing.T, pl conversationPlan, _ string) {
				require.Equal(t, "anthropic", pl.API)
				require.Equal(t, "claude-sonnet-4", pl.Model)
			},
		},
		"fresh conversation uses configured model": {
			setup: func(cfg *config.Config, _ string) { cfg.API, cfg.Model = "openai", "gpt-4o" },
			check: func(t *testing.T, pl conversationPlan, _ string) {
				require.Equal(t, "openai", pl.API)
				require.Equal(t, "gpt-4o", pl.Model)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			db := memIndex(t)
			id := storage.NewID()
			require.NoError(t, db.Save(id, savedTitle, "anthropic", "claude-sonnet-4"))

			cfg := &config.Config{}
			tc.setup(cfg, id)
			pl, err := (&conversations{index: db}).plan(cfg)
			require.NoError(t, err)
			tc.check(t, pl, id)
		})
	}

	t.Run("show unknown", func(t *testing.T) {
		cfg := &config.Config{}
		cfg.Show = "aaa"
		_, err := (&conversations{index: memIndex(t)}).plan(cfg)

		var e errs.Error
		require.ErrorAs(t, err, &e)
		require.Equal(t, "Could not find the conversation.", e.Reason)
		require.ErrorContains(t, e, "no entries found: aaa")
	})
}

func TestConversationsSaveChat(t *testing.T) {
	msgs := []proto.Message{
		{Role: proto.RoleUser, Content: "NVDA outlook\nfocus on datacenter"},
		{Role: proto.RoleAssistant, Content: "..."},
	}
	open := func(t *testing.T) (*config.Config, *conversations) {
		t.Helper()
		cfg := &config.Config{}
		cfg.CachePath = t.TempDir()
		cfg.Quiet = true
		cfg.API, cfg.Model = "openai", "gpt-4o"
		cfg.CacheWriteToID = storage.NewID()
		convos, err := openConversations(cfg.CachePath)
		require.NoError(t, err)
		t.Cleanup(func() { require.NoError(t, convos.Close()) })
		return cfg, convos
	}

	t.Run("titles from the first line of the last prompt", func(t *testing.T) {
		cfg, convos := open(t)
		require.NoError(t, convos.saveChat(cfg, msgs, false))

		e, err := convos.index.Find(cfg.CacheWriteToID)
		require.NoError(t, err)
		require.Equal(t, "NVDA outlook", e.Title)
		require.Equal(t, "gpt-4o", *e.Model)

		got, err := convos.messages(e.ID)
		require.NoError(t, err)
		require.Equal(t, msgs, got)
	})

	t.Run("keeps an explicit title", func(t *testing.T) {
		cfg, convos := open(t)
		cfg.CacheWriteToTitle = "semis weekly"
		require.NoError(t, convos.saveChat(cfg, msgs, true))

		e, err := convos.index.Find("semis weekly")
		require.NoError(t, err)
		require.Equal(t, cfg.CacheWriteToID, e.ID)
	})

	t.Run("no-cache skips writing", func(t *testing.T) {
		cfg, convos := open(t)
		cfg.NoCache = true
		require.NoError(t, convos.saveChat(cfg, msgs, true))
		require.Empty(t, convos.index.List())
	})
}

func TestLastPrompt(t *testing.T) {
	require.Empty(t, lastPrompt(nil))
	require.Equal(t, "second", lastPrompt([]proto.Message{
		{Role: proto.RoleUser, Content: "first"},
		{Role: proto.RoleUser, Content: "second"},
		{Role: proto.RoleAssistant, Content: "answer"},
	}))
}
