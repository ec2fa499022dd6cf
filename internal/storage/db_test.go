package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	nvdaID = "df31ae23ab8b75b5643c2f846c570997edc71333"
	fedID  = "6c33f71694bf41a18c844a96d1f62f153e5f6f44"
)

func memDB(tb testing.TB) *DB {
	tb.Helper()
	db, err := Open(":memory:")
	require.NoError(tb, err)
	tb.Cleanup(func() { require.NoError(tb, db.Close()) })
	return db
}

func TestSave(t *testing.T) {
	t.Run("upserts by id", func(t *testing.T) {
		db := memDB(t)
		require.Empty(t, db.List())

		require.NoError(t, db.Save(nvdaID, "NVDA outlook", "openai", "gpt-4o"))
		require.NoError(t, db.Save(nvdaID, "NVDA outlook, revised", "anthropic", "claude-sonnet-4"))

		list := db.List()
		require.Len(t, list, 1)
		require.Equal(t, "NVDA outlook, revised", list[0].Title)
		require.Equal(t, "anthropic", *list[0].API)
		require.Equal(t, "claude-sonnet-4", *list[0].Model)
	})

	t.Run("rejects blank id or title", func(t *testing.T) {
		db := memDB(t)
		require.Error(t, db.Save(" ", "NVDA outlook", "openai", "gpt-4o"))
		require.Error(t, db.Save(NewID(), "", "openai", "gpt-4o"))
		require.Empty(t, db.List())
	})
}

func TestFind(t *testing.T) {
	db := memDB(t)
	require.NoError(t, db.Save(nvdaID, "NVDA outlook", "openai", "gpt-4o"))
	require.NoError(t, db.Save(fedID, "Fed rate path", "openai", "gpt-4o"))

	for name, in := range map[string]string{
		"id prefix":   "df31",
		"full id":     nvdaID,
		"exact title": "NVDA outlook",
	} {
		t.Run(name, func(t *testing.T) {
			e, err := db.Find(in)
			require.NoError(t, err)
			require.Equal(t, nvdaID, e.ID)
		})
	}

	t.Run("prefix too short", func(t *testing.T) {
		_, err := db.Find("df3")
		require.ErrorIs(t, err, ErrNoMatches)
	})

	t.Run("partial title", func(t *testing.T) {
		_, err := db.Find("NVDA")
		require.ErrorIs(t, err, ErrNoMatches)
	})

	t.Run("ambiguous prefix", func(t *testing.T) {
		require.NoError(t, db.Save("df31ae23ab9b75b5641c2f846c571000edc71315", "NVDA follow-up", "openai", "gpt-4o"))
		_, err := db.Find("df31ae")
		require.ErrorIs(t, err, ErrManyMatches)
	})
}

func TestFindHEAD(t *testing.T) {
	db := memDB(t)
	_, err := db.FindHEAD()
	require.ErrorIs(t, err, ErrNoMatches)

	require.NoError(t, db.Save(nvdaID, "NVDA outlook", "openai", "gpt-4o"))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, db.Save(fedID, "Fed rate path", "openai", "gpt-4o"))

	head, err := db.FindHEAD()
	require.NoError(t, err)
	require.Equal(t, fedID, head.ID)
	require.Equal(t, []string{fedID, nvdaID}, ids(db.List()))
}

func TestDelete(t *testing.T) {
	db := memDB(t)
	require.NoError(t, db.Save(nvdaID, "NVDA outlook", "openai", "gpt-4o"))

	require.NoError(t, db.Delete(fedID), "unknown ids are ignored")
	require.Len(t, db.List(), 1)

	require.NoError(t, db.Delete(nvdaID))
	require.Empty(t, db.List())
	require.Error(t, db.Delete(""))
}

func TestListOlderThan(t *testing.T) {
	db := memDB(t)
	require.NoError(t, db.Save(nvdaID, "NVDA outlook", "openai", "gpt-4o"))

	require.Empty(t, db.ListOlderThan(time.Hour))
	require.Len(t, db.ListOlderThan(-time.Hour), 1)
}

func TestCompletions(t *testing.T) {
	db := memDB(t)
	const otherID = "fc5012d8c67073ea0a46a3c05488a0e1d87df74b"
	require.NoError(t, db.Save(otherID, "NVDA outlook", "openai", "gpt-4o"))
	require.NoError(t, db.Save(fedID, "fed rate path", "openai", "gpt-4o"))

	require.Equal(t, []string{
		"fc5012d\tNVDA outlook",
		"fed rate path\t6c33f71",
	}, db.Completions("f"))

	require.Equal(t, []string{otherID + "\tNVDA outlook"}, db.Completions(otherID[:8]))
}

func TestPersistence(t *testing.T) {
	t.Run("survives reopen", func(t *testing.T) {
		dir := t.TempDir()
		db, err := Open(dir)
		require.NoError(t, err)
		require.NoError(t, db.Save(nvdaID, "NVDA outlook", "openai", "gpt-4o"))
		require.NoError(t, db.Save(fedID, "Fed rate path", "openai", "gpt-4o"))
		require.NoError(t, db.Delete(fedID))

		require.FileExists(t, filepath.Join(dir, indexFileName))

		reopened, err := Open(dir)
		require.NoError(t, err)
		require.Equal(t, []string{nvdaID}, ids(reopened.List()))
	})

	t.Run("rejects a corrupt index", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, indexFileName), []byte(`{"op":"rename"}`+"\n"), 0o600))
		_, err := Open(dir)
		require.ErrorContains(t, err, "invalid index event op")
	})

	t.Run("compacts dead events", func(t *testing.T) {
		dir := t.TempDir()
		db, err := Open(dir)
		require.NoError(t, err)

		id := NewID()
		for i := range compactMinOps + 10 {
			require.NoError(t, db.Save(id, fmt.Sprintf("revision %d", i), "openai", "gpt-4o-mini"))
		}

		bts, err := os.ReadFile(filepath.Join(dir, indexFileName))
		require.NoError(t, err)
		require.Less(t, strings.Count(string(bts), "\n"), compactMinOps)

		reopened, err := Open(dir)
		require.NoError(t, err)
		e, err := reopened.Find(id)
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("revision %d", compactMinOps+9), e.Title)
	})
}

func ids(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}
