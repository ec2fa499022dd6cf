package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadRoleDir(t *testing.T) {
	t.Run("missing directory", func(t *testing.T) {
		roles, err := readRoleDir(filepath.Join(t.TempDir(), "roles"))
		require.NoError(t, err)
		require.Empty(t, roles)
	})

	t.Run("names follow the relative path", func(t *testing.T) {
		dir := t.TempDir()
		files := map[string]string{
			"analyst.md":              "---\nsector: all\n---\nYou are an equity analyst.",
			"equities/value.md":       "Look for cheap stocks.",
			"macro/rates.yml":         "- Watch the Fed.\n- Watch the curve.\n",
			"macro/fx.yaml":           "Watch the dollar.",
			"notes/ignored.txt":       "not a role",
			"equities/deep/growth.MD": "Chase growth.",
		}
		for name, content := range files {
			path := filepath.Join(dir, filepath.FromSlash(name))
			require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
		}

		roles, err := readRoleDir(dir)
		require.NoError(t, err)
		require.Equal(t, map[string][]string{
			"analyst":              {"file://" + filepath.Join(dir, "analyst.md")},
			"equities/value":       {"file://" + filepath.Join(dir, "equities", "value.md")},
			"equities/deep/growth": {"file://" + filepath.Join(dir, "equities", "deep", "growth.MD")},
			"macro/rates":          {"Watch the Fed.", "Watch the curve."},
			"macro/fx":             {"Watch the dollar."},
		}, roles)
	})

	t.Run("rejects yaml that is not a message list", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yml"), []byte("key: value\n"), 0o600))
		_, err := readRoleDir(dir)
		require.ErrorContains(t, err, "must be a YAML string or string list")
	})
}

func TestMergeRoleDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "value.md"), []byte("from dir"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "macro.md"), []byte("from dir"), 0o600))

	cfg := Config{Settings: Settings{Roles: map[string][]string{"value": {"from settings"}}}}
	require.NoError(t, cfg.mergeRoleDir(dir))
	require.Equal(t, []string{"from settings"}, cfg.Roles["value"])
	require.Equal(t, []string{"file://" + filepath.Join(dir, "macro.md")}, cfg.Roles["macro"])

	var empty Config
	require.NoError(t, empty.mergeRoleDir(dir))
	require.Len(t, empty.Roles, 2)
}
