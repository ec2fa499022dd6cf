package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/logging"
)

func TestExecuteClosesLog(t *testing.T) {
	prev := logging.L
	t.Cleanup(func() { logging.L = prev })

	for format, want := range map[string]string{
		"text": "command failed",
		"json": `"msg":"command failed"`,
	} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "deepresearch.log")
			root, rt := newRoot(BuildInfo{}, config.Config{}, nil)
			root.SetArgs([]string{"history", "prune", "--log-file", path, "--log-format", format})

			err := rt.runRoot(root)
			require.ErrorContains(t, err, "missing --older-than")
			require.Nil(t, rt.logClose)
			require.NoError(t, rt.stopLogging())

			b, err := os.ReadFile(path)
			require.NoError(t, err)
			require.Contains(t, string(b), want)
		})
	}
}
