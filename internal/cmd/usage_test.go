package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/config"
)

func TestUsageFunc(t *testing.T) {
	root := NewRootCmd(BuildInfo{Version: "test"}, config.Config{}, nil)
	var buf bytes.Buffer
	root.SetOut(&buf)

	require.NoError(t, usageFunc(root))
	out := buf.String()
	require.Contains(t, out, "[OPTIONS] [QUERY]")
	require.Contains(t, out, "--max-searches")
	require.Contains(t, out, "-n")
	require.NotContains(t, out, "--memprofile")
}
