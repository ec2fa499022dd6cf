package cmd

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUsageExamples(t *testing.T) {
	for range 20 {
		title := randomExample()
		require.NotEmpty(t, exampleCommand(title), title)
	}
	require.Empty(t, exampleCommand("no such example"))
}
