package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	require.NotEqual(t, a, b)
	require.Regexp(t, SHA1Regexp, a)
	require.Len(t, a, 40)
}

func TestShort(t *testing.T) {
	require.Equal(t, "0123456", Short("0123456789abcdef"))
	require.Equal(t, "abc", Short("abc"))
}
