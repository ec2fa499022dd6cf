//go:build deepresearch_small

package fantasybridge

import (
	"testing"

	fopenaicompat "charm.land/fantasy/providers/openaicompat"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/deepresearch/internal/proto"
)

func TestSmallBuildForwardsUser(t *testing.T) {
	call := (&Stream{api: "deepseek", request: proto.Request{User: "analyst"}}).buildCall()
	opts, ok := call.ProviderOptions[fopenaicompat.Name].(*fopenaicompat.ProviderOptions)
	require.True(t, ok)
	require.Equal(t, "analyst", *opts.User)

	require.Empty(t, (&Stream{api: "deepseek"}).buildCall().ProviderOptions)
}
