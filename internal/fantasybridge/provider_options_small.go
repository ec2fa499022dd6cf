//go:build deepresearch_small

package fantasybridge

import (
	"charm.land/fantasy"
	fopenaicompat "charm.land/fantasy/providers/openaicompat"

	"github.com/dotcommander/deepresearch/internal/proto"
)

// The small build only links the OpenAI-compatible provider, so the end
// user is the only option it forwards.
func applyProviderOptions(call *fantasy.Call, _ string, _ Config, req proto.Request) {
	if req.User != "" {
		call.ProviderOptions[fopenaicompat.Name] = &fopenaicompat.ProviderOptions{User: fantasy.Opt(req.User)}
	}
}
