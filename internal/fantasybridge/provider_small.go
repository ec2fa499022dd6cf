//go:build deepresearch_small

package fantasybridge

import "charm.land/fantasy"

// The small build only links the OpenAI-compatible provider.
func newProvider(cfg Config) (fantasy.Provider, error) {
	return newCompatProvider(cfg)
}
