package cmd

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/present"
)

// roleNames returns the configured chat roles starting with prefix, sorted.
func roleNames(cfg *config.Config, prefix string) []string {
	var names []string
	for name := range cfg.Roles {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func listRoles(w io.Writer, cfg *config.Config) {
	for _, name := range roleNames(cfg, "") {
		if name == cfg.Role {
			name += present.StdoutStyles().Timeago.Render(" (default)")
		}
		fmt.Fprintln(w, name)
	}
}
