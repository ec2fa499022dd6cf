// Command deepresearch runs multi-step web research on stock market
// questions and writes the result up as a report.
package main

import (
	"os"

	"github.com/dotcommander/deepresearch/internal/cmd"
	"github.com/dotcommander/deepresearch/internal/config"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version string //nolint:gochecknoglobals
	commit  string //nolint:gochecknoglobals
)

func main() {
	cfg, cfgErr := config.Ensure()
	os.Exit(cmd.Execute(cmd.BuildInfo{Version: version, CommitSHA: commit}, cfg, cfgErr))
}
