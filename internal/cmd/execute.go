package cmd

import (
	"github.com/dotcommander/deepresearch/internal/config"
)

// Execute runs the command line and returns the process exit code. A config
// load error is carried along so commands that need config can report it
// while help, version and completion still work.
func Execute(build BuildInfo, cfg config.Config, cfgErr error) int {
	root, rt := newRoot(build, cfg, cfgErr)
	err := rt.runRoot(root)
	if err != nil {
		handleError(err)
		return 1
	}
	maybeWriteMemProfile()
	return 0
}
