package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/logging"
)

const installPkg = "github.com/dotcommander/deepresearch@latest"

// newUpgradeCmd reinstalls the binary with go install. It only works for
// installs that came from go install in the first place.
func newUpgradeCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Reinstall the latest release with go install",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gobin, err := exec.LookPath("go")
			if err != nil {
				return errs.Wrap(err, "The Go toolchain is needed to upgrade; install Go or download a release instead.")
			}
			if !rt.cfg.Quiet {
				fmt.Fprintf(os.Stderr, "Upgrading %s with go install %s\n", rt.build.Version, installPkg)
			}
			logging.L.Debug("upgrade", "go", gobin, "from", rt.build.Version)

			install := exec.CommandContext(cmd.Context(), gobin, "install", installPkg)
			install.Stdout, install.Stderr = os.Stdout, os.Stderr
			if err := install.Run(); err != nil {
				return errs.Wrap(err, "go install failed.")
			}
			if !rt.cfg.Quiet {
				fmt.Fprintln(os.Stderr, "Done. Run deepresearch --version to check.")
			}
			return nil
		},
	}
}
