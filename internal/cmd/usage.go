package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"

	"github.com/dotcommander/deepresearch/internal/present"
)

// usageFunc replaces cobra's usage with a colored one: the binary name as a
// gradient on truecolor terminals, one line per visible flag, and the
// command's example highlighted.
func usageFunc(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	styles := present.StdoutStyles()

	name := filepath.Base(os.Args[0])
	if present.StdoutRenderer().ColorProfile() == termenv.TrueColor {
		name = present.MakeGradientText(styles.AppName, name)
	}
	fmt.Fprintf(w, "Usage:\n  %s %s\n\nOptions:\n", name, styles.CliArgs.Render("[OPTIONS] [QUERY]"))

	cmd.Flags().VisitAll(func(f *flag.Flag) {
		if !f.Hidden {
			writeFlagUsage(w, styles, f)
		}
	})

	if cmd.HasExample() {
		fmt.Fprintf(w, "\nExample:\n  %s\n  %s\n",
			styles.Comment.Render("# "+cmd.Example),
			highlightExample(styles, exampleCommand(cmd.Example)))
	}
	return nil
}

func writeFlagUsage(w io.Writer, styles present.Styles, f *flag.Flag) {
	long := styles.Flag.Render("--" + f.Name)
	desc := styles.FlagDesc.Render(f.Usage)
	if f.Shorthand == "" {
		fmt.Fprintf(w, "  %-44s %s\n", long, desc)
		return
	}
	fmt.Fprintf(w, "  %s%s %-40s %s\n", styles.Flag.Render("-"+f.Shorthand), styles.FlagComma, long, desc)
}
