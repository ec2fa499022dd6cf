package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"

	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/present"
)

// handleError is the last stop for an error returned by a command.
func handleError(err error) {
	maybeWriteMemProfile()
	drainStdin()
	logging.L.Debug("command failed", "err", err)
	renderError(os.Stderr, err)
}

// renderError prints err as a header and details block. Flag errors get a
// pointer to help instead of details, and aborted prompts print no details.
func renderError(w io.Writer, err error) {
	styles := present.StderrStyles()
	pad := styles.ErrPadding.Render

	var ferr flagParseError
	if errors.As(err, &ferr) && ferr.Flag() != "" {
		help := fmt.Sprintf("Check out %s %s",
			styles.InlineCode.Render("deepresearch -h"),
			styles.Comment.Render("for help."))
		reason := fmt.Sprintf(ferr.ReasonFormat(), styles.InlineCode.Render(ferr.Flag()))
		fmt.Fprintf(w, "\n%s\n\n%s\n\n", help, reason)
		return
	}

	e, ok := errs.As(err)
	if !ok {
		fmt.Fprintf(w, "\n%s\n\n", pad(styles.ErrorDetails.Render(err.Error())))
		return
	}
	fmt.Fprintf(w, "\n%s\n\n", pad(styles.ErrorHeader.String(), e.Reason))
	if !errors.Is(e.Err, huh.ErrUserAborted) {
		fmt.Fprintf(w, "%s\n\n", pad(styles.ErrorDetails.Render(err.Error())))
	}
}
