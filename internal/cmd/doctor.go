package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dotcommander/deepresearch/internal/agent"
	"github.com/dotcommander/deepresearch/internal/doctor"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/spf13/cobra"
)

func newDoctorCmd(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"troubleshoot"},
		Short:   "Check the API key, network and OpenAI connectivity",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			d := doctor.New(rt.cfg.Doctor, agent.New(&rt.cfg, nil, nil))
			if asJSON {
				res := d.Run(ctx, nil)
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return fmt.Errorf("encode doctor result: %w", err)
				}
				return doctorError(res)
			}

			w := os.Stdout
			fmt.Fprintln(w, present.StdoutStyles().AppName.Render("OpenAI Connection Troubleshooter"))
			fmt.Fprintln(w, present.StdoutStyles().Comment.Render(strings.Repeat("=", 40)))
			if len(rt.cfg.EnvFiles) > 0 {
				fmt.Fprintln(w, present.StdoutStyles().Comment.Render("Loaded "+strings.Join(rt.cfg.EnvFiles, ", ")))
			}
			step := 0
			res := d.Run(ctx, func(c doctor.Check) {
				step++
				printCheck(w, step, c)
			})
			printSuggestions(w, res.Suggestions)
			return doctorError(res)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, flagHelp("doctor-json"))
	return cmd
}

func printCheck(w io.Writer, step int, c doctor.Check) {
	s := present.StdoutStyles()
	fmt.Fprintf(w, "\n%s %s\n", s.Stage.Render(fmt.Sprintf("%d.", step)), c.Name)
	switch c.Status {
	case doctor.StatusOK:
		fmt.Fprintln(w, "  "+s.Success.Render("Success:"), c.Detail)
	case doctor.StatusFail:
		fmt.Fprintln(w, "  "+s.Failure.Render("Failure:"), c.Detail)
	default:
		fmt.Fprintln(w, "  "+s.Skipped.Render("Skipped"))
	}
	if c.Hint != "" {
		fmt.Fprintln(w, s.Hint.Render(c.Hint))
	}
}

func printSuggestions(w io.Writer, suggestions []string) {
	s := present.StdoutStyles()
	fmt.Fprintf(w, "\n%s\n", s.AppName.Render("Suggestions"))
	for _, line := range suggestions {
		fmt.Fprintf(w, "  %s %s\n", s.Comment.Render("-"), line)
	}
}

func doctorError(res doctor.Result) error {
	if res.OK() {
		return nil
	}
	var failed []string
	for _, c := range res.Checks {
		if c.Status == doctor.StatusFail {
			failed = append(failed, c.Name)
		}
	}
	return errs.Error{
		Reason: "Connectivity checks failed.",
		Err:    errs.UserErrorf("failed: %s", strings.Join(failed, ", ")),
	}
}
