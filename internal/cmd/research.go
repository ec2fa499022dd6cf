package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/dotcommander/deepresearch/internal/agent"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/mail"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/research"
	"github.com/dotcommander/deepresearch/internal/storage"
	"github.com/dotcommander/deepresearch/internal/tui"
	"github.com/dotcommander/deepresearch/internal/websearch"
	"github.com/spf13/cobra"
)

func newResearchCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "research [query]",
		Aliases: []string{"run"},
		Short:   "Research a query (the default command)",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runResearch(ctx, args)
		},
	}
	initResearchFlags(cmd, &rt.cfg)
	return cmd
}

func (rt *runtime) runResearch(ctx context.Context, args []string) error {
	cfg := &rt.cfg
	cfg.Prefix = removeWhitespace(strings.Join(args, " "))
	if os.Getenv("VIMRUNTIME") != "" {
		cfg.Quiet = true
	}

	if !present.IsInputTTY() {
		piped, err := readStdin(cfg)
		if err != nil {
			return errs.Wrap(err, "Unable to read stdin.")
		}
		cfg.Prefix = joinQuery(cfg.Prefix, piped)
	}
	if cfg.Prefix == "" && present.IsInputTTY() && cfg.OpenEditor {
		query, err := prefixFromEditor(cfg.SettingsPath)
		if err != nil {
			return err
		}
		cfg.Prefix = removeWhitespace(query)
	}
	if (cfg.Prefix == "" || cfg.AskModel) && present.IsInputTTY() {
		if err := promptForResearch(cfg, cfg.AskModel); errors.Is(err, huh.ErrUserAborted) {
			return errs.Wrap(err, "User canceled.")
		} else if err != nil {
			return errs.Wrap(err, "Prompt failed.")
		}
	}

	query := strings.TrimSpace(cfg.Prefix)
	if query == "" {
		return errs.Error{
			Reason: "You haven't provided a research query.",
			Err: errs.UserErrorf(
				"You can give your query as arguments and/or pipe it from STDIN.\nExample: %s",
				present.StdoutStyles().InlineCode.Render(`deepresearch "outlook for NVDA over the next 6 months"`),
			),
		}
	}

	mgr, err := rt.newManager(cfg.Research)
	if err != nil {
		return err
	}
	report, err := rt.execute(ctx, mgr, query)
	if err != nil {
		return err
	}

	if err := saveReport(cfg.NoCache, cfg.Quiet, cfg.CachePath, &report); err != nil {
		return err
	}
	if dir := cfg.Research.OutputDir; dir != "" {
		if err := exportReport(report, dir, cfg.Quiet); err != nil {
			return err
		}
	}
	printMarkdown(report.Markdown(), cfg.Raw, cfg.WordWrap)
	return nil
}

func (rt *runtime) newManager(settings config.ResearchSettings) (*research.Manager, error) {
	cfg := &rt.cfg
	search, err := websearch.New(cfg.Search, nil)
	if err != nil {
		return nil, errs.Wrap(err, "Could not set up web search.")
	}
	var opts []research.Option
	if cfg.Email.Enabled {
		sender, err := mail.NewSendGrid(cfg.Email)
		if err != nil {
			return nil, errs.Wrap(err, "Email delivery is enabled but not configured.")
		}
		opts = append(opts, research.WithSender(sender))
	}
	return research.NewManager(agent.New(cfg, nil, nil), search, settings, opts...), nil
}

// execute runs the pipeline behind the progress view when stderr is a
// terminal, and with plain status lines otherwise.
func (rt *runtime) execute(ctx context.Context, runner tui.Runner, query string) (research.Report, error) {
	if present.IsErrorTTY() && !rt.cfg.Quiet {
		opts := []tea.ProgramOption{tea.WithOutput(os.Stderr)}
		if !present.IsInputTTY() {
			opts = append(opts, tea.WithInput(nil))
		}
		m := tui.NewResearch(ctx, present.StderrRenderer(), &rt.cfg, runner, query)
		final, err := tea.NewProgram(m, opts...).Run()
		if err != nil {
			return research.Report{}, errs.Wrap(err, "Couldn't start Bubble Tea program.")
		}
		m = final.(*tui.Research)
		if m.Error != nil {
			return m.Report, *m.Error
		}
		return m.Report, nil
	}

	report, err := runner.Run(ctx, query, func(s research.Status) {
		printStatus(s, rt.cfg.Quiet)
	})
	if err != nil {
		return report, *tui.ResearchError(err)
	}
	return report, nil
}

func printStatus(s research.Status, quiet bool) {
	styles := present.StderrStyles()
	switch {
	case s.Warning:
		fmt.Fprintln(os.Stderr, styles.Failure.Render("!"), styles.Comment.Render(s.Message))
	case !quiet:
		fmt.Fprintln(os.Stderr, styles.Stage.Render(fmt.Sprintf("[%s]", s.Stage)), s.Message)
	}
}

func saveReport(noCache, quiet bool, cachePath string, report *research.Report) error {
	if noCache {
		if !quiet {
			fmt.Fprintf(
				os.Stderr,
				"\nReport was not saved because %s or %s is set.\n",
				present.StderrStyles().InlineCode.Render("--no-cache"),
				present.StderrStyles().InlineCode.Render("NO_CACHE"),
			)
		}
		return nil
	}

	store, err := research.OpenStore(cachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the report store.")
	}
	defer store.Close() //nolint:errcheck

	if err := store.Save(report); err != nil {
		return errs.Wrap(err, "There was a problem saving the report.")
	}
	logging.L.Info("report saved", "id", report.ID, "query", report.Query)
	if !quiet {
		fmt.Fprintln(
			os.Stderr,
			"\nReport saved:",
			present.StderrStyles().InlineCode.Render(storage.Short(report.ID)),
			present.StderrStyles().Comment.Render(report.Title()),
		)
	}
	return nil
}

func exportReport(report research.Report, dir string, quiet bool) error {
	paths, err := report.Export(dir, time.Now())
	if err != nil {
		return errs.Wrapf(err, "Could not export the report to %s.", dir)
	}
	if !quiet {
		for _, p := range paths {
			present.PrintConfirmation(os.Stderr, "wrote", present.StderrStyles().Link.Render(p))
		}
	}
	return nil
}

func printMarkdown(md string, raw bool, wordWrap int) {
	if present.IsOutputTTY() && !raw {
		if formatted, err := present.RenderMarkdownForTTY(md, wordWrap); err == nil {
			md = formatted
		}
	}
	fmt.Print(md)
	if !strings.HasSuffix(md, "\n") {
		fmt.Println()
	}
}

func joinQuery(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
