package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/mail"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/research"
	"github.com/dotcommander/deepresearch/internal/storage"
	"github.com/spf13/cobra"
)

func newReportsCmd(rt *runtime) *cobra.Command {
	reportsCmd := &cobra.Command{
		Use:     "reports",
		Aliases: []string{"report"},
		Short:   "Manage saved research reports",
	}

	reportsCmd.AddCommand(newReportsListCmd(rt))
	reportsCmd.AddCommand(newReportsShowCmd(rt))
	reportsCmd.AddCommand(newReportsExportCmd(rt))
	reportsCmd.AddCommand(newReportsEmailCmd(rt))
	reportsCmd.AddCommand(newReportsDeleteCmd(rt))
	reportsCmd.AddCommand(newReportsPruneCmd(rt))

	return reportsCmd
}

func (rt *runtime) reportCompletions(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if rt.cfg.CachePath == "" {
		return nil, cobra.ShellCompDirectiveDefault
	}
	store, err := research.OpenStore(rt.cfg.CachePath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	defer store.Close() //nolint:errcheck
	return store.Completions(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func newReportsListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved reports",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return listReports(&rt.cfg)
		},
	}
}

func newReportsShowCmd(rt *runtime) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:               "show [id-or-query]",
		Short:             "Show a saved report, the latest one by default",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: rt.reportCompletions,
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			report, err := findReport(rt.cfg.CachePath, args)
			if err != nil {
				return err
			}
			return showReport(&rt.cfg, report, format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", flagDesc("Output format: markdown, json or html"))
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"markdown", "json", "html"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func newReportsExportCmd(rt *runtime) *cobra.Command {
	dir := "."
	cmd := &cobra.Command{
		Use:               "export [id-or-query]",
		Short:             "Write a saved report as markdown, HTML and chart images",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: rt.reportCompletions,
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			report, err := findReport(rt.cfg.CachePath, args)
			if err != nil {
				return err
			}
			return exportReport(*report, dir, rt.cfg.Quiet)
		},
	}
	cmd.Flags().StringVarP(&dir, "output-dir", "o", dir, flagHelp("export-dir"))
	return cmd
}

func newReportsEmailCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:               "email [id-or-query]",
		Short:             "Mail a saved report through SendGrid",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: rt.reportCompletions,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			report, err := findReport(rt.cfg.CachePath, args)
			if err != nil {
				return err
			}
			sender, err := mail.NewSendGrid(rt.cfg.Email)
			if err != nil {
				return errs.Wrap(err, "Email is not configured.")
			}
			msg, err := mail.Compose(research.MailContent(*report), time.Now())
			if err != nil {
				return errs.Wrap(err, "Could not build the email.")
			}
			if err := sender.Send(cmd.Context(), msg); err != nil {
				return errs.Wrap(err, "Could not send the email.")
			}
			if !rt.cfg.Quiet {
				fmt.Fprintln(os.Stderr, "Report mailed to", present.StderrStyles().Link.Render(rt.cfg.Email.To))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&rt.cfg.Email.To, "to", rt.cfg.Email.To, flagHelp("email-to"))
	return cmd
}

func newReportsDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:               "delete <id-or-query> [more...]",
		Short:             "Delete saved reports",
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: rt.reportCompletions,
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return deleteReports(&rt.cfg, args)
		},
	}
}

func newReportsPruneCmd(rt *runtime) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete reports older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return pruneReports(&rt.cfg, olderThan)
		},
	}
	cmd.Flags().Var(newDurationFlag(olderThan, &olderThan), "older-than", flagHelp("older-than"))
	return cmd
}

func findReport(cachePath string, args []string) (*research.Report, error) {
	store, err := research.OpenStore(cachePath)
	if err != nil {
		return nil, errs.Wrap(err, "Could not open the report store.")
	}
	defer store.Close() //nolint:errcheck

	var in string
	if len(args) > 0 {
		in = args[0]
	}
	report, err := store.Find(in)
	if err != nil {
		return nil, errs.Wrap(err, "Could not find the report.")
	}
	return report, nil
}

func showReport(cfg *config.Config, report *research.Report, format string) error {
	switch strings.ToLower(format) {
	case "", "markdown", "md":
		printMarkdown(report.Markdown(), cfg.Raw, cfg.WordWrap)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	case "html":
		msg, err := mail.Compose(research.MailContent(*report), report.CreatedAt.Local())
		if err != nil {
			return errs.Wrap(err, "Could not render the report.")
		}
		fmt.Print(msg.HTML)
	default:
		return errs.Wrap(errs.UserErrorf("unknown format %q", format), "Use markdown, json or html.")
	}
	return nil
}

func listReports(cfg *config.Config) error {
	store, err := research.OpenStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the report store.")
	}
	defer store.Close() //nolint:errcheck
	return listEntries(cfg, "Reports", store.List(), reportSuggestions)
}

func reportSuggestions(id string) []string {
	return []string{
		"deepresearch reports show " + id,
		"deepresearch reports export " + id,
		"deepresearch reports delete " + id,
	}
}

func deleteReports(cfg *config.Config, targets []string) error {
	store, err := research.OpenStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the report store.")
	}
	defer store.Close() //nolint:errcheck

	for _, in := range targets {
		entry, err := store.Delete(in)
		if err != nil {
			return errs.Wrap(err, "Couldn't delete report.")
		}
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "Report deleted:", storage.Short(entry.ID))
		}
	}
	return nil
}

func pruneReports(cfg *config.Config, olderThan time.Duration) error {
	if olderThan <= 0 {
		return errs.Wrap(errs.UserErrorf("missing --older-than"), "Could not delete old reports.")
	}
	store, err := research.OpenStore(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the report store.")
	}
	defer store.Close() //nolint:errcheck

	old := store.ListOlderThan(olderThan)
	if err := confirmPrune(cfg.Quiet, "reports", old, olderThan); err != nil || len(old) == 0 {
		return err
	}

	pruned, err := store.Prune(olderThan)
	if err != nil {
		return errs.Wrap(err, "Couldn't delete old reports.")
	}
	if !cfg.Quiet {
		fmt.Fprintf(os.Stderr, "Deleted %d reports.\n", len(pruned))
	}
	return nil
}
