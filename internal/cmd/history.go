package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	timeago "github.com/caarlos0/timea.go"
	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/storage"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage saved chat conversations",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List saved conversations",
			Args:  cobra.NoArgs,
			RunE:  rt.withConfig(func(_ *cobra.Command, _ []string) error { return listConversations(&rt.cfg) }),
		},
		newHistoryShowCmd(rt),
		&cobra.Command{
			Use:               "delete <id-or-title> [more...]",
			Short:             "Delete saved conversations",
			Args:              cobra.MinimumNArgs(1),
			ValidArgsFunction: rt.conversationCompletions,
			RunE:              rt.withConfig(func(_ *cobra.Command, args []string) error { return deleteConversations(&rt.cfg, args) }),
		},
		newHistoryPruneCmd(rt),
	)
	return cmd
}

// withConfig fails the command when the settings could not be loaded.
func (rt *runtime) withConfig(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if rt.cfgErr != nil {
			return rt.cfgErr
		}
		return run(cmd, args)
	}
}

func (rt *runtime) conversationCompletions(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if rt.cfg.CachePath == "" {
		return nil, cobra.ShellCompDirectiveDefault
	}
	convos, err := openConversations(rt.cfg.CachePath)
	if err != nil {
		return nil, cobra.ShellCompDirectiveDefault
	}
	defer convos.Close() //nolint:errcheck
	return convos.index.Completions(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func newHistoryShowCmd(rt *runtime) *cobra.Command {
	var last bool
	cmd := &cobra.Command{
		Use:               "show [id-or-title]",
		Short:             "Print a saved conversation",
		Args:              cobra.MaximumNArgs(1),
		ValidArgsFunction: rt.conversationCompletions,
		RunE: rt.withConfig(func(_ *cobra.Command, args []string) error {
			drainStdin()
			cfg := rt.cfg
			cfg.Show, cfg.ShowLast = "", last || len(args) == 0
			if len(args) == 1 {
				cfg.Show = args[0]
			}
			return showConversation(&cfg)
		}),
	}
	cmd.Flags().BoolVarP(&last, "last", "S", false, flagHelp("last"))
	return cmd
}

func newHistoryPruneCmd(rt *runtime) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete conversations older than a duration",
		Args:  cobra.NoArgs,
		RunE: rt.withConfig(func(_ *cobra.Command, _ []string) error {
			return pruneConversations(&rt.cfg, olderThan)
		}),
	}
	cmd.Flags().Var(newDurationFlag(olderThan, &olderThan), "older-than", flagHelp("older-than"))
	return cmd
}

func listConversations(cfg *config.Config) error {
	convos, err := openConversations(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the conversation history.")
	}
	defer convos.Close() //nolint:errcheck
	return listEntries(cfg, "Conversations", convos.index.List(), func(id string) []string {
		return []string{
			"deepresearch history show " + id,
			"deepresearch chat --continue " + id,
			"deepresearch history delete " + id,
		}
	})
}

func showConversation(cfg *config.Config) error {
	convos, err := openConversations(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the conversation history.")
	}
	defer convos.Close() //nolint:errcheck

	query := cfg.Show
	if cfg.ShowLast {
		query = ""
	}
	e, err := convos.resolve(query, cfg.ShowLast)
	if err != nil {
		return errs.Wrap(err, "Could not find the conversation.")
	}
	msgs, err := convos.messages(e.ID)
	if err != nil {
		return errs.Wrap(err, "Could not load the conversation.")
	}
	printMarkdown(proto.Conversation(msgs).String(), cfg.Raw, cfg.WordWrap)
	return nil
}

func deleteConversations(cfg *config.Config, targets []string) error {
	convos, err := openConversations(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the conversation history.")
	}
	defer convos.Close() //nolint:errcheck

	for _, in := range targets {
		e, err := convos.index.Find(in)
		if err != nil {
			return errs.Wrapf(err, "Could not find conversation %q.", in)
		}
		if err := convos.remove(e.ID); err != nil {
			return errs.Wrap(err, "Could not delete the conversation.")
		}
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "Conversation deleted:", storage.Short(e.ID))
		}
	}
	return nil
}

func pruneConversations(cfg *config.Config, olderThan time.Duration) error {
	if olderThan == 0 {
		return errs.Wrap(errs.UserErrorf("missing --older-than"), "Could not delete old conversations.")
	}
	convos, err := openConversations(cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the conversation history.")
	}
	defer convos.Close() //nolint:errcheck

	old := convos.index.ListOlderThan(olderThan)
	if err := confirmPrune(cfg.Quiet, "conversations", old, olderThan); err != nil || len(old) == 0 {
		return err
	}
	for _, e := range old {
		if err := convos.remove(e.ID); err != nil {
			return errs.Wrap(err, "Could not delete old conversations.")
		}
	}
	if !cfg.Quiet {
		fmt.Fprintf(os.Stderr, "Deleted %d conversations.\n", len(old))
	}
	return nil
}

// listEntries lets the user pick an entry on a terminal and prints a plain
// table otherwise.
func listEntries(cfg *config.Config, title string, entries []storage.Entry, suggest func(id string) []string) error {
	if len(entries) == 0 {
		fmt.Fprintf(os.Stderr, "No %s found.\n", strings.ToLower(title))
		return nil
	}
	if present.IsInputTTY() && present.IsOutputTTY() && !cfg.Raw {
		pickEntry(title, entries, suggest)
		return nil
	}
	printEntries(os.Stdout, entries)
	return nil
}

// pickEntry shows entries in a select prompt, copies the chosen ID and
// prints the commands that take it.
func pickEntry(title string, entries []storage.Entry, suggest func(id string) []string) {
	styles := present.StdoutStyles()
	opts := make([]huh.Option[string], 0, len(entries))
	for _, e := range entries {
		label := styles.SHA1.Render(storage.Short(e.ID)) + " " +
			styles.ConversationList.Render(e.Title, styles.Timeago.Render(timeago.Of(e.UpdatedAt)))
		if e.Model != nil {
			label += styles.Comment.Render(*e.Model)
		}
		if e.API != nil {
			label += styles.Comment.Render(" (" + *e.API + ")")
		}
		opts = append(opts, huh.NewOption(label, e.ID))
	}

	var id string
	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().Title(title).Value(&id).Options(opts...),
	)).Run(); err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, err)
		}
		return
	}

	_ = clipboard.WriteAll(id)
	termenv.Copy(id)
	present.PrintConfirmation(os.Stdout, "copied", id)
	fmt.Println(styles.Comment.Render("You can use this ID with the following commands:"))
	for _, s := range suggest(id) {
		fmt.Printf("  %s\n", styles.InlineCode.Render(s))
	}
}

func printEntries(w io.Writer, entries []storage.Entry) {
	styles := present.StdoutStyles()
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\n",
			styles.SHA1.Render(storage.Short(e.ID)), e.Title, styles.Timeago.Render(timeago.Of(e.UpdatedAt)))
	}
}

// confirmPrune lists what a prune would delete and asks before going ahead.
// Quiet runs skip the question; non-interactive runs are told to rerun
// with --quiet.
func confirmPrune(quiet bool, kind string, old []storage.Entry, olderThan time.Duration) error {
	if len(old) == 0 {
		if !quiet {
			fmt.Fprintf(os.Stderr, "No %s found.\n", kind)
		}
		return nil
	}
	if quiet {
		return nil
	}

	printEntries(os.Stderr, old)
	if !present.IsOutputTTY() || !present.IsInputTTY() {
		fmt.Fprintln(os.Stderr)
		//nolint:wrapcheck
		return errs.UserErrorf("To delete the %s above, run: %s", kind, strings.Join(append(os.Args, "--quiet"), " "))
	}

	var ok bool
	if err := huh.Run(huh.NewConfirm().
		Title(fmt.Sprintf("Delete %s older than %s?", kind, olderThan)).
		Description(fmt.Sprintf("This deletes the %d %s listed above.", len(old), kind)).
		Value(&ok)); err != nil {
		return errs.Wrapf(err, "Could not delete old %s.", kind)
	}
	if !ok {
		return errs.Wrap(huh.ErrUserAborted, "Nothing was deleted.")
	}
	return nil
}
