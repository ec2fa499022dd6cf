package cmd

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dotcommander/deepresearch/internal/agent"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/dotcommander/deepresearch/internal/proto"
	"github.com/dotcommander/deepresearch/internal/research"
	"github.com/dotcommander/deepresearch/internal/tui"
	"github.com/spf13/cobra"
)

func newChatCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat [initial prompt]",
		Short: "Chat with the model, with research on demand",
		Long: "Start an interactive REPL for multi-turn conversations.\n\n" +
			"Type /research <query> to run the research pipeline; the report joins the\n" +
			"conversation so you can ask follow-up questions about it. /help lists the\n" +
			"other commands. Type /exit or press Ctrl+C to quit.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runChat(ctx, args)
		},
	}

	initChatFlags(cmd, &rt.cfg)
	_ = cmd.RegisterFlagCompletionFunc("continue", rt.conversationCompletions)
	return cmd
}

func initChatFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.StringVarP(&cfg.Model, "model", "m", cfg.Model, flagHelp("model"))
	flags.StringVarP(&cfg.API, "api", "a", cfg.API, flagHelp("api"))
	flags.StringVarP(&cfg.HTTPProxy, "http-proxy", "x", cfg.HTTPProxy, flagHelp("http-proxy"))
	flags.BoolVarP(&cfg.Format, "format", "f", cfg.Format, flagHelp("format"))
	flags.StringVar(&cfg.FormatAs, "format-as", cfg.FormatAs, flagHelp("format-as"))
	flags.BoolVarP(&cfg.Raw, "raw", "r", cfg.Raw, flagHelp("raw"))
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, flagHelp("quiet"))
	flags.StringVarP(&cfg.Continue, "continue", "c", "", flagHelp("continue"))
	flags.BoolVarP(&cfg.ContinueLast, "continue-last", "C", false, flagHelp("continue-last"))
	flags.StringVarP(&cfg.Title, "title", "t", cfg.Title, flagHelp("title"))
	flags.StringVarP(&cfg.Role, "role", "R", cfg.Role, flagHelp("role"))
	flags.BoolVar(&cfg.NoCache, "no-cache", cfg.NoCache, flagHelp("no-cache"))
	flags.Int64Var(&cfg.MaxTokens, "max-tokens", cfg.MaxTokens, flagHelp("max-tokens"))
	flags.Int64Var(&cfg.MaxCompletionTokens, "max-completion-tokens", cfg.MaxCompletionTokens, flagHelp("max-completion-tokens"))
	flags.Float64Var(&cfg.Temperature, "temp", cfg.Temperature, flagHelp("temp"))
	flags.Float64Var(&cfg.TopP, "topp", cfg.TopP, flagHelp("topp"))
	flags.Int64Var(&cfg.TopK, "topk", cfg.TopK, flagHelp("topk"))
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, flagHelp("max-retries"))
	flags.Var(newDurationFlag(cfg.RequestTimeout, &cfg.RequestTimeout), "request-timeout", flagHelp("request-timeout"))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, flagHelp("word-wrap"))
	flags.BoolVar(&cfg.NoLimit, "no-limit", cfg.NoLimit, flagHelp("no-limit"))
	flags.StringArrayVar(&cfg.Stop, "stop", cfg.Stop, flagHelp("stop"))
	flags.UintVar(&cfg.Fanciness, "fanciness", cfg.Fanciness, flagHelp("fanciness"))
	flags.StringVar(&cfg.StatusText, "status-text", cfg.StatusText, flagHelp("status-text"))
	flags.StringVar(&cfg.Theme, "theme", cfg.Theme, flagHelp("theme"))
	flags.StringArrayVar(&cfg.MCPDisable, "mcp-disable", nil, flagHelp("mcp-disable"))
	flags.BoolVar(&cfg.MCPNoInheritEnv, "mcp-no-inherit-env", cfg.MCPNoInheritEnv, flagHelp("mcp-no-inherit-env"))
	flags.SortFlags = false

	_ = cmd.RegisterFlagCompletionFunc("role", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return roleNames(cfg, toComplete), cobra.ShellCompDirectiveDefault
	})

	cmd.MarkFlagsMutuallyExclusive("continue", "continue-last")
}

func (rt *runtime) runChat(ctx context.Context, args []string) error {
	initialPrompt := strings.TrimSpace(strings.Join(args, " "))

	convos, err := openConversations(rt.cfg.CachePath)
	if err != nil {
		return errs.Wrap(err, "Could not open the conversation history.")
	}
	defer convos.Close() //nolint:errcheck

	pl, err := convos.plan(&rt.cfg)
	if err != nil {
		return err
	}
	rt.cfg.CacheWriteToID, rt.cfg.CacheWriteToTitle, rt.cfg.CacheReadFromID = pl.WriteID, pl.Title, pl.ReadID
	rt.cfg.API, rt.cfg.Model = pl.API, pl.Model

	var history []proto.Message
	if !rt.cfg.NoCache && pl.ReadID != "" {
		if history, err = convos.messages(pl.ReadID); err != nil {
			return errs.Wrap(err, "Could not load the conversation.")
		}
	}

	opts := tui.ChatOptions{
		Agent:   agent.New(&rt.cfg, convos.msgs, nil),
		History: history,
		Prompt:  initialPrompt,
		Save: func(msgs []proto.Message) error {
			return convos.saveChat(&rt.cfg, msgs, false)
		},
	}
	if mgr, err := rt.newManager(rt.cfg.Research); err != nil {
		logging.L.Warn("research disabled in chat", "err", err)
	} else {
		opts.Research = mgr
		opts.OnReport = func(r research.Report) error {
			return saveReport(rt.cfg.NoCache, true, rt.cfg.CachePath, &r)
		}
	}

	chat := tui.NewChat(ctx, present.StderrRenderer(), &rt.cfg, opts)

	p := tea.NewProgram(chat, tea.WithAltScreen(), tea.WithOutput(os.Stderr))
	m, err := p.Run()
	if err != nil {
		return errs.Wrap(err, "Couldn't start chat program.")
	}

	c := m.(*tui.Chat)
	if c.Error != nil {
		return *c.Error
	}

	if len(c.Messages()) > 0 {
		return convos.saveChat(&rt.cfg, c.Messages(), true)
	}

	return nil
}
