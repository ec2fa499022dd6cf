package cmd

import (
	"slices"
	"strings"

	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/websearch"
	"github.com/spf13/cobra"
)

func initPersistentFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()
	flags.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, flagHelp("verbose"))
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, flagHelp("log-level"))
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, flagHelp("log-file"))
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, flagHelp("log-format"))
	_ = cmd.RegisterFlagCompletionFunc("log-level", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("log-format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "logfmt"}, cobra.ShellCompDirectiveNoFileComp
	})
}

// initResearchFlags registers the research flags. The root command and the
// research subcommand share them.
func initResearchFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.StringVarP(&cfg.Research.API, "api", "a", cfg.Research.API, flagHelp("research-api"))
	flags.StringVarP(&cfg.Research.Model, "model", "m", cfg.Research.Model, flagHelp("research-model"))
	flags.BoolVarP(&cfg.AskModel, "ask-model", "M", cfg.AskModel, flagHelp("ask-model"))
	flags.IntVarP(&cfg.Research.MaxSearches, "max-searches", "n", cfg.Research.MaxSearches, flagHelp("max-searches"))
	flags.IntVar(&cfg.Research.SearchConcurrency, "concurrency", cfg.Research.SearchConcurrency, flagHelp("concurrency"))
	flags.StringVar(&cfg.Search.Provider, "search-provider", cfg.Search.Provider, flagHelp("search-provider"))
	flags.BoolVar(&cfg.Search.FetchPages, "fetch-pages", cfg.Search.FetchPages, flagHelp("fetch-pages"))
	flags.BoolVar(&cfg.Research.NoAnalysis, "no-analysis", cfg.Research.NoAnalysis, flagHelp("no-analysis"))
	flags.BoolVar(&cfg.Research.NoCharts, "no-charts", cfg.Research.NoCharts, flagHelp("no-charts"))
	flags.BoolVar(&cfg.Email.Enabled, "email", cfg.Email.Enabled, flagHelp("email"))
	flags.StringVar(&cfg.Email.To, "email-to", cfg.Email.To, flagHelp("email-to"))
	flags.StringVarP(&cfg.Research.OutputDir, "output-dir", "o", cfg.Research.OutputDir, flagHelp("output-dir"))
	flags.BoolVarP(&cfg.OpenEditor, "editor", "e", false, flagDesc("Write the query in $EDITOR"))
	flags.StringVarP(&cfg.HTTPProxy, "http-proxy", "x", cfg.HTTPProxy, flagHelp("http-proxy"))
	flags.BoolVarP(&cfg.Raw, "raw", "r", cfg.Raw, flagHelp("raw"))
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, flagHelp("quiet"))
	flags.BoolVar(&cfg.NoCache, "no-cache", cfg.NoCache, flagDesc("Do not save the report"))
	flags.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, flagHelp("max-retries"))
	flags.Int64Var(&cfg.MaxCompletionTokens, "max-completion-tokens", cfg.MaxCompletionTokens, flagHelp("max-completion-tokens"))
	flags.Var(newDurationFlag(cfg.RequestTimeout, &cfg.RequestTimeout), "request-timeout", flagHelp("request-timeout"))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, flagHelp("word-wrap"))
	flags.UintVar(&cfg.Fanciness, "fanciness", cfg.Fanciness, flagHelp("fanciness"))
	flags.StringVar(&cfg.StatusText, "status-text", cfg.StatusText, flagHelp("status-text"))
	flags.StringVar(&cfg.Theme, "theme", cfg.Theme, flagHelp("theme"))
	flags.SortFlags = false

	_ = cmd.RegisterFlagCompletionFunc("search-provider", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{websearch.DuckDuckGo, websearch.Tavily, websearch.Brave}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("model", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return modelNames(cfg, toComplete), cobra.ShellCompDirectiveNoFileComp
	})
}

func modelNames(cfg *config.Config, prefix string) []string {
	var names []string
	for _, api := range cfg.APIs {
		for name := range api.Models {
			if strings.HasPrefix(name, prefix) {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names
}
