package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/x/editor"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/logging"
	"github.com/spf13/cobra"
)

type runtime struct {
	build    BuildInfo
	cfg      config.Config
	cfgErr   error
	logClose func() error
}

// NewRootCmd constructs the Cobra root command.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	root, _ := newRoot(build, cfg, cfgErr)
	return root
}

func newRoot(build BuildInfo, cfg config.Config, cfgErr error) (*cobra.Command, *runtime) {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rt := &runtime{build: normalizeBuildInfo(build), cfg: cfg, cfgErr: cfgErr}

	rootCmd := &cobra.Command{
		Use:   "deepresearch [query]",
		Short: "Deep stock market research from the command line.",
		Long: "Plans web searches for a query, summarizes the results, writes a report, " +
			"analyzes the stocks it covers, charts them and optionally mails the result.",
		SilenceUsage:      true,
		SilenceErrors:     true,
		Example:           randomExample(),
		Args:              cobra.ArbitraryArgs,
		PersistentPreRunE: rt.startLogging,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runResearch(ctx, args)
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initPersistentFlags(rootCmd, &rt.cfg)
	initResearchFlags(rootCmd, &rt.cfg)

	flags := rootCmd.Flags()
	flags.BoolVar(&memprofile, "memprofile", false, "Write memory profiles to CWD")
	_ = flags.MarkHidden("memprofile")

	// Commands.
	rootCmd.AddCommand(newResearchCmd(rt))
	rootCmd.AddCommand(newChatCmd(rt))
	rootCmd.AddCommand(newDoctorCmd(rt))
	rootCmd.AddCommand(newReportsCmd(rt))
	rootCmd.AddCommand(newHistoryCmd(rt))
	rootCmd.AddCommand(newConfigCmd(rt))
	rootCmd.AddCommand(newMCPCmd(rt))
	rootCmd.AddCommand(newManCmd(rootCmd))
	rootCmd.AddCommand(newUpgradeCmd(rt))

	// Enable completion now that we have subcommands.
	rootCmd.InitDefaultCompletionCmd()

	return rootCmd, rt
}

func (rt *runtime) startLogging(cmd *cobra.Command, _ []string) error {
	closer, err := logging.Setup(logging.Options{
		Level:   rt.cfg.LogLevel,
		File:    rt.cfg.LogFile,
		Format:  rt.cfg.LogFormat,
		Verbose: rt.cfg.Verbose,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	rt.logClose = closer
	logging.L.Debug("command start", "cmd", cmd.CommandPath(), "version", rt.build.Version, "env_files", rt.cfg.EnvFiles)
	return nil
}

// runRoot runs the command tree and closes the log file afterwards, also
// when a command fails.
func (rt *runtime) runRoot(root *cobra.Command) error {
	err := root.Execute()
	if err != nil {
		logging.L.Error("command failed", "err", err)
	}
	if cerr := rt.stopLogging(); err == nil {
		err = cerr
	}
	return err
}

func (rt *runtime) stopLogging() error {
	if rt.logClose == nil {
		return nil
	}
	closer := rt.logClose
	rt.logClose = nil
	return closer()
}

func prefixFromEditor(appName string) (string, error) {
	f, err := os.CreateTemp("", "query")
	if err != nil {
		return "", fmt.Errorf("could not create temporary file: %w", err)
	}
	_ = f.Close()
	defer func() { _ = os.Remove(f.Name()) }()

	c, err := editor.Cmd(
		appName,
		f.Name(),
	)
	if err != nil {
		return "", fmt.Errorf("could not open editor: %w", err)
	}
	c.Stdin = os.Stdin
	c.Stderr = os.Stderr
	c.Stdout = os.Stdout
	if err := c.Run(); err != nil {
		return "", fmt.Errorf("could not open editor: %w", err)
	}
	query, err := os.ReadFile(f.Name())
	if err != nil {
		return "", fmt.Errorf("could not read file: %w", err)
	}
	return string(query), nil
}

func removeWhitespace(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return s
}

// promptForResearch asks for the research API, model and query. The model
// questions are only shown when ask is set or no model is configured.
func promptForResearch(cfg *config.Config, ask bool) error {
	r := &cfg.Research
	apis := make([]huh.Option[string], 0, len(cfg.APIs))
	opts := map[string][]huh.Option[string]{}
	for _, api := range cfg.APIs {
		apis = append(apis, huh.NewOption(api.Name, api.Name))
		for name, model := range api.Models {
			opts[api.Name] = append(opts[api.Name], huh.NewOption(name, name))

			if (r.API == "" || r.API == api.Name) &&
				(r.Model == name || slices.Contains(model.Aliases, r.Model)) {
				r.API = api.Name
				r.Model = name
			}
		}
	}

	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose the API:").
				Options(apis...).
				Value(&r.API),
			huh.NewSelect[string]().
				TitleFunc(func() string {
					return fmt.Sprintf("Choose the model for '%s':", r.API)
				}, &r.API).
				OptionsFunc(func() []huh.Option[string] {
					return opts[r.API]
				}, &r.API).
				Value(&r.Model),
		).WithHideFunc(func() bool {
			return !ask && r.Model != ""
		}),
		huh.NewGroup(
			huh.NewText().
				TitleFunc(func() string {
					return fmt.Sprintf("What should %s/%s research?", r.API, r.Model)
				}, &r.Model).
				Placeholder("Outlook for NVDA and AMD over the next 6 months").
				Value(&cfg.Prefix),
		).WithHideFunc(func() bool {
			return cfg.Prefix != ""
		}),
	).
		WithTheme(themeFrom(cfg.Theme)).
		Run(); err != nil {
		return fmt.Errorf("prompt form: %w", err)
	}
	return nil
}

func themeFrom(theme string) *huh.Theme {
	switch theme {
	case "dracula":
		return huh.ThemeDracula()
	case "catppuccin":
		return huh.ThemeCatppuccin()
	case "base16":
		return huh.ThemeBase16()
	default:
		return huh.ThemeCharm()
	}
}
