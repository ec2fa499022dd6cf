package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/editor"
	"github.com/dotcommander/deepresearch/internal/config"
	"github.com/dotcommander/deepresearch/internal/errs"
	"github.com/dotcommander/deepresearch/internal/present"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(rt *runtime) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage settings",
		RunE: func(_ *cobra.Command, _ []string) error {
			// Editing works even when the settings file does not parse.
			return editSettings(&rt.cfg)
		},
	}

	configCmd.AddCommand(
		&cobra.Command{
			Use:   "edit",
			Short: "Open settings in $EDITOR",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return editSettings(&rt.cfg)
			},
		},
		&cobra.Command{
			Use:   "reset",
			Short: "Reset settings to defaults",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				return resetSettings(&rt.cfg)
			},
		},
		&cobra.Command{
			Use:       "dirs [config|cache]",
			Short:     "Print config and cache directories",
			Args:      cobra.MaximumNArgs(1),
			ValidArgs: []string{"config", "cache"},
			RunE: func(_ *cobra.Command, args []string) error {
				printDirs(os.Stdout, &rt.cfg, args)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective research, search, email and doctor settings",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if rt.cfgErr != nil {
					return rt.cfgErr
				}
				return showSettings(os.Stdout, &rt.cfg)
			},
		},
		&cobra.Command{
			Use:   "roles",
			Short: "List chat roles",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				if rt.cfgErr != nil {
					return rt.cfgErr
				}
				listRoles(os.Stdout, &rt.cfg)
				return nil
			},
		},
	)

	return configCmd
}

func editSettings(cfg *config.Config) error {
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	c, err := editor.Cmd(config.AppName, cfg.SettingsPath)
	if err != nil {
		return errs.Wrap(err, "Could not edit your settings file.")
	}
	c.Stdin = os.Stdin
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return errs.Wrapf(err, "Missing %s.", present.StderrStyles().InlineCode.Render("$EDITOR"))
	}

	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr, "Wrote config file to:", cfg.SettingsPath)
	}
	return nil
}

// resetSettings moves the settings file to a .bak copy and writes a fresh
// one from the template.
func resetSettings(cfg *config.Config) error {
	backup := cfg.SettingsPath + ".bak"
	if err := copyFile(cfg.SettingsPath, backup); err != nil {
		return errs.Wrap(err, "Couldn't backup config file.")
	}
	if err := os.Remove(cfg.SettingsPath); err != nil {
		return errs.Wrap(err, "Couldn't remove config file.")
	}
	if err := config.WriteConfigFile(cfg.SettingsPath); err != nil {
		return errs.Wrap(err, "Couldn't write new config file.")
	}

	if !cfg.Quiet {
		fmt.Fprintln(os.Stderr, "\nSettings restored to defaults!")
		fmt.Fprintf(
			os.Stderr,
			"\n  %s %s\n\n",
			present.StderrStyles().Comment.Render("Your old settings have been saved to:"),
			present.StderrStyles().Link.Render(backup),
		)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return out.Close() //nolint:wrapcheck
}

func printDirs(w io.Writer, cfg *config.Config, args []string) {
	if len(args) > 0 {
		switch args[0] {
		case "config":
			fmt.Fprintln(w, filepath.Dir(cfg.SettingsPath))
			return
		case "cache":
			fmt.Fprintln(w, cfg.CachePath)
			return
		}
	}

	fmt.Fprintf(w, "Configuration: %s\n", filepath.Dir(cfg.SettingsPath))
	fmt.Fprintf(w, "%*sCache: %s\n", 8, " ", cfg.CachePath) //nolint:mnd
	fmt.Fprintf(w, "%*sLogs: %s\n", 9, " ", cfg.LogFile)    //nolint:mnd
}

type effectiveSettings struct {
	EnvFiles []string                `yaml:"env-files"`
	Research config.ResearchSettings `yaml:"research"`
	Search   config.SearchSettings   `yaml:"search"`
	Email    config.EmailSettings    `yaml:"email"`
	Doctor   config.DoctorSettings   `yaml:"doctor"`
	OpenAI   string                  `yaml:"openai-api-key"`
}

// showSettings prints the merged settings with secrets masked.
func showSettings(w io.Writer, cfg *config.Config) error {
	s := effectiveSettings{
		EnvFiles: cfg.EnvFiles,
		Research: cfg.Research,
		Search:   cfg.Search,
		Email:    cfg.Email,
		Doctor:   cfg.Doctor,
		OpenAI:   maskSecret(config.OpenAIKey()),
	}
	s.Search.TavilyAPIKey = maskSecret(s.Search.TavilyAPIKey)
	s.Search.BraveAPIKey = maskSecret(s.Search.BraveAPIKey)
	s.Email.SendGridAPIKey = maskSecret(s.Email.SendGridAPIKey)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2) //nolint:mnd
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	return enc.Close() //nolint:wrapcheck
}

func maskSecret(s string) string {
	const visible = 4
	if s == "" {
		return ""
	}
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return "..." + s[len(s)-visible:]
}
