package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"xscraper/pkg/config"
	"xscraper/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage xscraper configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (XSCRAPER_*)
  - .env files (./.env, ~/.xscraper.env)
  - Configuration file
  - Default values (lowest priority)`,
}

// initCmd represents the config init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file holding every option at its default.

The file is written to --config, or to ~/.config/xscraper/config.yaml.`,
	RunE: runConfigInit,
}

// showCmd represents the config show command
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long: `Show the effective configuration after merging all sources.

The bearer token is masked.`,
	RunE: runConfigShow,
}

// validateCmd represents the config validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration from all sources and report every invalid value.`,
	RunE: runConfigValidate,
}

var forceInit bool

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(initCmd)
	configCmd.AddCommand(showCmd)
	configCmd.AddCommand(validateCmd)

	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultPath()
	}

	if _, err := os.Stat(path); err == nil && !forceInit {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(os.Stderr, "\nNext steps:")
	fmt.Fprintln(os.Stderr, "1. Edit the file, or store an account with 'xscraper auth login'")
	fmt.Fprintln(os.Stderr, "2. Run 'xscraper config validate' to check the configuration")
	fmt.Fprintln(os.Stderr, "3. Look up a post with 'xscraper lookup <id>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		return err
	}

	display := *cfg
	display.Twitter.BearerToken = mask(display.Twitter.BearerToken)

	data, err := yaml.Marshal(&display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Print(string(data))

	if configFile != "" {
		ui.PrintInfo("Configuration file", configFile)
	}
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(nil)
	if err != nil {
		ui.PrintError("Configuration has errors")
		// Validate joins every problem; list them one per line
		var joined interface{ Unwrap() []error }
		if !errors.As(err, &joined) {
			return err
		}
		for _, problem := range joined.Unwrap() {
			fmt.Fprintf(os.Stderr, "  - %v\n", problem)
		}
		return errors.New("invalid configuration")
	}

	var warnings []string
	if cfg.Twitter.BearerToken == "" {
		warnings = append(warnings, "no bearer token: the REST fallback is disabled")
	}
	if !cfg.Twitter.EmbedEnabled {
		warnings = append(warnings, "embed fallback is disabled")
	}
	if cfg.Login.Account != "" {
		if _, err := os.Stat(cfg.Session.CookieFile); err != nil {
			warnings = append(warnings, fmt.Sprintf("account %q has no saved session yet", cfg.Login.Account))
		}
	}
	for _, w := range warnings {
		ui.PrintWarning(w)
	}

	ui.PrintSuccess("Configuration is valid")
	ui.PrintInfo("Browser concurrency", fmt.Sprintf("%d", cfg.Browser.Concurrency))
	ui.PrintInfo("Intercept timeout", cfg.Browser.InterceptTimeout.String())
	ui.PrintInfo("Rate limit", fmt.Sprintf("%d requests/minute", cfg.RateLimit.RequestsPerMinute))
	ui.PrintInfo("Media directory", cfg.Storage.TempDirectory)
	ui.PrintInfo("Log level", cfg.Logging.Level)
	return nil
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
