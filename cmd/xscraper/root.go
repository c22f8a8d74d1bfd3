package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"xscraper/pkg/config"
	"xscraper/pkg/logger"
	"xscraper/pkg/ui"
)

var (
	// Version information
	version   = "0.3.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile string
	logLevel   string
	noColor    bool
	quiet      bool
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "xscraper",
	Short: "Retrieve X posts and authors with their media",
	Long: `xscraper retrieves posts and author profiles from X.

Each id is tried through a chain of strategies until one succeeds:
  - a headless browser that captures the page's own GraphQL response
  - the same browser signed in with a stored account
  - the public embed endpoint (posts only)
  - the REST API, when a bearer token is configured

Photos, videos and profile images are downloaded to a temp directory and
referenced from the output.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// results may go to stdout, so human output never does
		ui.SetOutput(os.Stderr)
		ui.SetNoColor(noColor)
		if quiet || logLevel == "error" {
			ui.SetQuiet(true)
		}
		if verbose && !cmd.Flags().Changed("log-level") {
			logLevel = "debug"
		}

		if cmd.Name() != "version" && cmd.Name() != "help" && !quiet {
			ui.PrintBanner()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.config/xscraper/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "show debug logs")

	rootCmd.SetVersionTemplate(`xscraper {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// globalFlags returns the persistent flags in the shape config.Load merges
func globalFlags() map[string]interface{} {
	flags := map[string]interface{}{}
	if rootCmd.PersistentFlags().Changed("log-level") || verbose {
		flags["log-level"] = logLevel
	}
	if noColor {
		flags["no-color"] = true
	}
	return flags
}

// loadConfig loads configuration with the global flags merged over extra
func loadConfig(extra map[string]interface{}) (*config.Config, logger.Logger, error) {
	flags := globalFlags()
	for k, v := range extra {
		flags[k] = v
	}
	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}
