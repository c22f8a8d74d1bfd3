package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"xscraper/pkg/auth"
	"xscraper/pkg/config"
	"xscraper/pkg/logger"
	"xscraper/pkg/metadata"
	"xscraper/pkg/models"
	"xscraper/pkg/scraper"
	"xscraper/pkg/ui"
)

var (
	// Lookup command flags
	lookupAuthors bool
	outputFile    string
	outputFormat  string
	noMedia       bool
	tempDir       string
	accountName   string
	bearerToken   string
	headless      bool
	screenshots   bool
	concurrency   int
	timeout       time.Duration
)

// lookupCmd represents the lookup command
var lookupCmd = &cobra.Command{
	Use:   "lookup <id>...",
	Short: "Retrieve posts or authors by numeric id",
	Long: `Retrieve one or more posts (or authors with --author) by numeric id.

Every id is validated before any network activity. If any id cannot be
retrieved the whole lookup fails and nothing is written.

Results are written as JSON or YAML to stdout, or to --output. The format
follows --format, then the output file extension.`,
	Example: `  # Look up a post anonymously
  xscraper lookup 20

  # Look up two authors and save YAML
  xscraper lookup --author 12 783214 --output authors.yaml

  # Use a stored account and skip media downloads
  xscraper lookup 1585341984679469056 --account myhandle --no-media`,
	Args: cobra.MinimumNArgs(1),
	RunE: runLookup,
}

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().BoolVar(&lookupAuthors, "author", false, "treat ids as author ids")
	lookupCmd.Flags().StringVarP(&outputFile, "output", "o", "", "write results to file instead of stdout")
	lookupCmd.Flags().StringVarP(&outputFormat, "format", "f", "", "output format (json, yaml)")
	lookupCmd.Flags().BoolVar(&noMedia, "no-media", false, "keep media URLs without downloading")
	lookupCmd.Flags().StringVar(&tempDir, "temp-dir", "", "directory for downloaded media")
	lookupCmd.Flags().StringVarP(&accountName, "account", "a", "", "stored account to sign in with")
	lookupCmd.Flags().StringVar(&bearerToken, "bearer-token", "", "REST API bearer token")
	lookupCmd.Flags().BoolVar(&headless, "headless", true, "run the browser headless")
	lookupCmd.Flags().BoolVar(&screenshots, "screenshots", false, "attach a page screenshot to browser-retrieved posts")
	lookupCmd.Flags().IntVar(&concurrency, "concurrency", 0, "ids looked up in parallel")
	lookupCmd.Flags().DurationVar(&timeout, "timeout", 0, "how long to wait for the intercepted response")
}

func lookupFlags(cmd *cobra.Command) map[string]interface{} {
	flags := map[string]interface{}{
		"output":       outputFile,
		"format":       outputFormat,
		"no-media":     noMedia,
		"temp-dir":     tempDir,
		"account":      accountName,
		"bearer-token": bearerToken,
		"screenshots":  screenshots,
		"concurrency":  concurrency,
		"timeout":      timeout,
	}
	if cmd.Flags().Changed("headless") {
		flags["headless"] = headless
	}
	if outputFormat == "" && outputFile != "" {
		flags["format"] = string(metadata.FormatForPath(outputFile, metadata.FormatJSON))
	}
	return flags
}

func runLookup(cmd *cobra.Command, args []string) error {
	ids := make([]string, len(args))
	for i, a := range args {
		ids[i] = strings.TrimSpace(a)
	}

	cfg, log, err := loadConfig(lookupFlags(cmd))
	if err != nil {
		return err
	}
	format, err := metadata.ParseFormat(cfg.Output.Format)
	if err != nil {
		return err
	}

	account, err := resolveAccount(cfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kind := models.KindPost
	if lookupAuthors {
		kind = models.KindAuthor
	}
	ui.PrintInfo("Looking up", fmt.Sprintf("%d %s(s)", len(ids), kind))
	log.InfoWithFields("Lookup starting", map[string]interface{}{
		"version": version,
		"kind":    string(kind),
		"count":   len(ids),
	})

	s := scraper.New(cfg, account, log)
	summary := ui.NewLookupSummary(kind)

	var doc *metadata.Document
	if kind == models.KindAuthor {
		authors, err := s.LookupAuthors(ctx, ids...)
		if err != nil {
			return err
		}
		for _, a := range authors {
			summary.AddAuthor(a)
		}
		doc = metadata.NewDocument(nil, authors)
	} else {
		posts, err := s.LookupPosts(ctx, ids...)
		if err != nil {
			return err
		}
		for _, p := range posts {
			summary.AddPost(p)
		}
		doc = metadata.NewDocument(posts, nil)
	}

	if cfg.Output.File != "" {
		if err := metadata.Save(cfg.Output.File, doc, format, cfg.Output.Pretty); err != nil {
			return err
		}
		ui.PrintInfo("Saved", cfg.Output.File)
	} else if err := metadata.Encode(os.Stdout, doc, format, cfg.Output.Pretty); err != nil {
		return err
	}

	summary.Complete()
	log.Info("Lookup completed")
	return nil
}

// resolveAccount returns the account to sign in with, or nil to stay
// anonymous. A missing default account is not an error; a named one is.
func resolveAccount(cfg *config.Config, log logger.Logger) (*auth.Account, error) {
	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Warn("Credential manager unavailable, continuing anonymously")
		return nil, nil
	}
	account, err := manager.Resolve(cfg.Login.Account)
	if err != nil {
		if errors.Is(err, auth.ErrCredentialsNotFound) && cfg.Login.Account == "" {
			log.Debug("No stored account, sign-in disabled")
			return nil, nil
		}
		return nil, fmt.Errorf("account %q: %w (run 'xscraper auth list')", cfg.Login.Account, err)
	}
	ui.PrintInfo("Using account", account.Username)
	return account, nil
}
