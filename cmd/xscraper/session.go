package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"xscraper/pkg/session"
	"xscraper/pkg/ui"
)

// sessionCmd represents the session command
var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or invalidate the saved browser session",
	Long: `Inspect or invalidate the cookies saved after a successful sign-in.

While a cookie file exists, lookups start with the signed-in browser.
Clearing it forces the next lookup to start anonymously and sign in again
only when needed.`,
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved cookies",
	RunE:  runSessionShow,
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the saved cookies",
	RunE:  runSessionClear,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionShowCmd)
	sessionCmd.AddCommand(sessionClearCmd)
}

func openSession() (*session.Store, error) {
	cfg, log, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.Session.CookieFile, log), nil
}

func runSessionShow(cmd *cobra.Command, args []string) error {
	store, err := openSession()
	if err != nil {
		return err
	}
	ui.PrintInfo("Cookie file", store.Path())
	if !store.Exists() {
		ui.PrintWarning("No saved session")
		return nil
	}

	cookies := store.Load()
	for _, c := range cookies {
		expires := "session"
		if c.Expires != nil {
			expires = c.Expires.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-20s %-16s expires %s\n", c.Name, c.Domain, expires)
	}
	ui.PrintInfo("Cookies", fmt.Sprintf("%d", len(cookies)))
	return nil
}

func runSessionClear(cmd *cobra.Command, args []string) error {
	store, err := openSession()
	if err != nil {
		return err
	}
	if !store.Exists() {
		ui.PrintWarning("No saved session")
		return nil
	}
	if err := store.Delete(); err != nil {
		return err
	}
	ui.PrintSuccess("Session cleared: " + store.Path())
	return nil
}
