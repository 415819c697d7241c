// Package cli provides the addrcrawl command line.
package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/addrcrawl/internal/core/ports/driven"
	"github.com/custodia-labs/addrcrawl/internal/core/ports/driving"
	"github.com/custodia-labs/addrcrawl/internal/logger"
)

var (
	version = "dev"
	verbose bool
)

// Services wired in by main.
var (
	contactsService     driving.ContactsService
	remoteFolderService driving.RemoteFolderService
	settingsStore       driven.SettingsStore
	tokenIssuer         driven.TokenIssuer
	tokenVerifier       driven.TokenVerifier
	metricsHandler      http.Handler
	listenAddr          string
	configWatcher       func(ctx context.Context, onChange func()) error
	configReloader      func() error
)

// Services holds what the commands run against.
type Services struct {
	Contacts     driving.ContactsService
	RemoteFolder driving.RemoteFolderService
	Settings     driven.SettingsStore
	Tokens       driven.TokenIssuer

	// Verifier authenticates HTTP MCP callers. Without it MCP is stdio only.
	Verifier driven.TokenVerifier

	// Metrics serves /metrics from the serve command. Optional.
	Metrics http.Handler

	// Listen is the default serve address.
	Listen string

	// Watch blocks, calling onChange whenever the config file changes. Optional.
	Watch func(ctx context.Context, onChange func()) error

	// Reload re-reads the config file into the running services. Optional.
	Reload func() error
}

// SetServices installs the services the commands use.
func SetServices(s Services) {
	contactsService = s.Contacts
	remoteFolderService = s.RemoteFolder
	settingsStore = s.Settings
	tokenIssuer = s.Tokens
	tokenVerifier = s.Verifier
	metricsHandler = s.Metrics
	listenAddr = s.Listen
	configWatcher = s.Watch
	configReloader = s.Reload
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "addrcrawl",
	Short: "Crawl address books into contact collections",
	Long: `addrcrawl walks an account's address book folders, including folders
shared by other accounts and other servers, and produces a flat collection
or a folder-shaped tree of contacts and groups.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
