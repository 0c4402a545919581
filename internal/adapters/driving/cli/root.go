// Package cli provides the sercha-sync command line.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sync/internal/config"
	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-sync/internal/logger"
)

// Build information, set by Execute.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

// Global flags.
var (
	configPath string
	verbose    bool
)

// Services wired by PersistentPreRunE. Tests assign them directly.
var (
	syncOrchestrator driving.SyncOrchestrator
	searchService    driving.SearchService
	sourceService    driving.SourceService
	closeServices    func() error
)

// newServices builds the services from configuration.
var newServices = wire

var rootCmd = &cobra.Command{
	Use:   "sercha-sync",
	Short: "Sync Jira, Confluence and GitHub content into vector indexes",
	Long: `sercha-sync fetches documents from configured sources, normalises and
chunks them, embeds the chunks and upserts them into a vector index.
Unchanged documents are detected by fingerprint and skipped.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ~/.sercha-sync/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute(v, c, d string) error {
	version, commit, buildDate = v, c, d

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if cmd.Name() == "version" || servicesReady() {
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Path != "" {
		logger.Debug("Loaded configuration from %s", cfg.Path)
	}

	svc, err := newServices(cmd.Context(), cfg, wireOptions{DryRun: syncDryRun})
	if err != nil {
		return err
	}
	syncOrchestrator = svc.sync
	searchService = svc.search
	sourceService = svc.sources
	closeServices = svc.close
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if closeServices == nil {
		return nil
	}
	err := closeServices()
	closeServices = nil
	return err
}

func servicesReady() bool {
	return syncOrchestrator != nil && searchService != nil && sourceService != nil
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var errNotConfigured = errors.New("services not configured")

// ExitCode maps a command error to a process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, domain.ErrMisconfigured), errors.Is(err, domain.ErrUnsupportedType):
		return 2
	case errors.Is(err, domain.ErrSyncInProgress):
		return 3
	default:
		return 1
	}
}
