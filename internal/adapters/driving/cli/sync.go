package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
	"github.com/custodia-labs/sercha-sync/internal/core/ports/driving"
)

var syncDryRun bool

// progressInterval is how often a running sync reports progress.
var progressInterval = 500 * time.Millisecond

var syncCmd = &cobra.Command{
	Use:   "sync [source]",
	Short: "Synchronise documents from sources",
	Long: `Fetches every document of a source, skips the ones whose text is
unchanged, and embeds and upserts the rest into the source's index.
If a source name is provided, only that source is synchronised.
Otherwise, all sources are synchronised.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "index into memory without touching the sink or ledger")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if syncOrchestrator == nil {
		return errNotConfigured
	}
	ctx := contextOf(cmd)

	if len(args) > 0 {
		name := args[0]
		cmd.Printf("Synchronising source: %s...\n", name)

		report, err := syncWithProgress(ctx, cmd, syncOrchestrator, name)
		if err != nil {
			return fmt.Errorf("sync failed: %w", err)
		}
		printReport(cmd, report)
		return nil
	}

	cmd.Println("Synchronising all sources...")
	reports, err := syncOrchestrator.SyncAll(ctx)
	for _, report := range reports {
		printReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}
	if len(reports) == 0 {
		cmd.Println("No sources configured.")
	}
	return nil
}

// syncWithProgress runs sync while displaying progress updates.
func syncWithProgress(
	ctx context.Context,
	cmd *cobra.Command,
	syncOrch driving.SyncOrchestrator,
	name string,
) (*domain.SyncReport, error) {
	type result struct {
		report *domain.SyncReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := syncOrch.Sync(ctx, name)
		done <- result{report, err}
	}()

	ticker := time.NewTicker(progressInterval)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case r := <-done:
			if lastCount > 0 {
				cmd.Println()
			}
			return r.report, r.err
		case <-ticker.C:
			// best effort
			status, err := syncOrch.Status(ctx, name)
			if err == nil && status != nil && status.DocumentsProcessed > lastCount {
				cmd.Printf("\r%s... %d documents (%d errors)", status.Phase, status.DocumentsProcessed, status.ErrorCount)
				lastCount = status.DocumentsProcessed
			}
		}
	}
}

func printReport(cmd *cobra.Command, r *domain.SyncReport) {
	if r == nil {
		return
	}
	cmd.Printf("Source %s -> index %s (%s)\n", r.Source, r.Index, r.Duration().Round(time.Millisecond))
	cmd.Printf("  fetched %d: %d new, %d updated, %d unchanged, %d failed, %d deleted\n",
		r.Fetched, r.New, r.Updated, r.Skipped, r.Failed, r.Deleted)
	if r.Truncated {
		cmd.Println("  fetch was incomplete; deleted documents were not pruned")
	}
	for _, f := range r.Failures {
		cmd.Printf("  ! %s [%s]: %s\n", f.DocumentID, f.Stage, f.Error)
	}
}
