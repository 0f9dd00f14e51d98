package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Crawls every configured category and updates the record store",
		Long: `Loads the record store, crawls each category listing with bounded
parallelism, resolves every new item and saves progress periodically. Items
already in the store, by URL or by normalized title, are skipped.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	stopMetrics, err := appInstance.StartMetrics()
	if err != nil {
		return fmt.Errorf("start metrics: %w", err)
	}
	defer stopMetrics()

	orch, err := appInstance.BuildOrchestrator(cmd.Context())
	if err != nil {
		return err
	}
	summary, err := orch.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run crawler: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(),
		"run %s: %d new, %d skipped, %d total in %s (%.1f items/s)\n",
		summary.RunID, summary.Admitted, summary.Skipped, summary.Total,
		summary.Duration.Round(time.Millisecond), summary.Rate(),
	)
	logger.Info("Crawl command finished.", zap.String("run_id", summary.RunID))
	return nil
}
