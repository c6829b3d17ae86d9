package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/code-shreya/subscription-manager/internal/service"
)

const timeRound = 10 * time.Millisecond

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan bank transaction history for recurring charges",
		Long: `Sweep the connected bank accounts for recurring charge patterns and turn
them into subscription detections. Confident detections are imported
automatically; the rest wait in the review queue (see 'detections list').`,
		RunE: runScan,
	}

	cmd.Flags().Int("days", 365, "How many days of history to scan")

	return cmd
}

func runScan(cmd *cobra.Command, _ []string) error {
	days, _ := cmd.Flags().GetInt("days")
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	scanEngine, err := buildScanEngine(store, false)
	if err != nil {
		return err
	}

	startDate, endDate := scanWindow(days)
	summary, err := scanEngine.ScanTransactions(ctx, startDate, endDate)
	if err != nil {
		return fmt.Errorf("transaction scan failed: %w", err)
	}

	printSummary(summary)
	return nil
}

func printSummary(summary service.ScanSummary) {
	slog.Info("Scan summary",
		"scanned", summary.Scanned,
		"skipped", summary.Skipped,
		"candidates", summary.Found,
		"unique", summary.Unique,
		"auto_imported", summary.AutoImported,
		"pending_review", summary.Pending,
		"duration", summary.Duration.Round(timeRound))

	for _, change := range summary.PriceChanges {
		if change.PercentValid {
			slog.Info("Price change detected",
				"service", change.ServiceName,
				"trend", change.Trend,
				"old", change.OldPrice.String(),
				"new", change.NewPrice.String(),
				"percent", fmt.Sprintf("%.1f%%", change.ChangePercent))
			continue
		}
		slog.Info("Price change detected",
			"service", change.ServiceName,
			"trend", change.Trend,
			"old", change.OldPrice.String(),
			"new", change.NewPrice.String())
	}
}
