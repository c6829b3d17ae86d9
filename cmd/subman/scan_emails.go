package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func scanEmailsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan-emails",
		Short: "Scan recent payment emails for subscriptions",
		Long: `Pull recent mail from the connected mailbox and run each message through
the extraction oracle. Emails the oracle recognizes as subscription
payments become detections; extraction failures skip that email and the
scan continues.`,
		RunE: runScanEmails,
	}

	cmd.Flags().Int("max-results", 100, "Maximum number of emails to scan")
	cmd.Flags().Int("days", 90, "How many days of mail to scan")

	return cmd
}

func runScanEmails(cmd *cobra.Command, _ []string) error {
	maxResults, _ := cmd.Flags().GetInt("max-results")
	days, _ := cmd.Flags().GetInt("days")
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	scanEngine, err := buildScanEngine(store, true)
	if err != nil {
		return err
	}

	summary, err := scanEngine.ScanEmails(ctx, maxResults, days)
	if err != nil {
		return fmt.Errorf("email scan failed: %w", err)
	}

	printSummary(summary)
	return nil
}
