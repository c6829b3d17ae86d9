package main

import (
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/code-shreya/subscription-manager/internal/decision"
	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"
)

func detectionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detections",
		Short: "Review and act on subscription detections",
	}

	cmd.AddCommand(detectionsListCmd())
	cmd.AddCommand(detectionsImportCmd())
	cmd.AddCommand(detectionsRejectCmd())

	return cmd
}

func detectionsListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List detections awaiting review",
		RunE:  runDetectionsList,
	}

	cmd.Flags().String("status", "pending", "Filter by status (pending, imported, auto_imported, rejected, all)")
	cmd.Flags().String("source", "", "Filter by source (email, bank)")
	cmd.Flags().Int("limit", 50, "Maximum detections to show")

	return cmd
}

func runDetectionsList(cmd *cobra.Command, _ []string) error {
	statusFlag, _ := cmd.Flags().GetString("status")
	sourceFlag, _ := cmd.Flags().GetString("source")
	limit, _ := cmd.Flags().GetInt("limit")
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	filter := service.DetectionFilter{Limit: limit}
	if statusFlag != "" && statusFlag != "all" {
		status := model.DetectionStatus(statusFlag)
		filter.Status = &status
	}
	if sourceFlag != "" {
		src := model.DetectionSource(sourceFlag)
		filter.Source = &src
	}

	detections, err := store.GetDetections(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list detections: %w", err)
	}

	if len(detections) == 0 {
		fmt.Println("No detections found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSERVICE\tAMOUNT\tCYCLE\tSOURCE\tCONFIDENCE\tSTATUS")
	for _, d := range detections {
		amount := "-"
		if d.Amount.Valid {
			amount = fmt.Sprintf("%s %s", d.Amount.Decimal.String(), d.Currency)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.0f\t%s\n",
			d.ID, d.ServiceName, amount, d.BillingCycle, d.Source, d.Confidence, d.Status)
	}
	return w.Flush()
}

func detectionsImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <detection-id>",
		Short: "Import a pending detection as a subscription",
		Args:  cobra.ExactArgs(1),
		RunE:  runDetectionsImport,
	}
}

func runDetectionsImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	decider := decision.NewEngine(store, nil)
	sub, err := decider.Import(ctx, args[0])
	if err != nil {
		return err
	}

	slog.Info("Subscription imported",
		"subscription_id", sub.ID,
		"service", sub.ServiceName)
	return nil
}

func detectionsRejectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reject <detection-id>",
		Short: "Reject a pending detection",
		Args:  cobra.ExactArgs(1),
		RunE:  runDetectionsReject,
	}
}

func runDetectionsReject(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	decider := decision.NewEngine(store, nil)
	if err := decider.Reject(ctx, args[0]); err != nil {
		return err
	}

	slog.Info("Detection rejected", "detection_id", args[0])
	return nil
}
