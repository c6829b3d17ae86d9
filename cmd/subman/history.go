package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/code-shreya/subscription-manager/internal/normalize"
)

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <service>",
		Short: "Show the recorded price history for a service",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistory,
	}
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	serviceName := normalize.NormalizeServiceName(args[0])

	store, err := initStorage(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { _ = store.Close() }()

	entries, err := store.GetPriceHistory(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("failed to load price history for %s: %w", serviceName, err)
	}

	if len(entries) == 0 {
		fmt.Printf("No price history recorded for %s.\n", serviceName)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OBSERVED\tAMOUNT\tCYCLE")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s %s\t%s\n",
			e.ObservedAt.Format("2006-01-02"), e.Amount.String(), e.Currency, e.BillingCycle)
	}
	return w.Flush()
}
