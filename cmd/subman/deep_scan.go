package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/report"
	"github.com/code-shreya/subscription-manager/internal/service"
)

func deepScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deep-scan",
		Short: "Exhaustively sweep the mailbox and build a spending report",
		Long: `Sweep the full configured window of mail, run every message through the
extraction oracle, and aggregate the surviving detections into a spending
overview: totals by category, cycle, and currency, the top recurring
services, and cancellation suggestions for expensive services with little
evidence of use.`,
		RunE: runDeepScan,
	}

	cmd.Flags().Int("days", 365, "How many days of mail to sweep")
	cmd.Flags().Int("top", 5, "How many top services to list")

	return cmd
}

func runDeepScan(cmd *cobra.Command, _ []string) error {
	days, _ := cmd.Flags().GetInt("days")
	top, _ := cmd.Flags().GetInt("top")
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

	reportCfg := report.DefaultConfig()
	reportCfg.TopServices = top

	progress := newProgressReporter()
	rpt, err := scanEngine.DeepScan(ctx, days, progress.update, reportCfg)
	progress.finish()
	if err != nil {
		return fmt.Errorf("deep scan failed: %w", err)
	}

	printReport(rpt)
	return nil
}

// progressReporter renders one progress bar per scan phase.
type progressReporter struct {
	bar   *progressbar.ProgressBar
	phase string
}

func newProgressReporter() *progressReporter {
	return &progressReporter{}
}

func (p *progressReporter) update(phase string, current, total int) {
	if p.phase != phase {
		p.finish()
		p.phase = phase
		p.bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription(phase),
		)
	}
	_ = p.bar.Set(current)
}

func (p *progressReporter) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(os.Stderr)
		p.bar = nil
	}
}

func printReport(rpt *service.DeepScanReport) {
	fmt.Println("\nDeep Scan Report")
	fmt.Println("================")
	fmt.Printf("Emails scanned: %d (skipped %d), unique detections: %d\n\n",
		rpt.Summary.Scanned, rpt.Summary.Skipped, rpt.Summary.Unique)

	printBreakdown("By category", rpt.ByCategory)

	fmt.Println("By billing cycle:")
	for _, cycle := range []model.BillingCycle{
		model.CycleDaily, model.CycleWeekly, model.CycleMonthly,
		model.CycleQuarterly, model.CycleYearly, model.CycleOneTime, model.CycleUnknown,
	} {
		if s, ok := rpt.ByCycle[cycle]; ok {
			fmt.Printf("  %-12s %3d service(s)  total %10.2f\n", cycle, s.Count, s.Total)
		}
	}
	fmt.Println()

	printBreakdown("By currency", rpt.ByCurrency)

	if len(rpt.TopServices) > 0 {
		fmt.Println("Top recurring services:")
		for i, s := range rpt.TopServices {
			fmt.Printf("  %d. %-24s %10.2f %s / %s\n", i+1, s.ServiceName, s.Amount, s.Currency, s.BillingCycle)
		}
		fmt.Println()
	}

	if len(rpt.CancelSuggestions) > 0 {
		fmt.Println("Consider canceling:")
		for _, s := range rpt.CancelSuggestions {
			fmt.Printf("  - %s: %s\n", s.ServiceName, s.Reason)
		}
		fmt.Println()
	}
}

func printBreakdown(title string, buckets map[string]service.CycleSummary) {
	if len(buckets) == 0 {
		return
	}

	keys := make([]string, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Printf("%s:\n", title)
	for _, key := range keys {
		s := buckets[key]
		fmt.Printf("  %-16s %3d service(s)  total %10.2f\n", key, s.Count, s.Total)
	}
	fmt.Println()
}
