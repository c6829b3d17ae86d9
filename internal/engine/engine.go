// Package engine orchestrates the detection pipeline: sources feed
// candidates, candidates become detections, detections feed the price
// ledger and the decision state machine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/decision"
	"github.com/code-shreya/subscription-manager/internal/dedup"
	"github.com/code-shreya/subscription-manager/internal/extract"
	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/normalize"
	"github.com/code-shreya/subscription-manager/internal/pricetrack"
	"github.com/code-shreya/subscription-manager/internal/recurrence"
	"github.com/code-shreya/subscription-manager/internal/report"
	"github.com/code-shreya/subscription-manager/internal/service"
	"github.com/code-shreya/subscription-manager/internal/source"
)

// Config holds the engine's tuning knobs.
type Config struct {
	// AccountConcurrency bounds how many bank accounts scan in parallel.
	// Within one account the pipeline is strictly sequential.
	AccountConcurrency int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{AccountConcurrency: 4}
}

// ScanEngine wires the pipeline stages together.
type ScanEngine struct {
	storage      service.Storage
	emails       source.EmailSource
	transactions source.TransactionSource
	extractor    *extract.EmailExtractor
	detector     *recurrence.Detector
	normalizer   *normalize.Normalizer
	tracker      *pricetrack.Tracker
	decider      *decision.Engine
	config       Config
}

// NewScanEngine creates an engine over the given sources and storage.
// emails and transactions may each be nil when that source is not
// connected; the corresponding scan returns ErrSourceUnavailable.
func NewScanEngine(
	storage service.Storage,
	emails source.EmailSource,
	transactions source.TransactionSource,
	extractor *extract.EmailExtractor,
	detector *recurrence.Detector,
	normalizer *normalize.Normalizer,
	decider *decision.Engine,
	config Config,
) *ScanEngine {
	if config.AccountConcurrency <= 0 {
		config.AccountConcurrency = DefaultConfig().AccountConcurrency
	}
	return &ScanEngine{
		storage:      storage,
		emails:       emails,
		transactions: transactions,
		extractor:    extractor,
		detector:     detector,
		normalizer:   normalizer,
		tracker:      pricetrack.NewTracker(storage),
		decider:      decider,
		config:       config,
	}
}

// ScanEmails pulls recent mail, extracts subscription candidates through
// the oracle, and runs them through the pipeline. Individual extraction
// failures are absorbed; a source failure aborts the scan.
func (e *ScanEngine) ScanEmails(ctx context.Context, maxResults, daysBack int) (service.ScanSummary, error) {
	start := time.Now()
	summary := service.ScanSummary{}

	if e.emails == nil {
		return summary, fmt.Errorf("no email source connected: %w", common.ErrSourceUnavailable)
	}

	messages, err := e.emails.Scan(ctx, maxResults, daysBack)
	if err != nil {
		return summary, fmt.Errorf("failed to scan mailbox: %w", err)
	}

	candidates, stats, err := e.extractor.ExtractBatch(ctx, messages, nil)
	summary.Scanned = stats.Scanned
	summary.Skipped = stats.Skipped
	if err != nil {
		return summary, fmt.Errorf("extraction aborted: %w", err)
	}

	if err := e.ingest(ctx, candidates, &summary); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(start)
	slog.Info("Email scan complete",
		"scanned", summary.Scanned,
		"skipped", summary.Skipped,
		"found", summary.Found,
		"unique", summary.Unique,
		"duration", summary.Duration)
	return summary, nil
}

// ScanTransactions sweeps every connected account's history for recurring
// charges. Accounts run in parallel up to AccountConcurrency; a failed
// account aborts the whole scan because partial bank evidence would skew
// recurrence confidence on the next run.
func (e *ScanEngine) ScanTransactions(ctx context.Context, startDate, endDate time.Time) (service.ScanSummary, error) {
	start := time.Now()
	summary := service.ScanSummary{}

	if e.transactions == nil {
		return summary, fmt.Errorf("no transaction source connected: %w", common.ErrSourceUnavailable)
	}

	accounts, err := e.transactions.Accounts(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list accounts: %w", err)
	}

	summaries := make([]service.ScanSummary, len(accounts))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.config.AccountConcurrency)

	for i, accountID := range accounts {
		i, accountID := i, accountID
		group.Go(func() error {
			accountSummary, scanErr := e.scanAccount(groupCtx, accountID, startDate, endDate)
			if scanErr != nil {
				return fmt.Errorf("account %s: %w", accountID, scanErr)
			}
			summaries[i] = accountSummary
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return summary, err
	}

	for _, s := range summaries {
		summary.Merge(s)
	}
	summary.Duration = time.Since(start)
	slog.Info("Transaction scan complete",
		"accounts", len(accounts),
		"scanned", summary.Scanned,
		"unique", summary.Unique,
		"auto_imported", summary.AutoImported,
		"duration", summary.Duration)
	return summary, nil
}

// scanAccount runs the sequential pipeline over one account's history.
func (e *ScanEngine) scanAccount(ctx context.Context, accountID string, startDate, endDate time.Time) (service.ScanSummary, error) {
	summary := service.ScanSummary{}

	txns, err := e.transactions.Transactions(ctx, accountID, startDate, endDate)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	summary.Scanned = len(txns)

	candidates := e.detector.Detect(txns)
	if err := e.ingest(ctx, candidates, &summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// DeepScan exhaustively sweeps the mailbox and aggregates what survived
// the pipeline into a spending report.
func (e *ScanEngine) DeepScan(ctx context.Context, daysBack int, progress service.ProgressFunc, reportConfig report.Config) (*service.DeepScanReport, error) {
	start := time.Now()
	summary := service.ScanSummary{}

	if e.emails == nil {
		return nil, fmt.Errorf("no email source connected: %w", common.ErrSourceUnavailable)
	}

	messages, err := e.emails.DeepScan(ctx, daysBack, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to sweep mailbox: %w", err)
	}

	candidates, stats, err := e.extractor.ExtractBatch(ctx, messages, progress)
	summary.Scanned = stats.Scanned
	summary.Skipped = stats.Skipped
	if err != nil {
		return nil, fmt.Errorf("extraction aborted: %w", err)
	}

	detections, err := e.runPipeline(ctx, candidates, &summary)
	if err != nil {
		return nil, err
	}
	summary.Duration = time.Since(start)

	return report.Build(detections, summary, reportConfig), nil
}

// ingest runs the common back half of the pipeline and folds the results
// into the summary.
func (e *ScanEngine) ingest(ctx context.Context, candidates []model.Candidate, summary *service.ScanSummary) error {
	_, err := e.runPipeline(ctx, candidates, summary)
	return err
}

// runPipeline normalizes, dedups, price-tracks, and decides one batch of
// candidates, returning the deduplicated detections for callers that
// aggregate them further.
func (e *ScanEngine) runPipeline(ctx context.Context, candidates []model.Candidate, summary *service.ScanSummary) ([]model.Detection, error) {
	summary.Found += len(candidates)

	detections := dedup.Deduplicate(e.normalizer.NormalizeAll(candidates))
	summary.Unique += len(detections)

	for i := range detections {
		d := &detections[i]

		change, err := e.tracker.Track(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("failed to track price for %s: %w", d.ServiceName, err)
		}
		if change != nil {
			summary.PriceChanges = append(summary.PriceChanges, *change)
		}

		outcome, err := e.decider.Decide(ctx, d)
		if err != nil {
			return nil, fmt.Errorf("failed to decide detection for %s: %w", d.ServiceName, err)
		}
		switch outcome {
		case decision.OutcomeAutoImported:
			summary.AutoImported++
		case decision.OutcomePending:
			summary.Pending++
		}
	}
	return detections, nil
}
