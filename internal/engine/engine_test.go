package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/decision"
	"github.com/code-shreya/subscription-manager/internal/extract"
	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/normalize"
	"github.com/code-shreya/subscription-manager/internal/oracle"
	"github.com/code-shreya/subscription-manager/internal/recurrence"
	"github.com/code-shreya/subscription-manager/internal/report"
	"github.com/code-shreya/subscription-manager/internal/service"
	"github.com/code-shreya/subscription-manager/internal/source"
	"github.com/code-shreya/subscription-manager/internal/storage"
)

func setupStorage(t *testing.T) service.Storage {
	t.Helper()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestEngine(store service.Storage, emails source.EmailSource, transactions source.TransactionSource, extractor *extract.EmailExtractor) *ScanEngine {
	return NewScanEngine(
		store,
		emails,
		transactions,
		extractor,
		recurrence.NewDetector(),
		normalize.NewNormalizer(nil, "INR"),
		decision.NewEngine(store, nil),
		DefaultConfig(),
	)
}

// monthlyTxns spaces charges exactly 30 days apart; five clean occurrences
// score high enough to auto-import.
func monthlyTxns(merchant, amount string, count int, base time.Time) []model.BankTransaction {
	txns := make([]model.BankTransaction, count)
	for i := range txns {
		txns[i] = model.BankTransaction{
			ID:        merchant + string(rune('a'+i)),
			AccountID: "acc-1",
			Merchant:  merchant,
			Amount:    decimal.RequireFromString(amount),
			Date:      base.AddDate(0, 0, 30*i),
		}
	}
	return txns
}

func TestScanTransactionsEndToEnd(t *testing.T) {
	store := setupStorage(t)
	base := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	bank := &source.MockTransactionSource{
		AccountsFn: func(_ context.Context) ([]string, error) {
			return []string{"acc-1"}, nil
		},
		TransactionsFn: func(_ context.Context, _ string, _, _ time.Time) ([]model.BankTransaction, error) {
			return monthlyTxns("NETFLIX", "649.00", 5, base), nil
		},
	}

	engine := newTestEngine(store, nil, bank, nil)
	summary, err := engine.ScanTransactions(context.Background(), base.AddDate(-1, 0, 0), base.AddDate(1, 0, 0))
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Scanned)
	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, 1, summary.Unique)
	// 5 regular monthly charges clear the auto-import bar
	assert.Equal(t, 1, summary.AutoImported)
	assert.Equal(t, 0, summary.Pending)

	sub, err := store.GetActiveSubscription(context.Background(), "netflix")
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceAuto, sub.Provenance)
	assert.Equal(t, model.CycleMonthly, sub.BillingCycle)
}

func TestScanTransactionsRescanIsIdempotent(t *testing.T) {
	store := setupStorage(t)
	base := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)

	bank := &source.MockTransactionSource{
		AccountsFn: func(_ context.Context) ([]string, error) {
			return []string{"acc-1"}, nil
		},
		TransactionsFn: func(_ context.Context, _ string, _, _ time.Time) ([]model.BankTransaction, error) {
			return monthlyTxns("NETFLIX", "649.00", 5, base), nil
		},
	}

	engine := newTestEngine(store, nil, bank, nil)
	ctx := context.Background()
	start, end := base.AddDate(-1, 0, 0), base.AddDate(1, 0, 0)

	_, err := engine.ScanTransactions(ctx, start, end)
	require.NoError(t, err)
	second, err := engine.ScanTransactions(ctx, start, end)
	require.NoError(t, err)

	assert.Equal(t, 0, second.AutoImported, "re-ingesting the same evidence must not import twice")

	subs, err := store.GetActiveSubscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestScanTransactionsAccountFailureAborts(t *testing.T) {
	store := setupStorage(t)

	bank := &source.MockTransactionSource{
		AccountsFn: func(_ context.Context) ([]string, error) {
			return []string{"acc-1", "acc-2"}, nil
		},
		TransactionsFn: func(_ context.Context, accountID string, _, _ time.Time) ([]model.BankTransaction, error) {
			if accountID == "acc-2" {
				return nil, common.ErrSourceUnavailable
			}
			return nil, nil
		},
	}

	engine := newTestEngine(store, nil, bank, nil)
	_, err := engine.ScanTransactions(context.Background(), time.Now().AddDate(-1, 0, 0), time.Now())
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "acc-2")
}

func TestScanTransactionsNoSourceConnected(t *testing.T) {
	store := setupStorage(t)

	engine := newTestEngine(store, nil, nil, nil)
	_, err := engine.ScanTransactions(context.Background(), time.Now().AddDate(-1, 0, 0), time.Now())
	assert.ErrorIs(t, err, common.ErrSourceUnavailable)
}

func subscriptionEmailExtractor() *extract.EmailExtractor {
	mock := &oracle.MockExtractor{
		ExtractFn: func(_ context.Context, email model.EmailMessage) (*oracle.Extraction, error) {
			if email.Subject == "ignore" {
				return &oracle.Extraction{IsSubscription: false}, nil
			}
			return &oracle.Extraction{
				IsSubscription:      true,
				IsConfirmationEmail: true,
				EmailType:           oracle.EmailConfirmedSubscription,
				ServiceName:         email.Subject,
				Amount:              decimal.NullDecimal{Decimal: decimal.RequireFromString("199"), Valid: true},
				Currency:            "INR",
				BillingCycle:        model.CycleMonthly,
				Category:            "Software",
				Confidence:          90,
			}, nil
		},
	}
	return extract.NewEmailExtractor(mock, extract.Config{CallDelay: time.Millisecond, CallTimeout: time.Second})
}

func TestScanEmailsEndToEnd(t *testing.T) {
	store := setupStorage(t)
	date := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	emails := &source.MockEmailSource{
		ScanFn: func(_ context.Context, _, _ int) ([]model.EmailMessage, error) {
			return []model.EmailMessage{
				{ID: "m1", Subject: "Notion", Date: date},
				{ID: "m2", Subject: "ignore", Date: date},
				{ID: "m3", Subject: "Notion", Date: date.AddDate(0, 1, 0)},
			}, nil
		},
	}

	engine := newTestEngine(store, emails, nil, subscriptionEmailExtractor())
	summary, err := engine.ScanEmails(context.Background(), 100, 90)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Scanned)
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 1, summary.Unique, "same service dedups within the batch")
	assert.Equal(t, 1, summary.AutoImported)

	sub, err := store.GetActiveSubscription(context.Background(), "notion")
	require.NoError(t, err)
	assert.Equal(t, model.CategorySoftware, sub.Category)
}

func TestDeepScanBuildsReport(t *testing.T) {
	store := setupStorage(t)
	date := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)

	emails := &source.MockEmailSource{
		DeepScanFn: func(_ context.Context, _ int, progress service.ProgressFunc) ([]model.EmailMessage, error) {
			if progress != nil {
				progress("fetching messages", 2, 2)
			}
			return []model.EmailMessage{
				{ID: "m1", Subject: "Notion", Date: date},
				{ID: "m2", Subject: "Figma", Date: date},
			}, nil
		},
	}

	var phases []string
	var extractUpdates []int
	progress := func(phase string, current, _ int) {
		if len(phases) == 0 || phases[len(phases)-1] != phase {
			phases = append(phases, phase)
		}
		if phase == "extract" {
			extractUpdates = append(extractUpdates, current)
		}
	}

	engine := newTestEngine(store, emails, nil, subscriptionEmailExtractor())
	rpt, err := engine.DeepScan(context.Background(), 365, progress, report.DefaultConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"fetching messages", "extract"}, phases)
	assert.Equal(t, []int{0, 1, 2}, extractUpdates, "extraction reports progress per email")
	assert.Equal(t, 2, rpt.Summary.Unique)
	assert.Equal(t, 2, rpt.ByCategory[string(model.CategorySoftware)].Count)
	assert.Len(t, rpt.TopServices, 2)
}
