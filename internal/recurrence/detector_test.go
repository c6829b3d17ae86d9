package recurrence

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-shreya/subscription-manager/internal/model"
)

func txn(id, merchant, amount string, date time.Time) model.BankTransaction {
	return model.BankTransaction{
		ID:        id,
		AccountID: "acc-1",
		Merchant:  merchant,
		Amount:    decimal.RequireFromString(amount),
		Date:      date,
	}
}

func TestDetectMonthlyPattern(t *testing.T) {
	base := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	transactions := []model.BankTransaction{
		txn("t1", "NETFLIX.COM 4921", "649.00", base),
		txn("t2", "NETFLIX.COM 5130", "649.00", base.AddDate(0, 1, 0)),
		txn("t3", "NETFLIX.COM 6077", "649.00", base.AddDate(0, 2, 0)),
	}

	candidates := NewDetector().Detect(transactions)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, model.SourceBank, c.Source)
	assert.Equal(t, "netflix", c.ServiceName)
	assert.Equal(t, model.CycleMonthly, c.Cycle)
	assert.Equal(t, 3, c.EvidenceCount)
	assert.True(t, c.Confirmed)
	assert.True(t, c.Amount.Valid)
	assert.True(t, c.Amount.Decimal.Equal(decimal.RequireFromString("649.00")))
	assert.Greater(t, c.Confidence, 50.0)
}

func TestDetectSingleChargeProducesNothing(t *testing.T) {
	transactions := []model.BankTransaction{
		txn("t1", "SPOTIFY", "119.00", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
	}

	candidates := NewDetector().Detect(transactions)
	assert.Empty(t, candidates)
}

func TestDetectIrregularIntervalsClassifyUnknown(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	transactions := []model.BankTransaction{
		txn("t1", "ACME STORE", "250.00", base),
		txn("t2", "ACME STORE", "250.00", base.AddDate(0, 0, 3)),
		txn("t3", "ACME STORE", "250.00", base.AddDate(0, 0, 50)),
	}

	candidates := NewDetector().Detect(transactions)
	require.Len(t, candidates, 1)

	c := candidates[0]
	assert.Equal(t, model.CycleUnknown, c.Cycle)
	assert.False(t, c.Confirmed)
	assert.LessOrEqual(t, c.Confidence, 45.0)
}

func TestDetectSplitsDifferentAmounts(t *testing.T) {
	base := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	transactions := []model.BankTransaction{
		txn("t1", "AMAZON PRIME", "299.00", base),
		txn("t2", "AMAZON PRIME", "299.00", base.AddDate(0, 1, 0)),
		txn("t3", "AMAZON PRIME", "1499.00", base.AddDate(0, 0, 15)),
	}

	candidates := NewDetector().Detect(transactions)
	// The lone 1499 charge cannot form a group of two
	require.Len(t, candidates, 1)
	assert.True(t, candidates[0].Amount.Decimal.Equal(decimal.RequireFromString("299.00")))
	assert.Equal(t, 2, candidates[0].EvidenceCount)
}

func TestDetectToleratesRoundingDrift(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	transactions := []model.BankTransaction{
		txn("t1", "ICLOUD", "75.00", base),
		txn("t2", "ICLOUD", "75.01", base.AddDate(0, 1, 0)),
	}

	candidates := NewDetector().Detect(transactions)
	require.Len(t, candidates, 1)
	assert.Equal(t, 2, candidates[0].EvidenceCount)
}

func TestDetectSourceRefStableAcrossInputOrder(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := txn("t1", "HULU", "499.00", base)
	b := txn("t2", "HULU", "499.00", base.AddDate(0, 1, 0))

	first := NewDetector().Detect([]model.BankTransaction{a, b})
	second := NewDetector().Detect([]model.BankTransaction{b, a})

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].SourceRef, second[0].SourceRef)
}

func TestClassifyCycle(t *testing.T) {
	tests := []struct {
		name   string
		deltas []float64
		want   model.BillingCycle
	}{
		{"monthly", []float64{30, 31, 29}, model.CycleMonthly},
		{"weekly", []float64{7, 7, 8}, model.CycleWeekly},
		{"yearly", []float64{365}, model.CycleYearly},
		{"quarterly", []float64{90, 92}, model.CycleQuarterly},
		{"daily", []float64{1, 1, 1}, model.CycleDaily},
		{"no deltas", nil, model.CycleUnknown},
		{"outside every band", []float64{15, 16}, model.CycleUnknown},
		{"median fits but outlier disagrees", []float64{30, 30, 70}, model.CycleUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyCycle(tt.deltas))
		})
	}
}

func TestNormalizeMerchant(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"strips trailing reference", "NETFLIX.COM 4921", "netflix"},
		{"collapses separators", "AMAZON*PRIME/VIDEO", "amazon prime video"},
		{"drops noise tokens", "POS DEBIT SPOTIFY AB", "spotify ab"},
		{"all noise keeps original tokens", "POS DEBIT", "pos debit"},
		{"empty", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeMerchant(tt.raw))
		})
	}
}
