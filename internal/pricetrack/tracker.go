// Package pricetrack maintains the per-service price ledger and derives
// price-change events from fresh detections.
package pricetrack

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"
)

// Tracker appends observed prices and emits changes against the last known
// price per service.
type Tracker struct {
	storage service.Storage
}

// NewTracker creates a price tracker backed by the given storage.
func NewTracker(storage service.Storage) *Tracker {
	return &Tracker{storage: storage}
}

// Track compares a detection against the most recent history entry for its
// service. The first observation seeds the ledger silently; an unchanged
// amount writes nothing; a changed amount appends a point and returns the
// change. Detections without an amount are ignored.
func (t *Tracker) Track(ctx context.Context, d *model.Detection) (*model.PriceChange, error) {
	if !d.Amount.Valid {
		return nil, nil
	}
	amount := d.Amount.Decimal

	latest, err := t.storage.GetLatestPrice(ctx, d.ServiceName)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to load latest price for %s: %w", d.ServiceName, err)
	}

	entry := &model.PriceHistoryEntry{
		ServiceName:  d.ServiceName,
		Amount:       amount,
		Currency:     d.Currency,
		BillingCycle: d.BillingCycle,
		ObservedAt:   d.DetectedAt,
	}

	if latest == nil {
		if appendErr := t.storage.AppendPriceHistory(ctx, entry); appendErr != nil {
			return nil, appendErr
		}
		return nil, nil
	}

	if latest.Amount.Equal(amount) {
		// Same price observed again: no duplicate history point
		return nil, nil
	}

	change := buildChange(d.ServiceName, latest.Amount, amount)
	if appendErr := t.storage.AppendPriceHistory(ctx, entry); appendErr != nil {
		return nil, appendErr
	}
	return change, nil
}

// buildChange computes the delta and percentage of a price move. The
// percentage is relative to the prior price; a zero prior price cannot
// produce one, so only the raw delta is reported.
func buildChange(serviceName string, oldPrice, newPrice decimal.Decimal) *model.PriceChange {
	delta := newPrice.Sub(oldPrice)

	trend := model.TrendIncrease
	if delta.IsNegative() {
		trend = model.TrendDecrease
	}

	change := &model.PriceChange{
		ServiceName: serviceName,
		OldPrice:    oldPrice,
		NewPrice:    newPrice,
		Delta:       delta,
		Trend:       trend,
	}

	if !oldPrice.IsZero() {
		percent, _ := delta.Div(oldPrice).Mul(decimal.NewFromInt(100)).Float64()
		change.ChangePercent = percent
		change.PercentValid = true
	}
	return change
}
