package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceHistoryEntry is one observed price point for a service. History is
// append-only and ordered by ObservedAt.
type PriceHistoryEntry struct {
	ObservedAt   time.Time
	ServiceName  string
	Currency     string
	BillingCycle BillingCycle
	Amount       decimal.Decimal
}

// PriceTrend is the direction of a price change.
type PriceTrend string

// Price trend constants.
const (
	TrendIncrease PriceTrend = "increase"
	TrendDecrease PriceTrend = "decrease"
)

// PriceChange is emitted when a detection's amount differs from the most
// recent history entry for the same service. It is derived and ephemeral;
// only the history points are persisted.
type PriceChange struct {
	ServiceName   string
	Trend         PriceTrend
	OldPrice      decimal.Decimal
	NewPrice      decimal.Decimal
	Delta         decimal.Decimal
	ChangePercent float64
	// PercentValid is false when the prior price was zero and no
	// percentage could be computed; Delta is still populated.
	PercentValid bool
}
