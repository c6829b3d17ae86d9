package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SubscriptionProvenance indicates how a subscription record was created.
type SubscriptionProvenance string

const (
	// ProvenanceAuto indicates the subscription was created by the decision
	// engine without user review.
	ProvenanceAuto SubscriptionProvenance = "auto"
	// ProvenanceUser indicates the subscription was created from an explicit
	// import action.
	ProvenanceUser SubscriptionProvenance = "user"
)

// Subscription is a confirmed recurring service, created when a detection
// is imported.
type Subscription struct {
	CreatedAt    time.Time
	ID           string
	ServiceName  string // normalized
	Currency     string
	BillingCycle BillingCycle
	Category     Category
	Provenance   SubscriptionProvenance
	Amount       decimal.NullDecimal
	Active       bool
}
