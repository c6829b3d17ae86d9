// Package oracle defines the contract for the LLM-backed email extraction
// service. The model call itself lives outside this repository; the pipeline
// only depends on the typed result shape defined here.
package oracle

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// EmailType classifies what kind of payment email the oracle saw.
type EmailType string

// Email type constants.
const (
	EmailConfirmedSubscription EmailType = "confirmed_subscription"
	EmailOneTimePayment        EmailType = "one_time_payment"
	EmailFailedPayment         EmailType = "failed_payment"
	EmailOther                 EmailType = "other"
)

// Extraction is the oracle's best-effort structured guess for one email.
// When IsSubscription is false all other fields are meaningless.
type Extraction struct {
	EmailType           EmailType
	ServiceName         string
	Currency            string
	BillingCycle        model.BillingCycle
	Category            string
	Description         string
	Amount              decimal.NullDecimal
	Confidence          float64 // 0..100
	IsSubscription      bool
	IsConfirmationEmail bool
}

// Extractor defines the contract for the extraction oracle.
type Extractor interface {
	Extract(ctx context.Context, email model.EmailMessage) (*Extraction, error)
}
