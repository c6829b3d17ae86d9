package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
)

// scriptedExtractor serves extractions from a JSON fixture keyed by email
// ID. It pairs with the static sources for offline runs and integration
// tests, where a live model call would make results nondeterministic.
type scriptedExtractor struct {
	byEmailID map[string]scriptedExtraction
}

type scriptedExtraction struct {
	EmailID             string   `json:"emailId"`
	EmailType           string   `json:"emailType"`
	ServiceName         string   `json:"serviceName"`
	Currency            string   `json:"currency"`
	BillingCycle        string   `json:"billingCycle"`
	Category            string   `json:"category"`
	Description         string   `json:"description"`
	Amount              *string  `json:"amount"`
	Confidence          float64  `json:"confidence"`
	IsSubscription      bool     `json:"isSubscription"`
	IsConfirmationEmail bool     `json:"isConfirmationEmail"`
}

func newScriptedExtractor(path string) (Extractor, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from user config
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read extraction fixture: %v", common.ErrSourceUnavailable, err)
	}

	var raw []scriptedExtraction
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse extraction fixture %s: %w", path, err)
	}

	byEmailID := make(map[string]scriptedExtraction, len(raw))
	for _, e := range raw {
		byEmailID[e.EmailID] = e
	}
	return &scriptedExtractor{byEmailID: byEmailID}, nil
}

// Extract returns the scripted result for the email, or a not-a-subscription
// result when the fixture has no entry for it.
func (s *scriptedExtractor) Extract(_ context.Context, email model.EmailMessage) (*Extraction, error) {
	scripted, ok := s.byEmailID[email.ID]
	if !ok {
		return &Extraction{EmailType: EmailOther, IsSubscription: false}, nil
	}

	extraction := &Extraction{
		EmailType:           EmailType(scripted.EmailType),
		ServiceName:         scripted.ServiceName,
		Currency:            scripted.Currency,
		BillingCycle:        model.BillingCycle(scripted.BillingCycle),
		Category:            scripted.Category,
		Description:         scripted.Description,
		Confidence:          scripted.Confidence,
		IsSubscription:      scripted.IsSubscription,
		IsConfirmationEmail: scripted.IsConfirmationEmail,
	}
	if scripted.Amount != nil {
		amount, err := decimal.NewFromString(*scripted.Amount)
		if err != nil {
			return nil, fmt.Errorf("extraction for %s has invalid amount %q: %w", email.ID, *scripted.Amount, err)
		}
		extraction.Amount = decimal.NullDecimal{Decimal: amount, Valid: true}
	}
	return extraction, nil
}
