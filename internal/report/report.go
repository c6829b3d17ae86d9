// Package report aggregates deep-scan results into a spending overview.
package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"
)

// Config holds the report thresholds.
type Config struct {
	// TopServices caps the top-recurring-services list.
	TopServices int
	// CancelThreshold is the monthly-equivalent spend (home currency)
	// above which a weakly-evidenced service gets a cancel suggestion.
	CancelThreshold decimal.Decimal
	// CancelMaxEvidence is the evidence count at or below which a service
	// counts as weakly evidenced.
	CancelMaxEvidence int
}

// DefaultConfig returns the default report configuration.
func DefaultConfig() Config {
	return Config{
		TopServices:       5,
		CancelThreshold:   decimal.NewFromInt(500),
		CancelMaxEvidence: 2,
	}
}

// Build aggregates the detections surviving a deep scan into spending
// breakdowns, a top-services list, and cancel suggestions.
func Build(detections []model.Detection, summary service.ScanSummary, config Config) *service.DeepScanReport {
	if config.TopServices <= 0 {
		config.TopServices = DefaultConfig().TopServices
	}
	if config.CancelThreshold.IsZero() {
		config.CancelThreshold = DefaultConfig().CancelThreshold
	}

	rpt := &service.DeepScanReport{
		ByCategory: make(map[string]service.CycleSummary),
		ByCycle:    make(map[model.BillingCycle]service.CycleSummary),
		ByCurrency: make(map[string]service.CycleSummary),
		Summary:    summary,
	}

	var spends []service.ServiceSpend
	for _, d := range detections {
		if !d.Amount.Valid {
			continue
		}
		amount, _ := d.Amount.Decimal.Float64()

		addSummary(rpt.ByCategory, string(d.Category), amount)
		addSummaryCycle(rpt.ByCycle, d.BillingCycle, amount)
		addSummary(rpt.ByCurrency, d.Currency, amount)

		spends = append(spends, service.ServiceSpend{
			ServiceName:  d.ServiceName,
			Currency:     d.Currency,
			BillingCycle: d.BillingCycle,
			Amount:       amount,
		})

		if suggestion := cancelSuggestion(d, config); suggestion != nil {
			rpt.CancelSuggestions = append(rpt.CancelSuggestions, *suggestion)
		}
	}

	sort.Slice(spends, func(i, j int) bool {
		return monthlyEquivalent(spends[i].Amount, spends[i].BillingCycle) >
			monthlyEquivalent(spends[j].Amount, spends[j].BillingCycle)
	})
	if len(spends) > config.TopServices {
		spends = spends[:config.TopServices]
	}
	rpt.TopServices = spends

	return rpt
}

func addSummary(m map[string]service.CycleSummary, key string, amount float64) {
	s := m[key]
	s.Count++
	s.Total += amount
	m[key] = s
}

func addSummaryCycle(m map[model.BillingCycle]service.CycleSummary, key model.BillingCycle, amount float64) {
	s := m[key]
	s.Count++
	s.Total += amount
	m[key] = s
}

// monthlyEquivalent scales an amount to a rough per-month figure so
// different cycles rank on one axis.
func monthlyEquivalent(amount float64, cycle model.BillingCycle) float64 {
	switch cycle {
	case model.CycleDaily:
		return amount * 30
	case model.CycleWeekly:
		return amount * 4.33
	case model.CycleQuarterly:
		return amount / 3
	case model.CycleYearly:
		return amount / 12
	default:
		return amount
	}
}

// cancelSuggestion flags services that cost real money but show little
// evidence of regular use.
func cancelSuggestion(d model.Detection, config Config) *service.CancelSuggestion {
	amount, _ := d.Amount.Decimal.Float64()
	monthly := monthlyEquivalent(amount, d.BillingCycle)

	threshold, _ := config.CancelThreshold.Float64()
	if monthly < threshold || d.EvidenceCount > config.CancelMaxEvidence {
		return nil
	}

	return &service.CancelSuggestion{
		ServiceName:   d.ServiceName,
		Currency:      d.Currency,
		Amount:        amount,
		EvidenceCount: d.EvidenceCount,
		Reason: fmt.Sprintf("costs ~%.0f %s/month with only %d observed charge(s)",
			monthly, d.Currency, d.EvidenceCount),
	}
}
