// Package normalize maps source-specific candidates into the canonical
// detection shape. Pure transformation, no I/O.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// Normalizer produces canonical detections from raw candidates.
type Normalizer struct {
	aliases      *AliasTable
	homeCurrency string
	now          func() time.Time
}

// NewNormalizer creates a normalizer with the given alias table and home
// currency. The home currency is the fallback when a source carries no
// currency of its own (bank feeds, terse emails).
func NewNormalizer(aliases *AliasTable, homeCurrency string) *Normalizer {
	if aliases == nil {
		aliases = NewAliasTable(DefaultAliases())
	}
	if homeCurrency == "" {
		homeCurrency = "INR"
	}
	return &Normalizer{
		aliases:      aliases,
		homeCurrency: homeCurrency,
		now:          time.Now,
	}
}

var collapsePattern = regexp.MustCompile(`\s+`)

// NormalizeServiceName lower-cases, trims, and whitespace-collapses a raw
// service name.
func NormalizeServiceName(raw string) string {
	return collapsePattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), " ")
}

// Normalize converts one candidate into a detection. Amounts are never
// guessed: an unparseable or absent amount stays null.
func (n *Normalizer) Normalize(c model.Candidate) model.Detection {
	serviceName := NormalizeServiceName(c.ServiceName)

	category := n.aliases.Lookup(serviceName)
	if category == model.CategoryOther && c.CategoryHint != "" {
		// The hint is a category label from the source, not a vendor name
		if hinted, ok := model.ParseCategory(c.CategoryHint); ok {
			category = hinted
		}
	}

	currency := strings.ToUpper(strings.TrimSpace(c.Currency))
	if currency == "" {
		currency = n.homeCurrency
	}

	cycle := c.Cycle
	if cycle == "" {
		cycle = model.CycleUnknown
	}

	confidence := c.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	evidence := c.EvidenceCount
	if evidence < 1 {
		evidence = 1
	}

	return model.Detection{
		ID:             uuid.NewString(),
		Source:         c.Source,
		SourceRef:      c.SourceRef,
		RawServiceName: c.ServiceName,
		ServiceName:    serviceName,
		Amount:         c.Amount,
		Currency:       currency,
		BillingCycle:   cycle,
		Category:       category,
		Confidence:     confidence,
		Status:         model.StatusPending,
		EvidenceCount:  evidence,
		Confirmed:      c.Confirmed,
		DetectedAt:     n.now(),
	}
}

// NormalizeAll converts a batch of candidates.
func (n *Normalizer) NormalizeAll(candidates []model.Candidate) []model.Detection {
	detections := make([]model.Detection, 0, len(candidates))
	for _, c := range candidates {
		detections = append(detections, n.Normalize(c))
	}
	return detections
}
