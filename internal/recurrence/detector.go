// Package recurrence turns flat bank-transaction history into recurring
// charge candidates by grouping merchants and bucketing charge intervals.
package recurrence

import (
	"regexp"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// Config holds tuning knobs for the detector.
type Config struct {
	// AmountTolerance is the absolute amount difference under which two
	// charges count as the same price. Subscription prices are fixed, so
	// this only absorbs rounding, never percentage drift.
	AmountTolerance decimal.Decimal
	// MinOccurrences is the number of charges required before a merchant
	// group can produce a candidate.
	MinOccurrences int
}

// DefaultConfig returns the default detector configuration.
func DefaultConfig() Config {
	return Config{
		AmountTolerance: decimal.New(1, -2), // 0.01
		MinOccurrences:  2,
	}
}

// Detector infers recurring charge patterns from transaction history.
type Detector struct {
	config Config
}

// NewDetector creates a detector with the default configuration.
func NewDetector() *Detector {
	return NewDetectorWithConfig(DefaultConfig())
}

// NewDetectorWithConfig creates a detector with a custom configuration.
func NewDetectorWithConfig(config Config) *Detector {
	if config.MinOccurrences < 2 {
		config.MinOccurrences = 2
	}
	if config.AmountTolerance.IsZero() {
		config.AmountTolerance = decimal.New(1, -2)
	}
	return &Detector{config: config}
}

// cycleBand maps a billing cycle to its accepted day-interval range.
type cycleBand struct {
	cycle model.BillingCycle
	min   float64
	max   float64
}

// Interval buckets, in days. Deltas falling outside every band, or
// disagreeing with each other, classify as unknown.
var cycleBands = []cycleBand{
	{model.CycleDaily, 0.5, 1.5},
	{model.CycleWeekly, 5, 9},
	{model.CycleMonthly, 26, 33},
	{model.CycleQuarterly, 85, 97},
	{model.CycleYearly, 350, 380},
}

// Detect groups one account's transactions into recurring-pattern
// candidates. Input order does not matter; groups with fewer than
// MinOccurrences charges are dropped because a single charge cannot
// establish recurrence.
func (d *Detector) Detect(transactions []model.BankTransaction) []model.Candidate {
	byMerchant := make(map[string][]model.BankTransaction)
	for _, txn := range transactions {
		merchant := NormalizeMerchant(txn.Merchant)
		if merchant == "" {
			continue
		}
		byMerchant[merchant] = append(byMerchant[merchant], txn)
	}

	merchants := make([]string, 0, len(byMerchant))
	for merchant := range byMerchant {
		merchants = append(merchants, merchant)
	}
	sort.Strings(merchants)

	var candidates []model.Candidate
	for _, merchant := range merchants {
		for _, group := range d.groupByAmount(byMerchant[merchant]) {
			if len(group) < d.config.MinOccurrences {
				continue
			}
			candidates = append(candidates, d.buildCandidate(merchant, group))
		}
	}
	return candidates
}

// groupByAmount splits a merchant's charges into clusters of equal price,
// within the configured absolute tolerance.
func (d *Detector) groupByAmount(txns []model.BankTransaction) [][]model.BankTransaction {
	sorted := make([]model.BankTransaction, len(txns))
	copy(sorted, txns)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Amount.LessThan(sorted[j].Amount)
	})

	var groups [][]model.BankTransaction
	for _, txn := range sorted {
		if len(groups) > 0 {
			current := groups[len(groups)-1]
			base := current[0].Amount
			if txn.Amount.Sub(base).Abs().LessThanOrEqual(d.config.AmountTolerance) {
				groups[len(groups)-1] = append(current, txn)
				continue
			}
		}
		groups = append(groups, []model.BankTransaction{txn})
	}
	return groups
}

func (d *Detector) buildCandidate(merchant string, group []model.BankTransaction) model.Candidate {
	sort.Slice(group, func(i, j int) bool { return group[i].Date.Before(group[j].Date) })

	deltas := make([]float64, 0, len(group)-1)
	for i := 1; i < len(group); i++ {
		deltas = append(deltas, group[i].Date.Sub(group[i-1].Date).Hours()/24)
	}

	cycle := classifyCycle(deltas)
	confidence := d.score(len(group), deltas, cycle)

	ids := make([]string, len(group))
	for i, txn := range group {
		ids[i] = txn.ID
	}
	last := group[len(group)-1]

	return model.Candidate{
		Source:        model.SourceBank,
		SourceRef:     model.EvidenceRef(ids),
		ServiceName:   merchant,
		Amount:        decimal.NullDecimal{Decimal: last.Amount.Abs(), Valid: true},
		Cycle:         cycle,
		Confidence:    confidence,
		EvidenceCount: len(group),
		Confirmed:     len(group) >= d.config.MinOccurrences && cycle != model.CycleUnknown,
		ObservedAt:    last.Date,
	}
}

// classifyCycle buckets inter-charge intervals into a billing cycle. Every
// delta must sit inside the same band; irregular spacing is unknown, not an
// approximation.
func classifyCycle(deltas []float64) model.BillingCycle {
	if len(deltas) == 0 {
		return model.CycleUnknown
	}

	med := median(deltas)
	for _, band := range cycleBands {
		if med < band.min || med > band.max {
			continue
		}
		for _, delta := range deltas {
			if delta < band.min || delta > band.max {
				return model.CycleUnknown
			}
		}
		return band.cycle
	}
	return model.CycleUnknown
}

// score derives a confidence percentage from occurrence count and interval
// regularity. More charges raise it, spread between intervals lowers it,
// and a group that never classified to a cycle is capped well under the
// auto-import range.
func (d *Detector) score(occurrences int, deltas []float64, cycle model.BillingCycle) float64 {
	if occurrences < d.config.MinOccurrences {
		return 0
	}

	confidence := 40 + 10*float64(occurrences)
	if confidence > 90 {
		confidence = 90
	}

	penalty := maxDeviation(deltas) * 2
	if penalty > 25 {
		penalty = 25
	}
	confidence -= penalty

	if cycle == model.CycleUnknown && confidence > 45 {
		confidence = 45
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}

// maxDeviation returns the largest distance of any delta from the median.
func maxDeviation(deltas []float64) float64 {
	if len(deltas) < 2 {
		return 0
	}
	med := median(deltas)

	var max float64
	for _, delta := range deltas {
		dev := delta - med
		if dev < 0 {
			dev = -dev
		}
		if dev > max {
			max = dev
		}
	}
	return max
}

func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

var (
	separatorPattern   = regexp.MustCompile(`[._/\\*]+`)
	trailingRefPattern = regexp.MustCompile(`(?:#\s*)?\d{4,}$`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// Tokens that banks append to statement descriptors but carry no merchant
// identity.
var noiseTokens = map[string]struct{}{
	"pos":       {},
	"ach":       {},
	"debit":     {},
	"autopay":   {},
	"recurring": {},
	"payment":   {},
	"purchase":  {},
	"ref":       {},
	"intl":      {},
	"www":       {},
	"com":       {},
	"inc":       {},
	"llc":       {},
	"ltd":       {},
	"pvt":       {},
}

// NormalizeMerchant reduces a raw statement descriptor to a stable merchant
// key: case-folded, separators collapsed, trailing reference numbers and
// descriptor noise stripped.
func NormalizeMerchant(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = separatorPattern.ReplaceAllString(s, " ")
	s = trailingRefPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		if _, noisy := noiseTokens[field]; noisy {
			continue
		}
		kept = append(kept, field)
	}
	if len(kept) == 0 {
		// Everything was noise; better an odd key than losing the group
		return strings.Join(fields, " ")
	}
	return strings.Join(kept, " ")
}
