// Package model defines the core domain models used throughout the application.
package model

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DetectionSource identifies which evidence stream produced a detection.
type DetectionSource string

// Detection source constants.
const (
	SourceEmail DetectionSource = "email"
	SourceBank  DetectionSource = "bank"
)

// DetectionStatus is the lifecycle state of a detection.
type DetectionStatus string

// Detection status constants.
const (
	StatusPending      DetectionStatus = "pending"
	StatusImported     DetectionStatus = "imported"
	StatusAutoImported DetectionStatus = "auto_imported"
	StatusRejected     DetectionStatus = "rejected"
)

// IsTerminal reports whether a detection in this status can no longer change.
func (s DetectionStatus) IsTerminal() bool {
	return s == StatusImported || s == StatusAutoImported || s == StatusRejected
}

// BillingCycle is the inferred charge interval of a subscription.
type BillingCycle string

// Billing cycle constants.
const (
	CycleDaily     BillingCycle = "daily"
	CycleWeekly    BillingCycle = "weekly"
	CycleMonthly   BillingCycle = "monthly"
	CycleQuarterly BillingCycle = "quarterly"
	CycleYearly    BillingCycle = "yearly"
	CycleOneTime   BillingCycle = "one-time"
	CycleUnknown   BillingCycle = "unknown"
)

// Detection is the canonical subscription candidate produced by one
// ingestion run, from either evidence stream.
type Detection struct {
	DetectedAt     time.Time
	ID             string
	Source         DetectionSource
	SourceRef      string
	RawServiceName string
	ServiceName    string // normalized: lower-cased, whitespace-collapsed
	Currency       string
	BillingCycle   BillingCycle
	Category       Category
	Status         DetectionStatus
	Amount         decimal.NullDecimal
	Confidence     float64 // 0..100
	EvidenceCount  int
	Confirmed      bool // source-level confirmation (email confirmation or regular bank evidence)
}

// Candidate is a raw subscription guess emitted by a source-specific
// extractor, before normalization.
type Candidate struct {
	ObservedAt    time.Time
	Source        DetectionSource
	SourceRef     string
	ServiceName   string
	Currency      string
	Cycle         BillingCycle
	CategoryHint  string
	Amount        decimal.NullDecimal
	Confidence    float64
	EvidenceCount int
	Confirmed     bool
}

// EvidenceRef derives a stable source reference from a set of bank
// transaction IDs, so re-ingesting the same evidence is idempotent.
func EvidenceRef(transactionIDs []string) string {
	ids := make([]string, len(transactionIDs))
	copy(ids, transactionIDs)
	sort.Strings(ids)
	hash := sha256.Sum256([]byte(strings.Join(ids, "|")))
	return fmt.Sprintf("txn:%x", hash[:16])
}
