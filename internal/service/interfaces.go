// Package service defines the interfaces and shared types for all
// application services.
package service

import (
	"context"
	"time"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// DetectionFilter defines filtering options for detection queries.
type DetectionFilter struct {
	Status *model.DetectionStatus
	Source *model.DetectionSource
	Limit  int
	Offset int
}

// UpsertResult describes what an idempotent detection write did.
type UpsertResult string

// Upsert result constants.
const (
	// UpsertInserted means a new detection row was created.
	UpsertInserted UpsertResult = "inserted"
	// UpsertRefreshed means an existing pending detection for the same
	// service was updated in place.
	UpsertRefreshed UpsertResult = "refreshed"
	// UpsertSkipped means a terminal detection already covers this source
	// reference; nothing was written.
	UpsertSkipped UpsertResult = "skipped"
)

// Storage defines the contract for the persistence layer.
type Storage interface {
	// Detection operations. UpsertDetection is keyed by source reference:
	// a terminal detection with the same SourceRef makes the call a no-op,
	// and a pending detection with the same ServiceName is refreshed in
	// place rather than duplicated.
	UpsertDetection(ctx context.Context, d *model.Detection) (*model.Detection, UpsertResult, error)
	GetDetection(ctx context.Context, id string) (*model.Detection, error)
	GetDetectionBySourceRef(ctx context.Context, sourceRef string) (*model.Detection, error)
	GetDetections(ctx context.Context, filter DetectionFilter) ([]model.Detection, error)
	UpdateDetectionStatus(ctx context.Context, id string, status model.DetectionStatus) error

	// Subscription operations.
	SaveSubscription(ctx context.Context, sub *model.Subscription) error
	GetActiveSubscription(ctx context.Context, serviceName string) (*model.Subscription, error)
	GetActiveSubscriptions(ctx context.Context) ([]model.Subscription, error)

	// Price history operations. History is append-only per service.
	AppendPriceHistory(ctx context.Context, entry *model.PriceHistoryEntry) error
	GetLatestPrice(ctx context.Context, serviceName string) (*model.PriceHistoryEntry, error)
	GetPriceHistory(ctx context.Context, serviceName string) ([]model.PriceHistoryEntry, error)

	// Database management.
	Migrate(ctx context.Context) error
	BeginTx(ctx context.Context) (Transaction, error)
	Close() error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit() error
	Rollback() error
	// Include all Storage methods for use within the transaction
	Storage
}

// ProgressFunc reports incremental progress of a long-running scan phase.
type ProgressFunc func(phase string, current, total int)

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// ScanSummary shows the results of one ingestion run.
type ScanSummary struct {
	Scanned      int // raw items seen (emails or transactions)
	Skipped      int // per-item failures absorbed mid-batch
	Found        int // candidates before dedup
	Unique       int // detections after dedup
	AutoImported int
	Pending      int
	PriceChanges []model.PriceChange
	Duration     time.Duration
}

// Merge folds another summary into this one.
func (s *ScanSummary) Merge(other ScanSummary) {
	s.Scanned += other.Scanned
	s.Skipped += other.Skipped
	s.Found += other.Found
	s.Unique += other.Unique
	s.AutoImported += other.AutoImported
	s.Pending += other.Pending
	s.PriceChanges = append(s.PriceChanges, other.PriceChanges...)
}

// CycleSummary aggregates spend for one billing cycle or category bucket.
type CycleSummary struct {
	Count int
	Total float64
}

// ServiceSpend is one entry in the top-recurring-services list.
type ServiceSpend struct {
	ServiceName  string
	Currency     string
	BillingCycle model.BillingCycle
	Amount       float64
}

// CancelSuggestion flags an expensive service with weak evidence of use.
type CancelSuggestion struct {
	ServiceName   string
	Currency      string
	Reason        string
	Amount        float64
	EvidenceCount int
}

// DeepScanReport aggregates a deep scan into a spending overview.
type DeepScanReport struct {
	ByCategory        map[string]CycleSummary
	ByCycle           map[model.BillingCycle]CycleSummary
	ByCurrency        map[string]CycleSummary
	TopServices       []ServiceSpend
	CancelSuggestions []CancelSuggestion
	Summary           ScanSummary
}
