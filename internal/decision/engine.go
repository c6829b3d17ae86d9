// Package decision implements the detection lifecycle state machine:
// auto-import, manual review, and the user-triggered import and reject
// transitions.
package decision

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"
)

// AutoImportThreshold is the confidence required, together with source
// confirmation, to import a detection without review. Fixed business rule.
const AutoImportThreshold = 85.0

// Outcome describes what the engine decided for one detection.
type Outcome string

// Outcome constants.
const (
	// OutcomeAutoImported means a subscription was created and the
	// detection finalized without review.
	OutcomeAutoImported Outcome = "auto_imported"
	// OutcomePending means the detection was stored for manual review.
	OutcomePending Outcome = "pending"
	// OutcomeExistingSubscription means an active subscription already
	// covers the service; the detection served as a price signal only.
	OutcomeExistingSubscription Outcome = "existing_subscription"
	// OutcomeDuplicate means a terminal detection already covers this
	// evidence; nothing was written.
	OutcomeDuplicate Outcome = "duplicate"
)

// Notifier receives auto-import events. Delivery is an external concern;
// a nil Notifier disables notifications.
type Notifier interface {
	AutoImported(ctx context.Context, sub *model.Subscription, d *model.Detection)
}

// Engine evaluates deduplicated detections against persisted state.
type Engine struct {
	storage  service.Storage
	notifier Notifier
	now      func() time.Time
}

// NewEngine creates a decision engine. notifier may be nil.
func NewEngine(storage service.Storage, notifier Notifier) *Engine {
	return &Engine{
		storage:  storage,
		notifier: notifier,
		now:      time.Now,
	}
}

// Decide evaluates one detection after dedup and price tracking.
func (e *Engine) Decide(ctx context.Context, d *model.Detection) (Outcome, error) {
	existing, err := e.storage.GetActiveSubscription(ctx, d.ServiceName)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return OutcomePending, fmt.Errorf("failed to check existing subscriptions: %w", err)
	}
	if existing != nil {
		// Already subscribed: the detection fed the price ledger, nothing
		// to review
		slog.Debug("Service already has an active subscription",
			"service", d.ServiceName,
			"subscription_id", existing.ID)
		return OutcomeExistingSubscription, nil
	}

	if d.Confirmed && d.Confidence >= AutoImportThreshold {
		return e.autoImport(ctx, d)
	}

	_, result, err := e.storage.UpsertDetection(ctx, d)
	if err != nil {
		return OutcomePending, fmt.Errorf("failed to store pending detection: %w", err)
	}
	if result == service.UpsertSkipped {
		return OutcomeDuplicate, nil
	}
	return OutcomePending, nil
}

// autoImport creates the subscription and finalizes the detection as one
// logical unit. If any step fails the detection falls back to pending so
// the evidence is not lost, and no auto-imported detection can exist
// without its subscription.
func (e *Engine) autoImport(ctx context.Context, d *model.Detection) (Outcome, error) {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return OutcomePending, fmt.Errorf("failed to begin auto-import transaction: %w", err)
	}

	sub, outcome, err := e.autoImportTx(ctx, tx, d)
	if err != nil {
		_ = tx.Rollback()
		if fallbackErr := e.fallbackToPending(ctx, d); fallbackErr != nil {
			return OutcomePending, errors.Join(err, fallbackErr)
		}
		return OutcomePending, err
	}

	if commitErr := tx.Commit(); commitErr != nil {
		if fallbackErr := e.fallbackToPending(ctx, d); fallbackErr != nil {
			return OutcomePending, errors.Join(commitErr, fallbackErr)
		}
		return OutcomePending, fmt.Errorf("failed to commit auto-import: %w", commitErr)
	}

	if outcome == OutcomeAutoImported {
		slog.Info("Auto-imported subscription",
			"service", d.ServiceName,
			"confidence", d.Confidence,
			"source", d.Source)
		if e.notifier != nil && sub != nil {
			e.notifier.AutoImported(ctx, sub, d)
		}
	}
	return outcome, nil
}

func (e *Engine) autoImportTx(ctx context.Context, tx service.Transaction, d *model.Detection) (*model.Subscription, Outcome, error) {
	stored, result, err := tx.UpsertDetection(ctx, d)
	if err != nil {
		return nil, OutcomePending, fmt.Errorf("failed to store detection: %w", err)
	}
	if result == service.UpsertSkipped {
		return nil, OutcomeDuplicate, nil
	}

	sub := subscriptionFromDetection(stored, model.ProvenanceAuto, e.now())
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return nil, OutcomePending, fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := tx.UpdateDetectionStatus(ctx, stored.ID, model.StatusAutoImported); err != nil {
		return nil, OutcomePending, fmt.Errorf("failed to finalize detection: %w", err)
	}
	return sub, OutcomeAutoImported, nil
}

// fallbackToPending keeps the evidence reviewable after a failed
// auto-import.
func (e *Engine) fallbackToPending(ctx context.Context, d *model.Detection) error {
	pending := *d
	pending.Status = model.StatusPending
	if _, _, err := e.storage.UpsertDetection(ctx, &pending); err != nil {
		return fmt.Errorf("failed to preserve detection as pending: %w", err)
	}
	return nil
}

// Import finalizes a pending detection into a real subscription on explicit
// user action. Importing an already-finalized detection is a conflict, not
// a repeat.
func (e *Engine) Import(ctx context.Context, detectionID string) (*model.Subscription, error) {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d, err := tx.GetDetection(ctx, detectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load detection %s: %w", detectionID, err)
	}
	if d.Status.IsTerminal() {
		return nil, fmt.Errorf("detection %s is already %s: %w", detectionID, d.Status, common.ErrImportConflict)
	}

	existing, err := tx.GetActiveSubscription(ctx, d.ServiceName)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("failed to check existing subscriptions: %w", err)
	}
	if existing != nil {
		return nil, common.NewUserError(
			fmt.Sprintf("an active subscription for %s already exists", d.ServiceName),
			common.ErrDuplicateEntry)
	}

	sub := subscriptionFromDetection(d, model.ProvenanceUser, e.now())
	if err := tx.SaveSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	if err := tx.UpdateDetectionStatus(ctx, d.ID, model.StatusImported); err != nil {
		return nil, fmt.Errorf("failed to finalize detection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit import: %w", err)
	}

	slog.Info("Imported detection",
		"detection_id", d.ID,
		"service", d.ServiceName)
	return sub, nil
}

// Reject dismisses a pending detection on explicit user action. The
// conflict check and the status write share a transaction so a concurrent
// finalization cannot slip between them.
func (e *Engine) Reject(ctx context.Context, detectionID string) error {
	tx, err := e.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin reject transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	d, err := tx.GetDetection(ctx, detectionID)
	if err != nil {
		return fmt.Errorf("failed to load detection %s: %w", detectionID, err)
	}
	if d.Status.IsTerminal() {
		return fmt.Errorf("detection %s is already %s: %w", detectionID, d.Status, common.ErrImportConflict)
	}

	if err := tx.UpdateDetectionStatus(ctx, d.ID, model.StatusRejected); err != nil {
		return fmt.Errorf("failed to reject detection: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reject: %w", err)
	}

	slog.Info("Rejected detection",
		"detection_id", d.ID,
		"service", d.ServiceName)
	return nil
}

func subscriptionFromDetection(d *model.Detection, provenance model.SubscriptionProvenance, createdAt time.Time) *model.Subscription {
	return &model.Subscription{
		ID:           uuid.NewString(),
		ServiceName:  d.ServiceName,
		Amount:       d.Amount,
		Currency:     d.Currency,
		BillingCycle: d.BillingCycle,
		Category:     d.Category,
		Provenance:   provenance,
		Active:       true,
		CreatedAt:    createdAt,
	}
}
