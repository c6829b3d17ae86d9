package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/code-shreya/subscription-manager/internal/model"
)

// Validation errors.
var (
	ErrNilContext   = errors.New("context cannot be nil")
	ErrEmptyString  = errors.New("value cannot be empty")
	ErrNilDetection = errors.New("detection cannot be nil")
	ErrNilEntry     = errors.New("entry cannot be nil")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(value, name string) error {
	if value == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, name)
	}
	return nil
}

func validateDetection(d *model.Detection) error {
	if d == nil {
		return ErrNilDetection
	}
	if err := validateString(d.ID, "detection.ID"); err != nil {
		return err
	}
	if err := validateString(d.SourceRef, "detection.SourceRef"); err != nil {
		return err
	}
	if err := validateString(d.ServiceName, "detection.ServiceName"); err != nil {
		return err
	}
	if d.Confidence < 0 || d.Confidence > 100 {
		return fmt.Errorf("detection confidence %.2f out of range [0,100]", d.Confidence)
	}
	return nil
}

func validateSubscription(sub *model.Subscription) error {
	if sub == nil {
		return ErrNilEntry
	}
	if err := validateString(sub.ID, "subscription.ID"); err != nil {
		return err
	}
	return validateString(sub.ServiceName, "subscription.ServiceName")
}

func validatePriceHistoryEntry(entry *model.PriceHistoryEntry) error {
	if entry == nil {
		return ErrNilEntry
	}
	if err := validateString(entry.ServiceName, "entry.ServiceName"); err != nil {
		return err
	}
	if entry.ObservedAt.IsZero() {
		return fmt.Errorf("entry.ObservedAt must be set")
	}
	return nil
}
