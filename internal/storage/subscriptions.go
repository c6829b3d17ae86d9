package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
)

const subscriptionColumns = `id, service_name, amount, currency, billing_cycle,
	category, provenance, is_active, created_at`

// SaveSubscription inserts a subscription record.
func (s *SQLiteStorage) SaveSubscription(ctx context.Context, sub *model.Subscription) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateSubscription(sub); err != nil {
		return err
	}
	return s.saveSubscriptionTx(ctx, s.db, sub)
}

func (s *SQLiteStorage) saveSubscriptionTx(ctx context.Context, q queryable, sub *model.Subscription) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sub.ID, sub.ServiceName, amountArg(sub.Amount), sub.Currency,
		string(sub.BillingCycle), string(sub.Category), string(sub.Provenance),
		sub.Active, sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription %s: %w", sub.ServiceName, err)
	}
	return nil
}

// GetActiveSubscription finds the active subscription for a normalized
// service name, if any.
func (s *SQLiteStorage) GetActiveSubscription(ctx context.Context, serviceName string) (*model.Subscription, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(serviceName, "serviceName"); err != nil {
		return nil, err
	}
	return s.getActiveSubscriptionTx(ctx, s.db, serviceName)
}

func (s *SQLiteStorage) getActiveSubscriptionTx(ctx context.Context, q queryable, serviceName string) (*model.Subscription, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE service_name = ? AND is_active = 1
	`, serviceName)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

// GetActiveSubscriptions lists all active subscriptions.
func (s *SQLiteStorage) GetActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getActiveSubscriptionsTx(ctx, s.db)
}

func (s *SQLiteStorage) getActiveSubscriptionsTx(ctx context.Context, q queryable) ([]model.Subscription, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE is_active = 1
		ORDER BY service_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var subs []model.Subscription
	for rows.Next() {
		sub, scanErr := scanSubscription(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

func scanSubscription(row rowScanner) (*model.Subscription, error) {
	var sub model.Subscription
	var cycle, category, provenance string
	var amount sql.NullString

	err := row.Scan(
		&sub.ID, &sub.ServiceName, &amount, &sub.Currency, &cycle,
		&category, &provenance, &sub.Active, &sub.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	sub.BillingCycle = model.BillingCycle(cycle)
	sub.Category = model.Category(category)
	sub.Provenance = model.SubscriptionProvenance(provenance)

	sub.Amount, err = amountFromColumn(amount)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
