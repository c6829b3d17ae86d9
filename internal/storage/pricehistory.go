package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
)

// AppendPriceHistory adds a new price point for a service. Existing points
// are never modified.
func (s *SQLiteStorage) AppendPriceHistory(ctx context.Context, entry *model.PriceHistoryEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validatePriceHistoryEntry(entry); err != nil {
		return err
	}
	return s.appendPriceHistoryTx(ctx, s.db, entry)
}

func (s *SQLiteStorage) appendPriceHistoryTx(ctx context.Context, q queryable, entry *model.PriceHistoryEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO price_history (service_name, amount, currency, billing_cycle, observed_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		entry.ServiceName, entry.Amount.String(), entry.Currency,
		string(entry.BillingCycle), entry.ObservedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append price history for %s: %w", entry.ServiceName, err)
	}
	return nil
}

// GetLatestPrice returns the most recent price point for a service.
func (s *SQLiteStorage) GetLatestPrice(ctx context.Context, serviceName string) (*model.PriceHistoryEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(serviceName, "serviceName"); err != nil {
		return nil, err
	}
	return s.getLatestPriceTx(ctx, s.db, serviceName)
}

func (s *SQLiteStorage) getLatestPriceTx(ctx context.Context, q queryable, serviceName string) (*model.PriceHistoryEntry, error) {
	row := q.QueryRowContext(ctx, `
		SELECT service_name, amount, currency, billing_cycle, observed_at
		FROM price_history
		WHERE service_name = ?
		ORDER BY observed_at DESC, id DESC
		LIMIT 1
	`, serviceName)

	entry, err := scanPriceHistoryEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// GetPriceHistory returns all price points for a service in observation order.
func (s *SQLiteStorage) GetPriceHistory(ctx context.Context, serviceName string) ([]model.PriceHistoryEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(serviceName, "serviceName"); err != nil {
		return nil, err
	}
	return s.getPriceHistoryTx(ctx, s.db, serviceName)
}

func (s *SQLiteStorage) getPriceHistoryTx(ctx context.Context, q queryable, serviceName string) ([]model.PriceHistoryEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT service_name, amount, currency, billing_cycle, observed_at
		FROM price_history
		WHERE service_name = ?
		ORDER BY observed_at ASC, id ASC
	`, serviceName)
	if err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.PriceHistoryEntry
	for rows.Next() {
		entry, scanErr := scanPriceHistoryEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

func scanPriceHistoryEntry(row rowScanner) (*model.PriceHistoryEntry, error) {
	var entry model.PriceHistoryEntry
	var amount, cycle string

	err := row.Scan(&entry.ServiceName, &amount, &entry.Currency, &cycle, &entry.ObservedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan price history entry: %w", err)
	}

	entry.BillingCycle = model.BillingCycle(cycle)
	entry.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored price %q: %w", amount, err)
	}
	return &entry, nil
}
