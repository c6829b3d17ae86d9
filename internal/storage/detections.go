package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/code-shreya/subscription-manager/internal/common"
	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"
)

const detectionColumns = `id, source, source_ref, raw_service_name, service_name,
	amount, currency, billing_cycle, category, confidence, status,
	evidence_count, confirmed, detected_at`

// UpsertDetection writes a detection idempotently. A terminal detection with
// the same source reference makes this a no-op; a pending detection for the
// same service is refreshed in place instead of duplicated.
func (s *SQLiteStorage) UpsertDetection(ctx context.Context, d *model.Detection) (*model.Detection, service.UpsertResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, service.UpsertSkipped, err
	}
	if err := validateDetection(d); err != nil {
		return nil, service.UpsertSkipped, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, service.UpsertSkipped, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, result, err := s.upsertDetectionTx(ctx, tx, d)
	if err != nil {
		return nil, result, err
	}

	if err := tx.Commit(); err != nil {
		return nil, service.UpsertSkipped, fmt.Errorf("failed to commit detection upsert: %w", err)
	}
	return stored, result, nil
}

func (s *SQLiteStorage) upsertDetectionTx(ctx context.Context, tx *sql.Tx, d *model.Detection) (*model.Detection, service.UpsertResult, error) {
	// Check-then-insert by source_ref must be atomic; callers hold a
	// transaction here.
	existing, err := s.getDetectionBySourceRefTx(ctx, tx, d.SourceRef)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, service.UpsertSkipped, err
	}
	if existing != nil {
		if existing.Status.IsTerminal() {
			// Duplicate ingestion of already-decided evidence: no-op
			return existing, service.UpsertSkipped, nil
		}
		return s.refreshDetectionTx(ctx, tx, existing.ID, d)
	}

	pending, err := s.getPendingDetectionByServiceTx(ctx, tx, d.ServiceName)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, service.UpsertSkipped, err
	}
	if pending != nil {
		return s.refreshDetectionTx(ctx, tx, pending.ID, d)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO detections (`+detectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID, string(d.Source), d.SourceRef, d.RawServiceName, d.ServiceName,
		amountArg(d.Amount), d.Currency, string(d.BillingCycle), string(d.Category),
		d.Confidence, string(d.Status), d.EvidenceCount, d.Confirmed, d.DetectedAt,
	)
	if err != nil {
		return nil, service.UpsertSkipped, fmt.Errorf("failed to insert detection %s: %w", d.ID, err)
	}

	stored := *d
	return &stored, service.UpsertInserted, nil
}

// refreshDetectionTx overwrites a pending detection's fields with fresher
// evidence while keeping the original row identity.
func (s *SQLiteStorage) refreshDetectionTx(ctx context.Context, tx *sql.Tx, id string, d *model.Detection) (*model.Detection, service.UpsertResult, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE detections
		SET source = ?, source_ref = ?, raw_service_name = ?, service_name = ?,
			amount = ?, currency = ?, billing_cycle = ?, category = ?,
			confidence = ?, evidence_count = ?, confirmed = ?, detected_at = ?
		WHERE id = ? AND status = 'pending'
	`,
		string(d.Source), d.SourceRef, d.RawServiceName, d.ServiceName,
		amountArg(d.Amount), d.Currency, string(d.BillingCycle), string(d.Category),
		d.Confidence, d.EvidenceCount, d.Confirmed, d.DetectedAt,
		id,
	)
	if err != nil {
		return nil, service.UpsertSkipped, fmt.Errorf("failed to refresh detection %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, service.UpsertSkipped, fmt.Errorf("failed to check refreshed rows: %w", err)
	}
	if affected == 0 {
		// The row turned terminal after the lookup; this is duplicate
		// evidence, not a refresh
		current, err := s.getDetectionTx(ctx, tx, id)
		if err != nil {
			return nil, service.UpsertSkipped, err
		}
		return current, service.UpsertSkipped, nil
	}

	stored := *d
	stored.ID = id
	stored.Status = model.StatusPending
	return &stored, service.UpsertRefreshed, nil
}

// GetDetection retrieves a detection by ID.
func (s *SQLiteStorage) GetDetection(ctx context.Context, id string) (*model.Detection, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getDetectionTx(ctx, s.db, id)
}

func (s *SQLiteStorage) getDetectionTx(ctx context.Context, q queryable, id string) (*model.Detection, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+detectionColumns+` FROM detections WHERE id = ?
	`, id)
	return scanDetection(row)
}

// GetDetectionBySourceRef retrieves a detection by its source reference.
func (s *SQLiteStorage) GetDetectionBySourceRef(ctx context.Context, sourceRef string) (*model.Detection, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(sourceRef, "sourceRef"); err != nil {
		return nil, err
	}
	return s.getDetectionBySourceRefTx(ctx, s.db, sourceRef)
}

func (s *SQLiteStorage) getDetectionBySourceRefTx(ctx context.Context, q queryable, sourceRef string) (*model.Detection, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+detectionColumns+` FROM detections
		WHERE source_ref = ?
		ORDER BY detected_at DESC LIMIT 1
	`, sourceRef)
	return scanDetection(row)
}

func (s *SQLiteStorage) getPendingDetectionByServiceTx(ctx context.Context, q queryable, serviceName string) (*model.Detection, error) {
	row := q.QueryRowContext(ctx, `
		SELECT `+detectionColumns+` FROM detections
		WHERE service_name = ? AND status = 'pending'
	`, serviceName)
	return scanDetection(row)
}

// GetDetections retrieves detections matching the filter, newest first.
func (s *SQLiteStorage) GetDetections(ctx context.Context, filter service.DetectionFilter) ([]model.Detection, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	return s.getDetectionsTx(ctx, s.db, filter)
}

func (s *SQLiteStorage) getDetectionsTx(ctx context.Context, q queryable, filter service.DetectionFilter) ([]model.Detection, error) {
	var conditions []string
	var args []any

	if filter.Status != nil {
		conditions = append(conditions, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Source != nil {
		conditions = append(conditions, "source = ?")
		args = append(args, string(*filter.Source))
	}

	query := `SELECT ` + detectionColumns + ` FROM detections`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY detected_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var detections []model.Detection
	for rows.Next() {
		d, scanErr := scanDetectionRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		detections = append(detections, *d)
	}
	return detections, rows.Err()
}

// UpdateDetectionStatus transitions a detection to a new lifecycle state.
func (s *SQLiteStorage) UpdateDetectionStatus(ctx context.Context, id string, status model.DetectionStatus) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return s.updateDetectionStatusTx(ctx, s.db, id, status)
}

func (s *SQLiteStorage) updateDetectionStatusTx(ctx context.Context, q queryable, id string, status model.DetectionStatus) error {
	result, err := q.ExecContext(ctx, `
		UPDATE detections SET status = ? WHERE id = ?
	`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update detection status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("detection %s: %w", id, common.ErrNotFound)
	}
	return nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDetection(row *sql.Row) (*model.Detection, error) {
	d, err := scanDetectionRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, err
	}
	return d, nil
}

func scanDetectionRow(row rowScanner) (*model.Detection, error) {
	var d model.Detection
	var source, cycle, category, status string
	var amount sql.NullString

	err := row.Scan(
		&d.ID, &source, &d.SourceRef, &d.RawServiceName, &d.ServiceName,
		&amount, &d.Currency, &cycle, &category, &d.Confidence, &status,
		&d.EvidenceCount, &d.Confirmed, &d.DetectedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan detection: %w", err)
	}

	d.Source = model.DetectionSource(source)
	d.BillingCycle = model.BillingCycle(cycle)
	d.Category = model.Category(category)
	d.Status = model.DetectionStatus(status)

	d.Amount, err = amountFromColumn(amount)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// amountArg converts a nullable decimal to a driver argument. Amounts are
// stored as decimal strings so no precision is lost round-tripping.
func amountArg(amount decimal.NullDecimal) any {
	if !amount.Valid {
		return nil
	}
	return amount.Decimal.String()
}

func amountFromColumn(col sql.NullString) (decimal.NullDecimal, error) {
	if !col.Valid {
		return decimal.NullDecimal{}, nil
	}
	dec, err := decimal.NewFromString(col.String)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("failed to parse stored amount %q: %w", col.String, err)
	}
	return decimal.NullDecimal{Decimal: dec, Valid: true}, nil
}
