// Package storage implements the persistence layer on SQLite.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/code-shreya/subscription-manager/internal/model"
	"github.com/code-shreya/subscription-manager/internal/service"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// queryable abstracts *sql.DB and *sql.Tx for shared query helpers.
type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (service.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &sqliteTransaction{
		tx:      tx,
		storage: s,
	}, nil
}

// sqliteTransaction wraps sql.Tx to implement service.Transaction.
type sqliteTransaction struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTransaction) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTransaction) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTransaction) UpsertDetection(ctx context.Context, d *model.Detection) (*model.Detection, service.UpsertResult, error) {
	if err := validateContext(ctx); err != nil {
		return nil, service.UpsertSkipped, err
	}
	if err := validateDetection(d); err != nil {
		return nil, service.UpsertSkipped, err
	}
	return t.storage.upsertDetectionTx(ctx, t.tx, d)
}

func (t *sqliteTransaction) GetDetection(ctx context.Context, id string) (*model.Detection, error) {
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return t.storage.getDetectionTx(ctx, t.tx, id)
}

func (t *sqliteTransaction) GetDetectionBySourceRef(ctx context.Context, sourceRef string) (*model.Detection, error) {
	if err := validateString(sourceRef, "sourceRef"); err != nil {
		return nil, err
	}
	return t.storage.getDetectionBySourceRefTx(ctx, t.tx, sourceRef)
}

func (t *sqliteTransaction) GetDetections(ctx context.Context, filter service.DetectionFilter) ([]model.Detection, error) {
	return t.storage.getDetectionsTx(ctx, t.tx, filter)
}

func (t *sqliteTransaction) UpdateDetectionStatus(ctx context.Context, id string, status model.DetectionStatus) error {
	if err := validateString(id, "id"); err != nil {
		return err
	}
	return t.storage.updateDetectionStatusTx(ctx, t.tx, id, status)
}

func (t *sqliteTransaction) SaveSubscription(ctx context.Context, sub *model.Subscription) error {
	if err := validateSubscription(sub); err != nil {
		return err
	}
	return t.storage.saveSubscriptionTx(ctx, t.tx, sub)
}

func (t *sqliteTransaction) GetActiveSubscription(ctx context.Context, serviceName string) (*model.Subscription, error) {
	if err := validateString(serviceName, "serviceName"); err != nil {
		return nil, err
	}
	return t.storage.getActiveSubscriptionTx(ctx, t.tx, serviceName)
}

func (t *sqliteTransaction) GetActiveSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	return t.storage.getActiveSubscriptionsTx(ctx, t.tx)
}

func (t *sqliteTransaction) AppendPriceHistory(ctx context.Context, entry *model.PriceHistoryEntry) error {
	if err := validatePriceHistoryEntry(entry); err != nil {
		return err
	}
	return t.storage.appendPriceHistoryTx(ctx, t.tx, entry)
}

func (t *sqliteTransaction) GetLatestPrice(ctx context.Context, serviceName string) (*model.PriceHistoryEntry, error) {
	if err := validateString(serviceName, "serviceName"); err != nil {
		return nil, err
	}
	return t.storage.getLatestPriceTx(ctx, t.tx, serviceName)
}

func (t *sqliteTransaction) GetPriceHistory(ctx context.Context, serviceName string) ([]model.PriceHistoryEntry, error) {
	if err := validateString(serviceName, "serviceName"); err != nil {
		return nil, err
	}
	return t.storage.getPriceHistoryTx(ctx, t.tx, serviceName)
}

func (t *sqliteTransaction) Migrate(_ context.Context) error {
	return fmt.Errorf("migrations cannot be run within a transaction")
}

func (t *sqliteTransaction) BeginTx(_ context.Context) (service.Transaction, error) {
	return nil, fmt.Errorf("nested transactions not supported")
}

func (t *sqliteTransaction) Close() error {
	return fmt.Errorf("transactions must be committed or rolled back, not closed")
}
