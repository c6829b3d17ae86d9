package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS detections (
					id TEXT PRIMARY KEY,
					source TEXT NOT NULL,
					source_ref TEXT NOT NULL,
					raw_service_name TEXT NOT NULL,
					service_name TEXT NOT NULL,
					amount TEXT,
					currency TEXT NOT NULL,
					billing_cycle TEXT NOT NULL,
					category TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'pending',
					evidence_count INTEGER NOT NULL DEFAULT 1,
					confirmed BOOLEAN NOT NULL DEFAULT 0,
					detected_at DATETIME NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				)`,
				`CREATE INDEX idx_detections_service ON detections(service_name)`,
				`CREATE INDEX idx_detections_status ON detections(status)`,
				`CREATE INDEX idx_detections_source_ref ON detections(source_ref)`,
				// The dedup invariant: one pending detection per service
				`CREATE UNIQUE INDEX idx_detections_pending_service
					ON detections(service_name) WHERE status = 'pending'`,

				`CREATE TABLE IF NOT EXISTS subscriptions (
					id TEXT PRIMARY KEY,
					service_name TEXT NOT NULL,
					amount TEXT,
					currency TEXT NOT NULL,
					billing_cycle TEXT NOT NULL,
					category TEXT NOT NULL,
					provenance TEXT NOT NULL,
					is_active BOOLEAN NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_subscriptions_service ON subscriptions(service_name)`,
				`CREATE UNIQUE INDEX idx_subscriptions_active_service
					ON subscriptions(service_name) WHERE is_active = 1`,

				`CREATE TABLE IF NOT EXISTS price_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					service_name TEXT NOT NULL,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL,
					billing_cycle TEXT NOT NULL,
					observed_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_price_history_service
					ON price_history(service_name, observed_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Guard price history against rewrites",
		Up: func(tx *sql.Tx) error {
			// History rows are append-only; reject UPDATE at the schema level
			_, err := tx.Exec(`
				CREATE TRIGGER price_history_append_only
				BEFORE UPDATE ON price_history
				BEGIN
					SELECT RAISE(ABORT, 'price_history is append-only');
				END
			`)
			if err != nil {
				return fmt.Errorf("failed to create append-only trigger: %w", err)
			}
			return nil
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
