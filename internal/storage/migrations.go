package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
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
				`CREATE TABLE IF NOT EXISTS runs (
					id TEXT PRIMARY KEY,
					status TEXT NOT NULL,
					started_by TEXT NOT NULL,
					error_message TEXT DEFAULT '',
					total_expenses INTEGER DEFAULT 0,
					total_processed INTEGER DEFAULT 0,
					total_submitted INTEGER DEFAULT 0,
					started_at DATETIME NOT NULL,
					completed_at DATETIME
				)`,
				`CREATE INDEX idx_runs_status ON runs(status)`,

				`CREATE TABLE IF NOT EXISTS allocations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					run_id TEXT NOT NULL,
					purchase_id TEXT NOT NULL,
					line_id TEXT NOT NULL,
					sync_token TEXT DEFAULT '',
					vendor_name TEXT DEFAULT '',
					account_name TEXT DEFAULT '',
					amount REAL NOT NULL,
					suggested_class_id TEXT DEFAULT '',
					suggested_class_name TEXT DEFAULT '',
					final_class_id TEXT DEFAULT '',
					final_class_name TEXT DEFAULT '',
					confidence TEXT NOT NULL,
					action TEXT NOT NULL,
					status TEXT NOT NULL,
					explanation TEXT DEFAULT '',
					last_error TEXT DEFAULT '',
					qualifying_grants TEXT DEFAULT '[]',
					scoring_detail TEXT DEFAULT '{}',
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(run_id, purchase_id, line_id),
					FOREIGN KEY (run_id) REFERENCES runs(id)
				)`,
				`CREATE INDEX idx_allocations_run ON allocations(run_id)`,

				`CREATE TABLE IF NOT EXISTS reports (
					type TEXT PRIMARY KEY,
					payload BLOB NOT NULL,
					fetched_at DATETIME NOT NULL
				)`,
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
		Description: "Index allocation status for submission scans",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_allocations_status ON allocations(run_id, status)`)
			return err
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
