package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/model"
)

// CreateRun starts a new allocation run. The single-flight check and the
// insert happen inside one transaction so two concurrent starts cannot both
// observe "no running run".
func (s *SQLiteStorage) CreateRun(ctx context.Context, startedBy string, totalExpenses int) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(startedBy, "startedBy"); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM runs WHERE status = ? LIMIT 1`, model.RunRunning).Scan(&existing)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: run %s", common.ErrRunConflict, existing)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("failed to check for running run: %w", err)
	}

	run := &model.Run{
		ID:            uuid.NewString(),
		Status:        model.RunRunning,
		StartedBy:     startedBy,
		TotalExpenses: totalExpenses,
		StartedAt:     time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, status, started_by, total_expenses, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Status, run.StartedBy, run.TotalExpenses, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run creation: %w", err)
	}
	return run, nil
}

// GetRun returns the run with the given id.
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, started_by, error_message,
		       total_expenses, total_processed, total_submitted,
		       started_at, completed_at
		FROM runs WHERE id = ?
	`, id)
	return scanRun(row)
}

// GetRunningRun returns the currently running run, or common.ErrNotFound.
func (s *SQLiteStorage) GetRunningRun(ctx context.Context) (*model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, status, started_by, error_message,
		       total_expenses, total_processed, total_submitted,
		       started_at, completed_at
		FROM runs WHERE status = ? LIMIT 1
	`, model.RunRunning)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStorage) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, status, started_by, error_message,
		       total_expenses, total_processed, total_submitted,
		       started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []model.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// CompleteRun transitions a running run to completed.
func (s *SQLiteStorage) CompleteRun(ctx context.Context, id string, totalProcessed int) error {
	return s.finishRun(ctx, id, model.RunCompleted, totalProcessed, "")
}

// FailRun transitions a running run to failed with the captured error text.
func (s *SQLiteStorage) FailRun(ctx context.Context, id string, errorMessage string) error {
	return s.finishRun(ctx, id, model.RunFailed, 0, errorMessage)
}

func (s *SQLiteStorage) finishRun(ctx context.Context, id string, status model.RunStatus, totalProcessed int, errorMessage string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, total_processed = ?, error_message = ?, completed_at = ?
		WHERE id = ? AND status = ?
	`, status, totalProcessed, errorMessage, time.Now().UTC(), id, model.RunRunning)
	if err != nil {
		return fmt.Errorf("failed to update run %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: no running run with id %s", common.ErrNotFound, id)
	}
	return nil
}

// AddRunSubmitted adds to the run's submitted counter after a submission
// pass. The counter is updated once per pass, not per allocation.
func (s *SQLiteStorage) AddRunSubmitted(ctx context.Context, id string, submitted int) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET total_submitted = total_submitted + ? WHERE id = ?
	`, submitted, id)
	if err != nil {
		return fmt.Errorf("failed to update submitted count for run %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: run %s", common.ErrNotFound, id)
	}
	return nil
}

// rowScanner covers both sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*model.Run, error) {
	var run model.Run
	var completedAt sql.NullTime
	err := row.Scan(
		&run.ID, &run.Status, &run.StartedBy, &run.ErrorMessage,
		&run.TotalExpenses, &run.TotalProcessed, &run.TotalSubmitted,
		&run.StartedAt, &completedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: run", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	return &run, nil
}
