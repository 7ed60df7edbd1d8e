package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/model"
)

// saveChunkSize caps how many allocations go into one insert transaction.
// A failure partway through a run's chunks is not rolled back across chunks.
const saveChunkSize = 50

// SaveAllocations appends allocation records in chunks. Records are
// append-only; later mutations go through the status methods.
func (s *SQLiteStorage) SaveAllocations(ctx context.Context, allocations []model.Allocation) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateAllocations(allocations); err != nil {
		return err
	}

	for start := 0; start < len(allocations); start += saveChunkSize {
		end := start + saveChunkSize
		if end > len(allocations) {
			end = len(allocations)
		}
		if err := s.saveAllocationChunk(ctx, allocations[start:end]); err != nil {
			return fmt.Errorf("failed to save allocations %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

func (s *SQLiteStorage) saveAllocationChunk(ctx context.Context, chunk []model.Allocation) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO allocations (
			run_id, purchase_id, line_id, sync_token, vendor_name, account_name,
			amount, suggested_class_id, suggested_class_name,
			final_class_id, final_class_name,
			confidence, action, status, explanation,
			qualifying_grants, scoring_detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range chunk {
		a := &chunk[i]

		qualifying, err := json.Marshal(a.Qualifying)
		if err != nil {
			return fmt.Errorf("failed to encode qualifying grants: %w", err)
		}
		detail, err := json.Marshal(a.ScoringDetail)
		if err != nil {
			return fmt.Errorf("failed to encode scoring detail: %w", err)
		}

		_, err = stmt.ExecContext(ctx,
			a.RunID, a.PurchaseID, a.LineID, a.SyncToken, a.VendorName, a.AccountName,
			a.Amount, a.SuggestedClassID, a.SuggestedClassName,
			a.FinalClassID, a.FinalClassName,
			a.Confidence, a.Action, a.Status, a.Explanation,
			string(qualifying), string(detail),
		)
		if err != nil {
			return fmt.Errorf("failed to insert allocation %s/%s: %w", a.PurchaseID, a.LineID, err)
		}
	}

	return tx.Commit()
}

const allocationColumns = `
	id, run_id, purchase_id, line_id, sync_token, vendor_name, account_name,
	amount, suggested_class_id, suggested_class_name,
	final_class_id, final_class_name,
	confidence, action, status, explanation, last_error,
	qualifying_grants, scoring_detail, created_at, updated_at`

// GetAllocation returns the allocation with the given id.
func (s *SQLiteStorage) GetAllocation(ctx context.Context, id int64) (*model.Allocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT`+allocationColumns+` FROM allocations WHERE id = ?`, id)
	return scanAllocation(row)
}

// GetAllocationsByRun returns all of a run's allocations in insert order.
func (s *SQLiteStorage) GetAllocationsByRun(ctx context.Context, runID string) ([]model.Allocation, error) {
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}
	return s.queryAllocations(ctx,
		`SELECT`+allocationColumns+` FROM allocations WHERE run_id = ? ORDER BY id`, runID)
}

// GetSubmittableAllocations returns a run's approved allocations with a
// final grant assigned, the only records the submission pipeline touches.
func (s *SQLiteStorage) GetSubmittableAllocations(ctx context.Context, runID string) ([]model.Allocation, error) {
	if err := validateString(runID, "runID"); err != nil {
		return nil, err
	}
	return s.queryAllocations(ctx, `
		SELECT`+allocationColumns+`
		FROM allocations
		WHERE run_id = ? AND status = ? AND final_class_id != ''
		ORDER BY id
	`, runID, model.AllocationApproved)
}

func (s *SQLiteStorage) queryAllocations(ctx context.Context, query string, args ...any) ([]model.Allocation, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query allocations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var allocations []model.Allocation
	for rows.Next() {
		a, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, *a)
	}
	return allocations, rows.Err()
}

// UpdateAllocationStatus sets an allocation's status and last error. It is
// used by the submission pipeline for the submitted/error transitions.
func (s *SQLiteStorage) UpdateAllocationStatus(ctx context.Context, id int64, status model.AllocationStatus, lastError string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateStatus(status); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE allocations SET status = ?, last_error = ?, updated_at = ? WHERE id = ?
	`, status, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update allocation %d: %w", id, err)
	}
	return requireAffected(result, id)
}

// ApproveAllocation marks one allocation approved. Only records that carry
// a final grant and have not been submitted can be approved.
func (s *SQLiteStorage) ApproveAllocation(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE allocations SET status = ?, updated_at = ?
		WHERE id = ? AND status != ? AND final_class_id != ''
	`, model.AllocationApproved, time.Now().UTC(), id, model.AllocationSubmitted)
	if err != nil {
		return fmt.Errorf("failed to approve allocation %d: %w", id, err)
	}
	return requireAffected(result, id)
}

// ApproveHighConfidence approves every pending high-confidence reassignment
// in a run and returns how many were approved.
func (s *SQLiteStorage) ApproveHighConfidence(ctx context.Context, runID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE allocations SET status = ?, updated_at = ?
		WHERE run_id = ? AND status = ? AND confidence = ? AND action = ? AND final_class_id != ''
	`, model.AllocationApproved, time.Now().UTC(),
		runID, model.AllocationPending, model.ConfidenceHigh, model.ActionReassign)
	if err != nil {
		return 0, fmt.Errorf("failed to approve high-confidence allocations: %w", err)
	}
	return result.RowsAffected()
}

// SkipAllocation marks one allocation skipped unless already submitted.
func (s *SQLiteStorage) SkipAllocation(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE allocations SET status = ?, updated_at = ?
		WHERE id = ? AND status != ?
	`, model.AllocationSkipped, time.Now().UTC(), id, model.AllocationSubmitted)
	if err != nil {
		return fmt.Errorf("failed to skip allocation %d: %w", id, err)
	}
	return requireAffected(result, id)
}

// ReassignAllocations overrides the final grant on the selected allocations
// and approves them. Submitted records are left untouched.
func (s *SQLiteStorage) ReassignAllocations(ctx context.Context, ids []int64, classID, className string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: ids", ErrEmptySlice)
	}
	if err := validateString(classID, "classID"); err != nil {
		return err
	}
	if err := validateString(className, "className"); err != nil {
		return err
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := []any{classID, className, model.AllocationApproved, time.Now().UTC()}
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, model.AllocationSubmitted)

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE allocations
		SET final_class_id = ?, final_class_name = ?, status = ?, updated_at = ?
		WHERE id IN (%s) AND status != ?
	`, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to reassign allocations: %w", err)
	}
	return nil
}

// ResetRunAllocations returns a run's non-submitted allocations to their
// original AI suggestions and pending status. Calling it twice yields the
// same state as calling it once.
func (s *SQLiteStorage) ResetRunAllocations(ctx context.Context, runID string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateString(runID, "runID"); err != nil {
		return 0, err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE allocations
		SET status = ?,
		    final_class_id = suggested_class_id,
		    final_class_name = suggested_class_name,
		    last_error = '',
		    updated_at = ?
		WHERE run_id = ? AND status != ?
	`, model.AllocationPending, time.Now().UTC(), runID, model.AllocationSubmitted)
	if err != nil {
		return 0, fmt.Errorf("failed to reset allocations for run %s: %w", runID, err)
	}
	return result.RowsAffected()
}

func requireAffected(result sql.Result, id int64) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: allocation %d", common.ErrNotFound, id)
	}
	return nil
}

func scanAllocation(row rowScanner) (*model.Allocation, error) {
	var a model.Allocation
	var qualifying, detail string
	err := row.Scan(
		&a.ID, &a.RunID, &a.PurchaseID, &a.LineID, &a.SyncToken, &a.VendorName, &a.AccountName,
		&a.Amount, &a.SuggestedClassID, &a.SuggestedClassName,
		&a.FinalClassID, &a.FinalClassName,
		&a.Confidence, &a.Action, &a.Status, &a.Explanation, &a.LastError,
		&qualifying, &detail, &a.CreatedAt, &a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: allocation", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan allocation: %w", err)
	}

	if err := json.Unmarshal([]byte(qualifying), &a.Qualifying); err != nil {
		return nil, fmt.Errorf("failed to decode qualifying grants for allocation %d: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(detail), &a.ScoringDetail); err != nil {
		return nil, fmt.Errorf("failed to decode scoring detail for allocation %d: %w", a.ID, err)
	}
	return &a, nil
}
