package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/model"
)

// SaveReport stores a raw ledger report blob, replacing any previous blob
// of the same type.
func (s *SQLiteStorage) SaveReport(ctx context.Context, report *model.CachedReport) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReport(report); err != nil {
		return err
	}

	fetchedAt := report.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (type, payload, fetched_at)
		VALUES (?, ?, ?)
		ON CONFLICT(type) DO UPDATE SET
			payload = excluded.payload,
			fetched_at = excluded.fetched_at
	`, report.Type, report.Payload, fetchedAt)
	if err != nil {
		return fmt.Errorf("failed to save %s report: %w", report.Type, err)
	}
	return nil
}

// GetReport returns the cached report blob of the given type, or
// common.ErrNotFound if it has never been synced.
func (s *SQLiteStorage) GetReport(ctx context.Context, reportType model.ReportType) (*model.CachedReport, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	report := &model.CachedReport{Type: reportType}
	err := s.db.QueryRowContext(ctx, `
		SELECT payload, fetched_at FROM reports WHERE type = ?
	`, reportType).Scan(&report.Payload, &report.FetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s report", common.ErrNotFound, reportType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s report: %w", reportType, err)
	}
	return report, nil
}
