package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/model"
)

// Helper function to create test storage.
func createTestStorage(t *testing.T) (*SQLiteStorage, func()) {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		t.Fatalf("Failed to migrate: %v", err)
	}

	return store, func() { _ = store.Close() }
}

// Helper function to create test allocations for a run.
func createTestAllocations(runID string, count int) []model.Allocation {
	allocations := make([]model.Allocation, count)
	for i := 0; i < count; i++ {
		allocations[i] = model.Allocation{
			RunID:              runID,
			PurchaseID:         fmt.Sprintf("purchase-%d", i+1),
			LineID:             "1",
			SyncToken:          "0",
			VendorName:         fmt.Sprintf("Vendor %d", (i%3)+1),
			AccountName:        "Office Supplies",
			Amount:             float64(i+1) * 10.50,
			SuggestedClassID:   "c1",
			SuggestedClassName: "Youth Grant",
			FinalClassID:       "c1",
			FinalClassName:     "Youth Grant",
			Confidence:         model.ConfidenceHigh,
			Action:             model.ActionReassign,
			Status:             model.AllocationPending,
			Explanation:        "best pacing fit",
			Qualifying: []model.QualifyingGrant{
				{ClassID: "c1", ClassName: "Youth Grant", Scores: model.FactorScores{Pacing: 40, Time: 25, Diversification: 25, Budget: 10, Total: 100}},
			},
			ScoringDetail: model.ScoringDetail{SelectedGrantScore: 100},
		}
	}
	return allocations
}

func TestMigrate_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()

	// A second migration pass must be a no-op.
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("Second migrate failed: %v", err)
	}
}

func TestReports_RoundTrip(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	_, err := store.GetReport(ctx, model.ReportBudgets)
	if !errors.Is(err, common.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before sync, got %v", err)
	}

	payload := []byte(`{"budgets": []}`)
	if err := store.SaveReport(ctx, &model.CachedReport{Type: model.ReportBudgets, Payload: payload}); err != nil {
		t.Fatalf("SaveReport failed: %v", err)
	}

	report, err := store.GetReport(ctx, model.ReportBudgets)
	if err != nil {
		t.Fatalf("GetReport failed: %v", err)
	}
	if string(report.Payload) != string(payload) {
		t.Errorf("payload = %s, want %s", report.Payload, payload)
	}
	if report.FetchedAt.IsZero() {
		t.Error("fetched_at not set")
	}

	// A re-sync replaces the previous blob.
	updated := []byte(`{"budgets": [{"class_id": "c1"}]}`)
	if err := store.SaveReport(ctx, &model.CachedReport{Type: model.ReportBudgets, Payload: updated}); err != nil {
		t.Fatalf("SaveReport replace failed: %v", err)
	}
	report, err = store.GetReport(ctx, model.ReportBudgets)
	if err != nil {
		t.Fatalf("GetReport after replace failed: %v", err)
	}
	if string(report.Payload) != string(updated) {
		t.Errorf("payload not replaced: %s", report.Payload)
	}
}

func TestSaveReport_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.SaveReport(ctx, &model.CachedReport{Type: "payroll", Payload: []byte("{}")}); err == nil {
		t.Error("expected error for unknown report type")
	}
	if err := store.SaveReport(ctx, &model.CachedReport{Type: model.ReportClasses}); err == nil {
		t.Error("expected error for empty payload")
	}
}
