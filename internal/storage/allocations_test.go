package storage

import (
	"context"
	"testing"

	"github.com/harborlight/grantflow/internal/model"
)

func createTestRun(t *testing.T, store *SQLiteStorage) *model.Run {
	t.Helper()
	run, err := store.CreateRun(context.Background(), "operator", 0)
	if err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	return run
}

func TestSaveAllocations_Chunked(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	run := createTestRun(t, store)

	// More than one chunk of 50.
	allocations := createTestAllocations(run.ID, 120)
	if err := store.SaveAllocations(ctx, allocations); err != nil {
		t.Fatalf("SaveAllocations failed: %v", err)
	}

	got, err := store.GetAllocationsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAllocationsByRun failed: %v", err)
	}
	if len(got) != 120 {
		t.Fatalf("allocations = %d, want 120", len(got))
	}

	first := got[0]
	if first.PurchaseID != "purchase-1" {
		t.Errorf("insert order not preserved: first = %s", first.PurchaseID)
	}
	if len(first.Qualifying) != 1 || first.Qualifying[0].Scores.Total != 100 {
		t.Errorf("qualifying grants did not round-trip: %+v", first.Qualifying)
	}
	if first.ScoringDetail.SelectedGrantScore != 100 {
		t.Errorf("scoring detail did not round-trip: %+v", first.ScoringDetail)
	}
}

func TestSaveAllocations_Invalid(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.Allocation)
		name   string
	}{
		{name: "missing run id", mutate: func(a *model.Allocation) { a.RunID = "" }},
		{name: "missing line id", mutate: func(a *model.Allocation) { a.LineID = "" }},
		{name: "unknown action", mutate: func(a *model.Allocation) { a.Action = "delete" }},
		{name: "unknown confidence", mutate: func(a *model.Allocation) { a.Confidence = "certain" }},
		{name: "unknown status", mutate: func(a *model.Allocation) { a.Status = "archived" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allocations := createTestAllocations("run-1", 1)
			tt.mutate(&allocations[0])
			if err := store.SaveAllocations(ctx, allocations); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestApproveAndSubmittable(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	run := createTestRun(t, store)

	allocations := createTestAllocations(run.ID, 2)
	// The second record is a flagged review item with no final grant.
	allocations[1].Action = model.ActionFlagForReview
	allocations[1].Confidence = model.ConfidenceLow
	allocations[1].SuggestedClassID = ""
	allocations[1].SuggestedClassName = ""
	allocations[1].FinalClassID = ""
	allocations[1].FinalClassName = ""
	if err := store.SaveAllocations(ctx, allocations); err != nil {
		t.Fatalf("SaveAllocations failed: %v", err)
	}

	saved, err := store.GetAllocationsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAllocationsByRun failed: %v", err)
	}

	if err := store.ApproveAllocation(ctx, saved[0].ID); err != nil {
		t.Fatalf("ApproveAllocation failed: %v", err)
	}
	// A flagged record with no final grant cannot be approved.
	if err := store.ApproveAllocation(ctx, saved[1].ID); err == nil {
		t.Error("expected error approving allocation without a final grant")
	}

	submittable, err := store.GetSubmittableAllocations(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetSubmittableAllocations failed: %v", err)
	}
	if len(submittable) != 1 || submittable[0].ID != saved[0].ID {
		t.Errorf("submittable = %+v, want only the approved record", submittable)
	}
}

func TestApproveHighConfidence(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	run := createTestRun(t, store)

	allocations := createTestAllocations(run.ID, 3)
	allocations[1].Confidence = model.ConfidenceMedium
	allocations[2].Confidence = model.ConfidenceLow
	if err := store.SaveAllocations(ctx, allocations); err != nil {
		t.Fatalf("SaveAllocations failed: %v", err)
	}

	approved, err := store.ApproveHighConfidence(ctx, run.ID)
	if err != nil {
		t.Fatalf("ApproveHighConfidence failed: %v", err)
	}
	if approved != 1 {
		t.Errorf("approved = %d, want 1", approved)
	}

	// A second pass finds nothing pending at high confidence.
	approved, err = store.ApproveHighConfidence(ctx, run.ID)
	if err != nil {
		t.Fatalf("second ApproveHighConfidence failed: %v", err)
	}
	if approved != 0 {
		t.Errorf("approved = %d, want 0", approved)
	}
}

func TestSkipAllocation(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	run := createTestRun(t, store)

	if err := store.SaveAllocations(ctx, createTestAllocations(run.ID, 1)); err != nil {
		t.Fatalf("SaveAllocations failed: %v", err)
	}
	saved, err := store.GetAllocationsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAllocationsByRun failed: %v", err)
	}

	if err := store.SkipAllocation(ctx, saved[0].ID); err != nil {
		t.Fatalf("SkipAllocation failed: %v", err)
	}

	got, err := store.GetAllocation(ctx, saved[0].ID)
	if err != nil {
		t.Fatalf("GetAllocation failed: %v", err)
	}
	if got.Status != model.AllocationSkipped {
		t.Errorf("status = %s, want skipped", got.Status)
	}

	// Submitted records are immutable.
	if err := store.UpdateAllocationStatus(ctx, saved[0].ID, model.AllocationSubmitted, ""); err != nil {
		t.Fatalf("UpdateAllocationStatus failed: %v", err)
	}
	if err := store.SkipAllocation(ctx, saved[0].ID); err == nil {
		t.Error("expected error skipping a submitted allocation")
	}
}

func TestReassignAllocations(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	run := createTestRun(t, store)

	if err := store.SaveAllocations(ctx, createTestAllocations(run.ID, 2)); err != nil {
		t.Fatalf("SaveAllocations failed: %v", err)
	}
	saved, err := store.GetAllocationsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAllocationsByRun failed: %v", err)
	}

	ids := []int64{saved[0].ID, saved[1].ID}
	if err := store.ReassignAllocations(ctx, ids, "c9", "Capital Grant"); err != nil {
		t.Fatalf("ReassignAllocations failed: %v", err)
	}

	got, err := store.GetAllocationsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAllocationsByRun failed: %v", err)
	}
	for _, a := range got {
		if a.FinalClassID != "c9" || a.FinalClassName != "Capital Grant" {
			t.Errorf("allocation %d not reassigned: %+v", a.ID, a)
		}
		if a.Status != model.AllocationApproved {
			t.Errorf("allocation %d status = %s, want approved", a.ID, a.Status)
		}
		if a.SuggestedClassID != "c1" {
			t.Errorf("original suggestion must be preserved, got %s", a.SuggestedClassID)
		}
	}
}

func TestResetRunAllocations_Idempotent(t *testing.T) {
	store, cleanup := createTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	run := createTestRun(t, store)

	if err := store.SaveAllocations(ctx, createTestAllocations(run.ID, 3)); err != nil {
		t.Fatalf("SaveAllocations failed: %v", err)
	}
	saved, err := store.GetAllocationsByRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetAllocationsByRun failed: %v", err)
	}

	// Mutate the run: one reassigned, one skipped, one submitted.
	if err := store.ReassignAllocations(ctx, []int64{saved[0].ID}, "c9", "Capital Grant"); err != nil {
		t.Fatalf("ReassignAllocations failed: %v", err)
	}
	if err := store.SkipAllocation(ctx, saved[1].ID); err != nil {
		t.Fatalf("SkipAllocation failed: %v", err)
	}
	if err := store.UpdateAllocationStatus(ctx, saved[2].ID, model.AllocationSubmitted, ""); err != nil {
		t.Fatalf("UpdateAllocationStatus failed: %v", err)
	}

	snapshot := func() []model.Allocation {
		got, err := store.GetAllocationsByRun(ctx, run.ID)
		if err != nil {
			t.Fatalf("GetAllocationsByRun failed: %v", err)
		}
		return got
	}

	reset, err := store.ResetRunAllocations(ctx, run.ID)
	if err != nil {
		t.Fatalf("ResetRunAllocations failed: %v", err)
	}
	if reset != 2 {
		t.Errorf("reset = %d, want 2 (submitted record untouched)", reset)
	}

	first := snapshot()
	if first[0].FinalClassID != "c1" || first[0].Status != model.AllocationPending {
		t.Errorf("reassignment not reset: %+v", first[0])
	}
	if first[1].Status != model.AllocationPending {
		t.Errorf("skip not reset: %+v", first[1])
	}
	if first[2].Status != model.AllocationSubmitted {
		t.Errorf("submitted record must not be reset: %+v", first[2])
	}

	// Resetting again yields the same state.
	if _, err := store.ResetRunAllocations(ctx, run.ID); err != nil {
		t.Fatalf("second ResetRunAllocations failed: %v", err)
	}
	second := snapshot()
	for i := range first {
		if first[i].Status != second[i].Status ||
			first[i].FinalClassID != second[i].FinalClassID ||
			first[i].FinalClassName != second[i].FinalClassName {
			t.Errorf("reset not idempotent at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
}
