package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborlight/grantflow/internal/model"
	"github.com/harborlight/grantflow/internal/storage"
)

func approvedAllocation(runID, purchaseID string) model.Allocation {
	return model.Allocation{
		RunID:              runID,
		PurchaseID:         purchaseID,
		LineID:             "1",
		SyncToken:          "0",
		VendorName:         "Acme Supply Co",
		AccountName:        "Office Supplies",
		Amount:             100,
		SuggestedClassID:   "g1",
		SuggestedClassName: "Youth Grant",
		FinalClassID:       "g1",
		FinalClassName:     "Youth Grant",
		Confidence:         model.ConfidenceHigh,
		Action:             model.ActionReassign,
		Status:             model.AllocationApproved,
	}
}

func expensePurchase(id, syncToken string) *model.Purchase {
	return &model.Purchase{
		ID:         id,
		SyncToken:  syncToken,
		TxnDate:    time.Date(2025, 5, 30, 0, 0, 0, 0, time.UTC),
		VendorName: "Acme Supply Co",
		Lines: []model.PurchaseLine{
			{ID: "1", DetailType: model.ExpenseLineDetail, AccountID: "a1", AccountName: "Office Supplies", Amount: 100},
		},
	}
}

func setupSubmitRun(t *testing.T, store *storage.SQLiteStorage, purchaseIDs ...string) string {
	t.Helper()
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "test", len(purchaseIDs))
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, run.ID, len(purchaseIDs)))

	allocations := make([]model.Allocation, len(purchaseIDs))
	for i, id := range purchaseIDs {
		allocations[i] = approvedAllocation(run.ID, id)
	}
	require.NoError(t, store.SaveAllocations(ctx, allocations))
	return run.ID
}

func TestSubmit_PatchesLiveSyncToken(t *testing.T) {
	store := createTestStore(t)
	runID := setupSubmitRun(t, store, "p1")

	// The live purchase carries a newer sync token than the one cached at
	// scoring time.
	ledgerStub := &stubLedger{
		purchases: map[string]*model.Purchase{"p1": expensePurchase("p1", "9")},
	}

	result, err := NewSubmitter(store, ledgerStub, nil).Submit(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Submitted)
	assert.Equal(t, 0, result.Failed)

	require.Len(t, ledgerStub.updated, 1)
	posted := ledgerStub.updated[0]
	assert.Equal(t, "9", posted.SyncToken)
	assert.Equal(t, "g1", posted.Lines[0].ClassID)
	assert.Equal(t, "Youth Grant", posted.Lines[0].ClassName)

	saved, err := store.GetAllocationsByRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.AllocationSubmitted, saved[0].Status)

	run, err := store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.TotalSubmitted)
}

func TestSubmit_PerAllocationIsolation(t *testing.T) {
	store := createTestStore(t)
	runID := setupSubmitRun(t, store, "p1", "p2")

	ledgerStub := &stubLedger{
		purchases: map[string]*model.Purchase{"p2": expensePurchase("p2", "4")},
		failFetch: map[string]error{"p1": errors.New("boom")},
	}

	result, err := NewSubmitter(store, ledgerStub, nil).Submit(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Submitted, "p2 is still attempted after p1 fails")
	assert.Equal(t, 1, result.Failed)

	saved, err := store.GetAllocationsByRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.AllocationError, saved[0].Status)
	assert.Contains(t, saved[0].LastError, "fetch")
	assert.Equal(t, model.AllocationSubmitted, saved[1].Status)

	run, err := store.GetRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, 1, run.TotalSubmitted)
}

func TestSubmit_RejectsNonExpenseLine(t *testing.T) {
	store := createTestStore(t)
	runID := setupSubmitRun(t, store, "p1")

	purchase := expensePurchase("p1", "2")
	purchase.Lines[0].DetailType = "ItemBasedExpenseLineDetail"
	ledgerStub := &stubLedger{purchases: map[string]*model.Purchase{"p1": purchase}}

	result, err := NewSubmitter(store, ledgerStub, nil).Submit(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Submitted)
	assert.Equal(t, 1, result.Failed)
	assert.Empty(t, ledgerStub.updated, "nothing posted for a mismatched line")

	saved, err := store.GetAllocationsByRun(context.Background(), runID)
	require.NoError(t, err)
	assert.Equal(t, model.AllocationError, saved[0].Status)
	assert.Contains(t, saved[0].LastError, "account-based expense line")
}

func TestSubmit_NothingApproved(t *testing.T) {
	store := createTestStore(t)
	ctx := context.Background()

	run, err := store.CreateRun(ctx, "test", 0)
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, run.ID, 0))

	var progressed bool
	submitter := NewSubmitter(store, &stubLedger{}, nil)
	submitter.OnProgress = func(_, _ int) { progressed = true }

	result, err := submitter.Submit(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Submitted)
	assert.False(t, progressed)
}
