package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/model"
	"github.com/harborlight/grantflow/internal/service"
)

// SubmitResult summarizes one submission pass over a run.
type SubmitResult struct {
	Submitted int
	Failed    int
}

// Submitter writes approved allocations back to the ledger one at a time.
type Submitter struct {
	store  service.Store
	ledger service.Ledger
	logger *slog.Logger
	// OnProgress, when set, is called after each allocation attempt.
	OnProgress func(done, total int)
}

// NewSubmitter creates a submission pipeline over the given ports.
func NewSubmitter(store service.Store, ledgerPort service.Ledger, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{store: store, ledger: ledgerPort, logger: logger}
}

// Submit pushes every submittable allocation of a run to the ledger. Each
// allocation's failure is isolated: the record moves to status=error and the
// loop continues. The run's submitted counter is updated once at the end.
func (s *Submitter) Submit(ctx context.Context, runID string) (*SubmitResult, error) {
	if err := s.ledger.CheckConnection(ctx); err != nil {
		return nil, err
	}

	allocations, err := s.store.GetSubmittableAllocations(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(allocations) == 0 {
		s.logger.Info("no approved allocations to submit", "run_id", runID)
		return &SubmitResult{}, nil
	}

	result := &SubmitResult{}
	for i := range allocations {
		a := &allocations[i]

		if err := s.submitOne(ctx, a); err != nil {
			s.logger.Error("allocation submission failed",
				"allocation_id", a.ID,
				"purchase_id", a.PurchaseID,
				"error", err)
			if updateErr := s.store.UpdateAllocationStatus(ctx, a.ID, model.AllocationError, err.Error()); updateErr != nil {
				s.logger.Error("failed to record submission error",
					"allocation_id", a.ID,
					"error", updateErr)
			}
			result.Failed++
		} else {
			if updateErr := s.store.UpdateAllocationStatus(ctx, a.ID, model.AllocationSubmitted, ""); updateErr != nil {
				s.logger.Error("failed to mark allocation submitted",
					"allocation_id", a.ID,
					"error", updateErr)
			}
			result.Submitted++
		}

		if s.OnProgress != nil {
			s.OnProgress(i+1, len(allocations))
		}
	}

	if err := s.store.AddRunSubmitted(ctx, runID, result.Submitted); err != nil {
		return result, fmt.Errorf("failed to update run submitted count: %w", err)
	}

	s.logger.Info("submission pass finished",
		"run_id", runID,
		"submitted", result.Submitted,
		"failed", result.Failed)
	return result, nil
}

// submitOne performs the fetch-patch-post cycle for a single allocation.
// The purchase is always re-fetched live so the write carries the ledger's
// current sync token, never one cached at scoring time.
func (s *Submitter) submitOne(ctx context.Context, a *model.Allocation) error {
	purchase, err := s.ledger.GetPurchase(ctx, a.PurchaseID)
	if err != nil {
		return &common.SubmissionError{AllocationID: a.ID, Step: "fetch", Err: err}
	}

	line := purchase.LineByID(a.LineID)
	if line == nil {
		return &common.SubmissionError{
			AllocationID: a.ID,
			Step:         "locate",
			Err:          fmt.Errorf("line %s no longer exists on purchase %s", a.LineID, a.PurchaseID),
		}
	}
	if line.DetailType != model.ExpenseLineDetail {
		return &common.SubmissionError{
			AllocationID: a.ID,
			Step:         "locate",
			Err:          fmt.Errorf("line %s is %s, not an account-based expense line", a.LineID, line.DetailType),
		}
	}

	line.ClassID = a.FinalClassID
	line.ClassName = a.FinalClassName

	if err := s.ledger.UpdatePurchase(ctx, purchase); err != nil {
		return &common.SubmissionError{AllocationID: a.ID, Step: "update", Err: err}
	}
	return nil
}
