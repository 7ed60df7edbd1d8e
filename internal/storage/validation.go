package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harborlight/grantflow/internal/model"
)

// Validation errors.
var (
	ErrNilContext        = errors.New("context cannot be nil")
	ErrEmptyString       = errors.New("string parameter cannot be empty")
	ErrNilParameter      = errors.New("parameter cannot be nil")
	ErrEmptySlice        = errors.New("slice cannot be empty")
	ErrInvalidAllocation = errors.New("invalid allocation")
	ErrInvalidStatus     = errors.New("invalid allocation status")
	ErrInvalidReport     = errors.New("invalid cached report")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateAllocations validates a slice of allocations.
func validateAllocations(allocations []model.Allocation) error {
	if allocations == nil {
		return fmt.Errorf("%w: allocations", ErrNilParameter)
	}
	if len(allocations) == 0 {
		return fmt.Errorf("%w: allocations", ErrEmptySlice)
	}

	for i := range allocations {
		if err := validateAllocation(&allocations[i]); err != nil {
			return fmt.Errorf("allocation at index %d: %w", i, err)
		}
	}
	return nil
}

// validateAllocation validates a single allocation.
func validateAllocation(a *model.Allocation) error {
	if a == nil {
		return fmt.Errorf("%w: allocation", ErrNilParameter)
	}
	if a.RunID == "" {
		return fmt.Errorf("%w: missing run ID", ErrInvalidAllocation)
	}
	if a.PurchaseID == "" || a.LineID == "" {
		return fmt.Errorf("%w: missing purchase or line ID", ErrInvalidAllocation)
	}

	switch a.Action {
	case model.ActionReassign, model.ActionFlagForReview:
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidAllocation, a.Action)
	}

	switch a.Confidence {
	case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
	default:
		return fmt.Errorf("%w: unknown confidence %q", ErrInvalidAllocation, a.Confidence)
	}

	return validateStatus(a.Status)
}

// validateStatus checks a status value against the known lifecycle states.
func validateStatus(status model.AllocationStatus) error {
	switch status {
	case model.AllocationPending,
		model.AllocationApproved,
		model.AllocationSkipped,
		model.AllocationSubmitted,
		model.AllocationError:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
}

// validateReport validates a cached report before saving.
func validateReport(report *model.CachedReport) error {
	if report == nil {
		return fmt.Errorf("%w: report", ErrNilParameter)
	}
	switch report.Type {
	case model.ReportBudgets, model.ReportTransactions, model.ReportClasses:
	default:
		return fmt.Errorf("%w: unknown report type %q", ErrInvalidReport, report.Type)
	}
	if len(report.Payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrInvalidReport)
	}
	return nil
}
