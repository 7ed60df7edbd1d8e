// Package common provides shared utilities and types used across the application.
package common

import (
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Database errors.
	ErrNotFound = errors.New("not found")

	// Configuration errors: surfaced to the caller before a run starts.
	ErrLedgerNotConnected = errors.New("ledger not connected")
	ErrMissingConfig      = errors.New("missing configuration")

	// Run lifecycle errors.
	ErrRunConflict = errors.New("another allocation run is already in progress")

	// Data errors: cached ledger reports are missing or empty.
	ErrNoBudgetData      = errors.New("no cached budget data")
	ErrNoTransactionData = errors.New("no cached transaction data")

	// Recommender errors. A malformed response flags the whole affected
	// batch for manual review rather than failing the run.
	ErrMalformedResponse = errors.New("malformed recommender response")
)

// SubmissionError wraps a per-allocation ledger writeback failure. It is
// recorded on the allocation and never aborts the batch.
type SubmissionError struct {
	Err          error
	AllocationID int64
	Step         string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submission failed at %s for allocation %d: %v", e.Step, e.AllocationID, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}
