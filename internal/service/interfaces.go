// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/harborlight/grantflow/internal/model"
)

// Store defines the contract for the persistence layer.
type Store interface {
	// Run operations
	CreateRun(ctx context.Context, startedBy string, totalExpenses int) (*model.Run, error)
	GetRun(ctx context.Context, id string) (*model.Run, error)
	GetRunningRun(ctx context.Context) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)
	CompleteRun(ctx context.Context, id string, totalProcessed int) error
	FailRun(ctx context.Context, id string, errorMessage string) error
	AddRunSubmitted(ctx context.Context, id string, submitted int) error

	// Allocation operations
	SaveAllocations(ctx context.Context, allocations []model.Allocation) error
	GetAllocation(ctx context.Context, id int64) (*model.Allocation, error)
	GetAllocationsByRun(ctx context.Context, runID string) ([]model.Allocation, error)
	GetSubmittableAllocations(ctx context.Context, runID string) ([]model.Allocation, error)
	UpdateAllocationStatus(ctx context.Context, id int64, status model.AllocationStatus, lastError string) error
	ApproveAllocation(ctx context.Context, id int64) error
	ApproveHighConfidence(ctx context.Context, runID string) (int64, error)
	SkipAllocation(ctx context.Context, id int64) error
	ReassignAllocations(ctx context.Context, ids []int64, classID, className string) error
	ResetRunAllocations(ctx context.Context, runID string) (int64, error)

	// Cached ledger reports
	SaveReport(ctx context.Context, report *model.CachedReport) error
	GetReport(ctx context.Context, reportType model.ReportType) (*model.CachedReport, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Ledger defines the contract for the external accounting ledger.
type Ledger interface {
	// CheckConnection verifies credentials by forcing a token fetch.
	CheckConnection(ctx context.Context) error
	// FetchReport pulls a full report of the given type for caching.
	FetchReport(ctx context.Context, reportType model.ReportType) ([]byte, error)
	// GetPurchase re-fetches the live purchase by id, including its
	// current sync token.
	GetPurchase(ctx context.Context, id string) (*model.Purchase, error)
	// UpdatePurchase posts the full updated purchase back to the ledger.
	UpdatePurchase(ctx context.Context, purchase *model.Purchase) error
}

// BatchRequest is one recommender call: a batch of candidate transactions
// with the grant profiles they were scored against.
type BatchRequest struct {
	RunDate    time.Time
	Summary    string
	Grants     []model.GrantProfile
	Candidates []model.Candidate
}

// BatchResponse is the structured recommender output for one batch.
type BatchResponse struct {
	Recommendations []model.Recommendation
}

// Recommender defines the contract for the LLM-assisted recommender.
// A response that does not parse to the expected shape is returned as an
// error wrapping common.ErrMalformedResponse.
type Recommender interface {
	SubmitBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error)
}
