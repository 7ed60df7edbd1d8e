package model

import "time"

// Confidence grades how certain a recommendation is.
type Confidence string

// Confidence constants.
const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Action is what a recommendation asks to be done with a transaction.
type Action string

const (
	// ActionReassign charges the transaction to the suggested grant.
	ActionReassign Action = "reassign"
	// ActionFlagForReview routes the transaction to manual review.
	ActionFlagForReview Action = "flag_for_review"
)

// AllocationStatus tracks an allocation through review and submission.
type AllocationStatus string

// Allocation status constants.
const (
	AllocationPending   AllocationStatus = "pending"
	AllocationApproved  AllocationStatus = "approved"
	AllocationSkipped   AllocationStatus = "skipped"
	AllocationSubmitted AllocationStatus = "submitted"
	AllocationError     AllocationStatus = "error"
)

// ScoringDetail records how the selected grant compared to the runner-up.
type ScoringDetail struct {
	RunnerUpGrant      string `json:"runner_up_grant"`
	SelectedGrantScore int    `json:"selected_grant_score"`
	RunnerUpScore      int    `json:"runner_up_score"`
}

// Recommendation is one decision returned by the recommender for a single
// transaction line, before validation.
type Recommendation struct {
	PurchaseID         string        `json:"purchase_id"`
	LineID             string        `json:"line_id"`
	Action             Action        `json:"action"`
	SuggestedClassID   string        `json:"suggested_class_id"`
	SuggestedClassName string        `json:"suggested_class_name"`
	Confidence         Confidence    `json:"confidence"`
	Explanation        string        `json:"explanation"`
	ScoringDetail      ScoringDetail `json:"scoring_detail"`
}

// Allocation persists one validated decision per transaction line. Records
// are created once per run, never deleted, and mutated only by user actions
// and the submission pipeline.
type Allocation struct {
	CreatedAt          time.Time
	UpdatedAt          time.Time
	RunID              string
	PurchaseID         string
	LineID             string
	SyncToken          string
	VendorName         string
	AccountName        string
	SuggestedClassID   string
	SuggestedClassName string
	FinalClassID       string
	FinalClassName     string
	Confidence         Confidence
	Explanation        string
	Action             Action
	Status             AllocationStatus
	LastError          string
	Qualifying         []QualifyingGrant
	ScoringDetail      ScoringDetail
	Amount             float64
	ID                 int64
}

// Submittable reports whether the allocation is eligible for ledger writeback.
func (a *Allocation) Submittable() bool {
	return a.Status == AllocationApproved && a.FinalClassID != ""
}
