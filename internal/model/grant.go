// Package model defines the core domain models used throughout the application.
package model

import "time"

// PacingStatus indicates how a grant's spend rate compares to elapsed time.
type PacingStatus string

// Pacing status constants.
const (
	PacingBehind  PacingStatus = "behind_pace"
	PacingOnTrack PacingStatus = "on_track"
	PacingAhead   PacingStatus = "ahead_of_pace"
)

// Pacing summarizes a grant's spend rate relative to its period.
type Pacing struct {
	Status             PacingStatus
	PercentBudgetSpent float64
	Delta              float64
}

// BudgetCategory is one expense account line within a grant budget.
type BudgetCategory struct {
	AccountID             string
	AccountName           string
	TotalBudget           float64
	AmountSpent           float64
	RemainingBudget       float64
	AvailableAfterReserve float64
	PercentSpent          float64
}

// GrantProfile is the computed spending profile for one grant budget.
type GrantProfile struct {
	StartDate          time.Time
	EndDate            time.Time
	ClassID            string
	ClassName          string
	Categories         []BudgetCategory
	Pacing             Pacing
	RemainingDays      int
	PercentTimeElapsed float64
	IsCurrent          bool
	IsExpired          bool
}

// CategoryFor returns the budget category matching an account name, or nil.
func (p *GrantProfile) CategoryFor(accountName string) *BudgetCategory {
	for i := range p.Categories {
		if p.Categories[i].AccountName == accountName {
			return &p.Categories[i]
		}
	}
	return nil
}

// Budget is a validated grant budget parsed from a ledger budget report.
type Budget struct {
	StartDate time.Time
	EndDate   time.Time
	ClassID   string
	ClassName string
	Lines     []BudgetLine
}

// BudgetLine is one account row of a raw grant budget.
type BudgetLine struct {
	AccountID   string
	AccountName string
	AccountType string
	Amount      float64
}

// Class is one tracking class from the ledger's class list. Grant budgets
// are keyed by class.
type Class struct {
	ID     string
	Name   string
	Active bool
}
