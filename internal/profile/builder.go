// Package profile turns raw budget and transaction data into per-grant
// spending profiles with pacing metrics.
package profile

import (
	"log/slog"
	"strings"
	"time"

	"github.com/harborlight/grantflow/internal/model"
)

// Config holds configuration options for profile building.
type Config struct {
	AsOf time.Time
	// ReserveReleaseDays is the remaining-days threshold above which a
	// reserve buffer is withheld from availability.
	ReserveReleaseDays int
	// ReservePercent is the share of a category's total budget withheld
	// while the reserve is in effect.
	ReservePercent float64
	// OverspendTolerance is the pacing delta above which a grant is
	// ahead of pace.
	OverspendTolerance float64
	// UnderspendTolerance is the pacing delta below which a grant is
	// behind pace.
	UnderspendTolerance float64
	// AllowExpired includes grants whose period has already ended.
	AllowExpired bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AsOf:                time.Now(),
		ReserveReleaseDays:  90,
		ReservePercent:      10.0,
		OverspendTolerance:  10.0,
		UnderspendTolerance: 10.0,
	}
}

// Builder computes grant profiles from validated ledger data.
type Builder struct {
	cfg Config
}

// NewBuilder creates a profile builder with the given configuration.
func NewBuilder(cfg Config) *Builder {
	if cfg.AsOf.IsZero() {
		cfg.AsOf = time.Now()
	}
	return &Builder{cfg: cfg}
}

// Build computes one profile per eligible grant budget. Budgets with no
// detail lines are skipped; expired budgets are skipped unless allowed.
func (b *Builder) Build(budgets []model.Budget, txns []model.Transaction) []model.GrantProfile {
	spent := spendByGrantAccount(txns)

	profiles := make([]model.GrantProfile, 0, len(budgets))
	for _, budget := range budgets {
		if len(budget.Lines) == 0 {
			continue
		}

		totalDays := daysBetween(budget.StartDate, budget.EndDate)
		if totalDays <= 0 {
			slog.Warn("Skipping budget with invalid period",
				"class_id", budget.ClassID,
				"start", budget.StartDate,
				"end", budget.EndDate)
			continue
		}

		remainingDays := daysBetween(b.cfg.AsOf, budget.EndDate)
		isExpired := remainingDays < 0
		if isExpired && !b.cfg.AllowExpired {
			continue
		}

		elapsedDays := daysBetween(budget.StartDate, b.cfg.AsOf)
		percentElapsed := clamp(float64(elapsedDays)/float64(totalDays)*100, 0, 100)

		profile := model.GrantProfile{
			ClassID:            budget.ClassID,
			ClassName:          budget.ClassName,
			StartDate:          budget.StartDate,
			EndDate:            budget.EndDate,
			RemainingDays:      remainingDays,
			PercentTimeElapsed: percentElapsed,
			IsCurrent:          !b.cfg.AsOf.Before(budget.StartDate) && !isExpired,
			IsExpired:          isExpired,
		}

		var totalBudget, totalSpent float64
		for _, line := range budget.Lines {
			if isRevenueAccount(line.AccountType) || line.Amount == 0 {
				continue
			}

			amountSpent := spent[spendKey{budget.ClassID, line.AccountName}]
			remaining := line.Amount - amountSpent

			totalBudget += line.Amount
			totalSpent += amountSpent

			// Exhausted categories cannot absorb anything and are
			// dropped from the profile.
			if remaining <= 0 {
				continue
			}

			var reserve float64
			if remainingDays > b.cfg.ReserveReleaseDays {
				reserve = line.Amount * b.cfg.ReservePercent / 100
			}

			profile.Categories = append(profile.Categories, model.BudgetCategory{
				AccountID:             line.AccountID,
				AccountName:           line.AccountName,
				TotalBudget:           line.Amount,
				AmountSpent:           amountSpent,
				RemainingBudget:       remaining,
				AvailableAfterReserve: max(0, remaining-reserve),
				PercentSpent:          amountSpent / line.Amount * 100,
			})
		}

		var percentSpent float64
		if totalBudget > 0 {
			percentSpent = totalSpent / totalBudget * 100
		}

		profile.Pacing = b.pacing(percentSpent, percentElapsed)
		profiles = append(profiles, profile)
	}

	return profiles
}

// pacing classifies the spend rate relative to elapsed time.
func (b *Builder) pacing(percentSpent, percentElapsed float64) model.Pacing {
	delta := percentSpent - percentElapsed

	status := model.PacingOnTrack
	switch {
	case delta > b.cfg.OverspendTolerance:
		status = model.PacingAhead
	case delta < -b.cfg.UnderspendTolerance:
		status = model.PacingBehind
	}

	return model.Pacing{
		PercentBudgetSpent: percentSpent,
		Delta:              delta,
		Status:             status,
	}
}

type spendKey struct {
	classID     string
	accountName string
}

// spendByGrantAccount sums actual spend per (grant, account) from classified
// transaction lines.
func spendByGrantAccount(txns []model.Transaction) map[spendKey]float64 {
	spent := make(map[spendKey]float64)
	for _, txn := range txns {
		if txn.ClassID == "" {
			continue
		}
		spent[spendKey{txn.ClassID, txn.AccountName}] += txn.Amount
	}
	return spent
}

func isRevenueAccount(accountType string) bool {
	switch strings.ToLower(accountType) {
	case "income", "revenue", "other income":
		return true
	}
	return false
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
