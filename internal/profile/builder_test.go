package profile

import (
	"math"
	"testing"
	"time"

	"github.com/harborlight/grantflow/internal/model"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testConfig(asOf string) Config {
	cfg := DefaultConfig()
	cfg.AsOf = date(asOf)
	return cfg
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.01
}

func TestBuild_PacingStatus(t *testing.T) {
	tests := []struct {
		name       string
		asOf       string
		spent      float64
		wantStatus model.PacingStatus
		wantDelta  float64
	}{
		{
			// 50% of time elapsed, 20% spent -> 30 points behind.
			name:       "behind pace",
			asOf:       "2025-07-02",
			spent:      200,
			wantStatus: model.PacingBehind,
			wantDelta:  -30,
		},
		{
			// 50% elapsed, 55% spent -> within tolerance.
			name:       "on track",
			asOf:       "2025-07-02",
			spent:      550,
			wantStatus: model.PacingOnTrack,
			wantDelta:  5,
		},
		{
			// 50% elapsed, 80% spent -> ahead.
			name:       "ahead of pace",
			asOf:       "2025-07-02",
			spent:      800,
			wantStatus: model.PacingAhead,
			wantDelta:  30,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budgets := []model.Budget{{
				ClassID:   "grant-1",
				ClassName: "Community Grant",
				StartDate: date("2025-01-01"),
				EndDate:   date("2025-12-31"),
				Lines: []model.BudgetLine{
					{AccountID: "a1", AccountName: "Office Supplies", AccountType: "Expense", Amount: 1000},
				},
			}}
			txns := []model.Transaction{{
				PurchaseID:  "p1",
				LineID:      "1",
				ClassID:     "grant-1",
				AccountName: "Office Supplies",
				Amount:      tt.spent,
				Date:        date("2025-03-01"),
			}}

			profiles := NewBuilder(testConfig(tt.asOf)).Build(budgets, txns)
			if len(profiles) != 1 {
				t.Fatalf("expected 1 profile, got %d", len(profiles))
			}

			p := profiles[0]
			if p.Pacing.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", p.Pacing.Status, tt.wantStatus)
			}
			if !almostEqual(p.Pacing.Delta, tt.wantDelta) {
				t.Errorf("delta = %.2f, want %.2f", p.Pacing.Delta, tt.wantDelta)
			}
		})
	}
}

func TestBuild_ReserveBuffer(t *testing.T) {
	budgets := []model.Budget{{
		ClassID:   "grant-1",
		ClassName: "Community Grant",
		StartDate: date("2025-01-01"),
		EndDate:   date("2025-12-31"),
		Lines: []model.BudgetLine{
			{AccountID: "a1", AccountName: "Office Supplies", AccountType: "Expense", Amount: 1000},
		},
	}}

	// Far from the end date the reserve is withheld.
	early := NewBuilder(testConfig("2025-03-01")).Build(budgets, nil)
	if got := early[0].Categories[0].AvailableAfterReserve; !almostEqual(got, 900) {
		t.Errorf("early available = %.2f, want 900 (1000 - 10%% reserve)", got)
	}

	// Inside the release threshold the full remaining budget is available.
	late := NewBuilder(testConfig("2025-11-01")).Build(budgets, nil)
	if got := late[0].Categories[0].AvailableAfterReserve; !almostEqual(got, 1000) {
		t.Errorf("late available = %.2f, want 1000", got)
	}
}

func TestBuild_Exclusions(t *testing.T) {
	budgets := []model.Budget{{
		ClassID:   "grant-1",
		ClassName: "Community Grant",
		StartDate: date("2025-01-01"),
		EndDate:   date("2025-12-31"),
		Lines: []model.BudgetLine{
			{AccountID: "a1", AccountName: "Office Supplies", AccountType: "Expense", Amount: 1000},
			{AccountID: "a2", AccountName: "Donations", AccountType: "Income", Amount: 5000},
			{AccountID: "a3", AccountName: "Travel", AccountType: "Expense", Amount: 0},
			{AccountID: "a4", AccountName: "Printing", AccountType: "Expense", Amount: 200},
		},
	}}

	// Printing is fully spent and must be dropped from the profile.
	txns := []model.Transaction{{
		PurchaseID:  "p1",
		LineID:      "1",
		ClassID:     "grant-1",
		AccountName: "Printing",
		Amount:      200,
		Date:        date("2025-02-01"),
	}}

	profiles := NewBuilder(testConfig("2025-06-01")).Build(budgets, txns)
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}

	cats := profiles[0].Categories
	if len(cats) != 1 {
		t.Fatalf("expected 1 category, got %d", len(cats))
	}
	if cats[0].AccountName != "Office Supplies" {
		t.Errorf("kept category = %s, want Office Supplies", cats[0].AccountName)
	}
}

func TestBuild_ExpiredGrants(t *testing.T) {
	budgets := []model.Budget{{
		ClassID:   "grant-old",
		ClassName: "Ended Grant",
		StartDate: date("2024-01-01"),
		EndDate:   date("2024-12-31"),
		Lines: []model.BudgetLine{
			{AccountID: "a1", AccountName: "Office Supplies", AccountType: "Expense", Amount: 1000},
		},
	}}

	if got := NewBuilder(testConfig("2025-06-01")).Build(budgets, nil); len(got) != 0 {
		t.Errorf("expected expired grant to be excluded, got %d profiles", len(got))
	}

	cfg := testConfig("2025-06-01")
	cfg.AllowExpired = true
	got := NewBuilder(cfg).Build(budgets, nil)
	if len(got) != 1 {
		t.Fatalf("expected expired grant with AllowExpired, got %d profiles", len(got))
	}
	if !got[0].IsExpired {
		t.Error("expected IsExpired to be set")
	}
	if got[0].RemainingDays >= 0 {
		t.Errorf("remaining days = %d, want negative", got[0].RemainingDays)
	}
	if !almostEqual(got[0].PercentTimeElapsed, 100) {
		t.Errorf("percent elapsed = %.2f, want clamped to 100", got[0].PercentTimeElapsed)
	}
}

func TestBuild_SkipsEmptyBudgets(t *testing.T) {
	budgets := []model.Budget{{
		ClassID:   "grant-empty",
		ClassName: "Empty Grant",
		StartDate: date("2025-01-01"),
		EndDate:   date("2025-12-31"),
	}}

	if got := NewBuilder(testConfig("2025-06-01")).Build(budgets, nil); len(got) != 0 {
		t.Errorf("expected budget without lines to be skipped, got %d", len(got))
	}
}

func TestBuild_UnclassifiedSpendIgnored(t *testing.T) {
	budgets := []model.Budget{{
		ClassID:   "grant-1",
		ClassName: "Community Grant",
		StartDate: date("2025-01-01"),
		EndDate:   date("2025-12-31"),
		Lines: []model.BudgetLine{
			{AccountID: "a1", AccountName: "Office Supplies", AccountType: "Expense", Amount: 1000},
		},
	}}
	txns := []model.Transaction{{
		PurchaseID:  "p1",
		LineID:      "1",
		ClassID:     "",
		AccountName: "Office Supplies",
		Amount:      400,
		Date:        date("2025-02-01"),
	}}

	profiles := NewBuilder(testConfig("2025-06-01")).Build(budgets, txns)
	if got := profiles[0].Categories[0].AmountSpent; got != 0 {
		t.Errorf("amount spent = %.2f, want 0 for unclassified lines", got)
	}
}
