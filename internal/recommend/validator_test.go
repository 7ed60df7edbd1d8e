package recommend

import (
	"strings"
	"testing"

	"github.com/harborlight/grantflow/internal/model"
)

func profileWithSupplies(classID string) model.GrantProfile {
	return model.GrantProfile{
		ClassID:   classID,
		ClassName: "Grant " + classID,
		Categories: []model.BudgetCategory{
			{AccountName: "Office Supplies", TotalBudget: 1000, RemainingBudget: 800, AvailableAfterReserve: 800},
		},
	}
}

func qualifying(classID string, total int) model.QualifyingGrant {
	return model.QualifyingGrant{
		ClassID:   classID,
		ClassName: "Grant " + classID,
		Scores:    model.FactorScores{Total: total},
	}
}

func TestValidate_UnknownGrantInvalidated(t *testing.T) {
	candidates := []model.Candidate{candidate("p1", qualifying("g1", 80))}
	recs := []model.Recommendation{reassignRec("p1", "ghost")}
	profiles := []model.GrantProfile{profileWithSupplies("g1")}

	got := ValidateAll(recs, candidates, profiles, nil)[0]
	if got.Action != model.ActionFlagForReview || got.Confidence != model.ConfidenceLow {
		t.Errorf("unknown grant must be demoted: %+v", got)
	}
	if got.SuggestedClassID != "" {
		t.Errorf("suggested grant not cleared: %q", got.SuggestedClassID)
	}
	if !strings.HasPrefix(got.Explanation, ValidationFailureNote) {
		t.Errorf("explanation missing validation marker: %q", got.Explanation)
	}
}

func TestValidate_KnownButUnrankedGrantCorrected(t *testing.T) {
	// g2 is a known grant but absent from this candidate's qualifying set:
	// the pick is silently corrected to the top pre-scored grant.
	candidates := []model.Candidate{candidate("p1", qualifying("g1", 80))}
	recs := []model.Recommendation{reassignRec("p1", "g2")}
	profiles := []model.GrantProfile{profileWithSupplies("g1"), profileWithSupplies("g2")}

	got := ValidateAll(recs, candidates, profiles, nil)[0]
	if got.Action != model.ActionReassign {
		t.Fatalf("correction must not demote to review: %+v", got)
	}
	if got.SuggestedClassID != "g1" {
		t.Errorf("suggested = %s, want corrected to g1", got.SuggestedClassID)
	}
	if !strings.Contains(got.Explanation, "Corrected") {
		t.Errorf("explanation missing correction note: %q", got.Explanation)
	}
	if got.Confidence != model.ConfidenceHigh {
		t.Errorf("confidence = %s, want high for score 80", got.Confidence)
	}
}

func TestValidate_CategoryMismatchInvalidated(t *testing.T) {
	// g1 qualifies on scoring but its profile no longer carries a category
	// for the transaction's account.
	candidates := []model.Candidate{candidate("p1", qualifying("g1", 80))}
	recs := []model.Recommendation{reassignRec("p1", "g1")}
	profiles := []model.GrantProfile{{
		ClassID:   "g1",
		ClassName: "Grant g1",
		Categories: []model.BudgetCategory{
			{AccountName: "Travel", TotalBudget: 1000, RemainingBudget: 800},
		},
	}}

	got := ValidateAll(recs, candidates, profiles, nil)[0]
	if got.Action != model.ActionFlagForReview {
		t.Errorf("category mismatch must demote to review: %+v", got)
	}
	if !strings.HasPrefix(got.Explanation, ValidationFailureNote) {
		t.Errorf("explanation missing validation marker: %q", got.Explanation)
	}
}

func TestValidate_ConfidenceRules(t *testing.T) {
	tests := []struct {
		name       string
		qualifying []model.QualifyingGrant
		want       model.Confidence
		wantDetail model.ScoringDetail
	}{
		{
			name:       "single grant high",
			qualifying: []model.QualifyingGrant{qualifying("g1", 75)},
			want:       model.ConfidenceHigh,
			wantDetail: model.ScoringDetail{SelectedGrantScore: 75},
		},
		{
			name:       "single grant medium",
			qualifying: []model.QualifyingGrant{qualifying("g1", 55)},
			want:       model.ConfidenceMedium,
			wantDetail: model.ScoringDetail{SelectedGrantScore: 55},
		},
		{
			name:       "single grant low",
			qualifying: []model.QualifyingGrant{qualifying("g1", 40)},
			want:       model.ConfidenceLow,
			wantDetail: model.ScoringDetail{SelectedGrantScore: 40},
		},
		{
			// Spec example: 78 vs 65, gap 13.
			name:       "clear winner high",
			qualifying: []model.QualifyingGrant{qualifying("g1", 78), qualifying("g2", 65)},
			want:       model.ConfidenceHigh,
			wantDetail: model.ScoringDetail{SelectedGrantScore: 78, RunnerUpGrant: "Grant g2", RunnerUpScore: 65},
		},
		{
			name:       "tight race demoted to medium",
			qualifying: []model.QualifyingGrant{qualifying("g1", 72), qualifying("g2", 70)},
			want:       model.ConfidenceMedium,
			wantDetail: model.ScoringDetail{SelectedGrantScore: 72, RunnerUpGrant: "Grant g2", RunnerUpScore: 70},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidates := []model.Candidate{candidate("p1", tt.qualifying...)}
			recs := []model.Recommendation{reassignRec("p1", "g1")}
			profiles := []model.GrantProfile{profileWithSupplies("g1"), profileWithSupplies("g2")}

			got := ValidateAll(recs, candidates, profiles, nil)[0]
			if got.Confidence != tt.want {
				t.Errorf("confidence = %s, want %s", got.Confidence, tt.want)
			}
			if got.ScoringDetail != tt.wantDetail {
				t.Errorf("detail = %+v, want %+v", got.ScoringDetail, tt.wantDetail)
			}
		})
	}
}

func TestValidate_FlagRecommendationPassesThrough(t *testing.T) {
	candidates := []model.Candidate{candidate("p1")}
	recs := []model.Recommendation{{
		PurchaseID: "p1",
		LineID:     "1",
		Action:     model.ActionFlagForReview,
		Confidence: model.ConfidenceMedium,
	}}

	got := ValidateAll(recs, candidates, nil, nil)[0]
	if got.Action != model.ActionFlagForReview {
		t.Errorf("action = %s", got.Action)
	}
	if got.Confidence != model.ConfidenceLow {
		t.Errorf("flagged recommendations are always low confidence, got %s", got.Confidence)
	}
}
