package recommend

import (
	"fmt"
	"log/slog"

	"github.com/harborlight/grantflow/internal/model"
)

// ValidationFailureNote prefixes explanations of recommendations demoted to
// manual review because the model's pick could not be grounded.
const ValidationFailureNote = "[VALIDATION FAILED]"

// Confidence thresholds applied to the selected grant's pre-computed score.
const (
	highConfidenceScore   = 70
	mediumConfidenceScore = 50
	runnerUpGapForHigh    = 5
)

// ValidateAll cross-checks every recommendation against its candidate's
// pre-scored qualifying set and the known grant profiles, correcting or
// demoting ungrounded picks. recs and candidates must be index-aligned.
func ValidateAll(recs []model.Recommendation, candidates []model.Candidate, profiles []model.GrantProfile, logger *slog.Logger) []model.Recommendation {
	if logger == nil {
		logger = slog.Default()
	}

	byID := make(map[string]*model.GrantProfile, len(profiles))
	for i := range profiles {
		byID[profiles[i].ClassID] = &profiles[i]
	}

	out := make([]model.Recommendation, len(recs))
	for i := range recs {
		out[i] = validate(recs[i], &candidates[i], byID, logger)
	}
	return out
}

func validate(rec model.Recommendation, candidate *model.Candidate, profiles map[string]*model.GrantProfile, logger *slog.Logger) model.Recommendation {
	if rec.Action != model.ActionReassign {
		rec.Confidence = model.ConfidenceLow
		rec.SuggestedClassID = ""
		rec.SuggestedClassName = ""
		return rec
	}

	if len(candidate.Qualifying) == 0 {
		return invalidate(rec, "no grant qualifies for this expense")
	}

	profile, known := profiles[rec.SuggestedClassID]
	if !known {
		logger.Warn("recommender picked an unknown grant",
			"purchase_id", rec.PurchaseID,
			"line_id", rec.LineID,
			"class_id", rec.SuggestedClassID)
		return invalidate(rec, fmt.Sprintf("suggested grant %q is not a known grant budget", rec.SuggestedClassID))
	}

	// A known grant missing from the pre-scored qualifying set is
	// self-healed: the top-scored grant replaces it and a note is kept.
	if len(candidate.Qualifying) > 0 && findQualifying(candidate.Qualifying, rec.SuggestedClassID) == nil {
		top := candidate.Qualifying[0]
		logger.Warn("recommender pick not in qualifying set, corrected to top-scored grant",
			"purchase_id", rec.PurchaseID,
			"line_id", rec.LineID,
			"picked", rec.SuggestedClassID,
			"corrected_to", top.ClassID)

		rec.Explanation = fmt.Sprintf("%s [Corrected: %s was not in the qualifying set; using top-scored %s]",
			rec.Explanation, rec.SuggestedClassName, top.ClassName)
		rec.SuggestedClassID = top.ClassID
		rec.SuggestedClassName = top.ClassName
		profile = profiles[top.ClassID]
	}

	if profile == nil || profile.CategoryFor(candidate.Transaction.AccountName) == nil {
		logger.Warn("suggested grant has no category for the transaction account",
			"purchase_id", rec.PurchaseID,
			"line_id", rec.LineID,
			"class_id", rec.SuggestedClassID,
			"account", candidate.Transaction.AccountName)
		return invalidate(rec, fmt.Sprintf("grant %q has no budget category for account %q",
			rec.SuggestedClassName, candidate.Transaction.AccountName))
	}

	return enforceConfidence(rec, candidate)
}

func invalidate(rec model.Recommendation, reason string) model.Recommendation {
	rec.Action = model.ActionFlagForReview
	rec.Confidence = model.ConfidenceLow
	rec.SuggestedClassID = ""
	rec.SuggestedClassName = ""
	rec.Explanation = fmt.Sprintf("%s %s. %s", ValidationFailureNote, reason, rec.Explanation)
	rec.ScoringDetail = model.ScoringDetail{}
	return rec
}

// enforceConfidence applies the deterministic confidence rules from the
// candidate's pre-computed scores, overriding whatever the model claimed,
// and rebuilds the scoring detail.
func enforceConfidence(rec model.Recommendation, candidate *model.Candidate) model.Recommendation {
	selected := findQualifying(candidate.Qualifying, rec.SuggestedClassID)
	if selected == nil {
		// Unreachable after correction, but degrade safely.
		rec.Confidence = model.ConfidenceLow
		return rec
	}

	score := selected.Scores.Total
	runnerUp := bestOther(candidate.Qualifying, rec.SuggestedClassID)

	detail := model.ScoringDetail{SelectedGrantScore: score}
	gapClearsHigh := true
	if runnerUp != nil {
		detail.RunnerUpGrant = runnerUp.ClassName
		detail.RunnerUpScore = runnerUp.Scores.Total
		gapClearsHigh = score-runnerUp.Scores.Total > runnerUpGapForHigh
	}
	rec.ScoringDetail = detail

	switch {
	case score >= highConfidenceScore && gapClearsHigh:
		rec.Confidence = model.ConfidenceHigh
	case score >= mediumConfidenceScore:
		rec.Confidence = model.ConfidenceMedium
	default:
		rec.Confidence = model.ConfidenceLow
	}
	return rec
}

func findQualifying(qualifying []model.QualifyingGrant, classID string) *model.QualifyingGrant {
	for i := range qualifying {
		if qualifying[i].ClassID == classID {
			return &qualifying[i]
		}
	}
	return nil
}

func bestOther(qualifying []model.QualifyingGrant, classID string) *model.QualifyingGrant {
	var best *model.QualifyingGrant
	for i := range qualifying {
		if qualifying[i].ClassID == classID {
			continue
		}
		if best == nil || qualifying[i].Scores.Total > best.Scores.Total {
			best = &qualifying[i]
		}
	}
	return best
}
