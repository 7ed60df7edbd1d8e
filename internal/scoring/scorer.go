// Package scoring ranks qualifying grants for unclassified transactions
// using a deterministic multi-factor score.
package scoring

import (
	"sort"

	"github.com/harborlight/grantflow/internal/model"
)

// Score values for the pacing factor.
const (
	pacingBehindScore  = 40
	pacingOnTrackScore = 25
	pacingAheadScore   = 5
)

// Config holds configuration options for the scoring engine.
type Config struct {
	// TieBreakWindow is the score distance from the top candidate within
	// which candidates are considered tied.
	TieBreakWindow int
	// BatchShareLimit is the share of one account's in-run allocations
	// above which a grant draws the concentration penalty.
	BatchShareLimit float64
	// BatchPenalty is subtracted from the diversification factor of an
	// over-concentrated grant.
	BatchPenalty int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TieBreakWindow:  5,
		BatchShareLimit: 0.5,
		BatchPenalty:    15,
	}
}

// Engine scores transactions against grant profiles.
type Engine struct {
	cfg Config
}

// NewEngine creates a scoring engine with the given configuration.
func NewEngine(cfg Config) *Engine {
	if cfg.TieBreakWindow == 0 {
		cfg.TieBreakWindow = DefaultConfig().TieBreakWindow
	}
	if cfg.BatchShareLimit == 0 {
		cfg.BatchShareLimit = DefaultConfig().BatchShareLimit
	}
	if cfg.BatchPenalty == 0 {
		cfg.BatchPenalty = DefaultConfig().BatchPenalty
	}
	return &Engine{cfg: cfg}
}

// Score produces the ranked candidate for one transaction. Run-scoped state
// (rotation counter, batch tracker) lives on runCtx, which the caller owns.
func (e *Engine) Score(txn model.Transaction, profiles []model.GrantProfile, history *model.VendorAccountHistory, runCtx *Context) model.Candidate {
	candidate := model.Candidate{
		Transaction:     txn,
		Diversification: history,
	}

	qualifying := e.qualify(txn, profiles, history)
	qualifying = dropAheadOfPace(qualifying)
	e.applyBatchPenalty(txn.AccountName, qualifying, runCtx)

	sort.SliceStable(qualifying, func(i, j int) bool {
		return qualifying[i].Scores.Total > qualifying[j].Scores.Total
	})

	e.breakTies(qualifying, history, runCtx)

	if len(qualifying) > 0 {
		runCtx.recordPick(txn.AccountName, qualifying[0].ClassID)
	}

	candidate.Qualifying = qualifying
	return candidate
}

// qualify finds every grant category that matches the transaction's account
// and can absorb its amount after the reserve, and computes factor scores.
func (e *Engine) qualify(txn model.Transaction, profiles []model.GrantProfile, history *model.VendorAccountHistory) []model.QualifyingGrant {
	var concentration map[string]model.Concentration
	if history != nil {
		concentration = history.ConcentrationByGrant()
	}

	var qualifying []model.QualifyingGrant
	for i := range profiles {
		p := &profiles[i]
		cat := p.CategoryFor(txn.AccountName)
		if cat == nil || cat.AvailableAfterReserve < txn.Amount {
			continue
		}

		q := model.QualifyingGrant{
			ClassID:          p.ClassID,
			ClassName:        p.ClassName,
			MatchingCategory: cat.AccountName,
			PacingStatus:     p.Pacing.Status,
			IsExpired:        p.IsExpired,
		}

		q.Scores.Pacing = pacingScore(p.Pacing.Status)
		q.Scores.Time = timeScore(p)
		q.Scores.Diversification, q.ConcentrationPct = diversificationScore(p.ClassID, concentration)
		q.Scores.Budget = budgetScore(cat)
		q.Scores.Total = q.Scores.Pacing + q.Scores.Time + q.Scores.Diversification + q.Scores.Budget

		qualifying = append(qualifying, q)
	}
	return qualifying
}

func pacingScore(status model.PacingStatus) int {
	switch status {
	case model.PacingBehind:
		return pacingBehindScore
	case model.PacingAhead:
		return pacingAheadScore
	default:
		return pacingOnTrackScore
	}
}

// timeScore rewards grants close to their end date.
func timeScore(p *model.GrantProfile) int {
	switch {
	case p.IsExpired, p.RemainingDays <= 60:
		return 25
	case p.RemainingDays <= 120:
		return 15
	default:
		return 5
	}
}

// diversificationScore rewards grants with low concentration for this
// vendor+account pair. Without history the full score is granted.
func diversificationScore(classID string, concentration map[string]model.Concentration) (score int, pct float64) {
	if concentration == nil {
		return 25, 0
	}
	pct = concentration[classID].Percent
	switch {
	case pct < 30:
		return 25, pct
	case pct <= 50:
		return 15, pct
	case pct <= 70:
		return 5, pct
	default:
		return 0, pct
	}
}

func budgetScore(cat *model.BudgetCategory) int {
	percentRemaining := cat.RemainingBudget / cat.TotalBudget * 100
	switch {
	case percentRemaining > 50:
		return 10
	case percentRemaining >= 25:
		return 5
	default:
		return 2
	}
}

// dropAheadOfPace enforces the hard constraint: ahead-of-pace grants are
// excluded whenever any other candidate exists.
func dropAheadOfPace(qualifying []model.QualifyingGrant) []model.QualifyingGrant {
	hasOther := false
	for _, q := range qualifying {
		if q.PacingStatus != model.PacingAhead {
			hasOther = true
			break
		}
	}
	if !hasOther {
		return qualifying
	}

	kept := qualifying[:0]
	for _, q := range qualifying {
		if q.PacingStatus != model.PacingAhead {
			kept = append(kept, q)
		}
	}
	return kept
}

// applyBatchPenalty docks the diversification factor of any grant that has
// already absorbed more than the configured share of this account's
// transactions within the current run.
func (e *Engine) applyBatchPenalty(accountName string, qualifying []model.QualifyingGrant, runCtx *Context) {
	for i := range qualifying {
		share, total := runCtx.batchShare(accountName, qualifying[i].ClassID)
		if total == 0 || share <= e.cfg.BatchShareLimit {
			continue
		}
		s := &qualifying[i].Scores
		s.Diversification -= e.cfg.BatchPenalty
		if s.Diversification < 0 {
			s.Diversification = 0
		}
		s.Total = s.Pacing + s.Time + s.Diversification + s.Budget
	}
}

// breakTies promotes an alternative among candidates within the tie window:
// avoid the vendor+account's last-used grant when one is named, otherwise
// rotate through the tied candidates with the run-wide counter.
func (e *Engine) breakTies(qualifying []model.QualifyingGrant, history *model.VendorAccountHistory, runCtx *Context) {
	if len(qualifying) < 2 {
		return
	}

	top := qualifying[0].Scores.Total
	tied := 1
	for tied < len(qualifying) && top-qualifying[tied].Scores.Total <= e.cfg.TieBreakWindow {
		tied++
	}
	if tied < 2 {
		return
	}

	if history != nil && history.LastGrantUsed != "" {
		for i := 0; i < tied; i++ {
			if qualifying[i].ClassID != history.LastGrantUsed {
				promote(qualifying, i)
				return
			}
		}
		return
	}

	idx := runCtx.rotation % tied
	runCtx.rotation++
	promote(qualifying, idx)
}

// promote moves qualifying[idx] to the front, preserving the order of the rest.
func promote(qualifying []model.QualifyingGrant, idx int) {
	if idx == 0 {
		return
	}
	q := qualifying[idx]
	copy(qualifying[1:idx+1], qualifying[:idx])
	qualifying[0] = q
}
