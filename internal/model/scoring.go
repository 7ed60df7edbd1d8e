package model

// FactorScores breaks an eligibility score into its four components.
type FactorScores struct {
	Pacing          int `json:"s1_pacing"`
	Time            int `json:"s2_time"`
	Diversification int `json:"s3_diversification"`
	Budget          int `json:"s4_budget"`
	Total           int `json:"total"`
}

// QualifyingGrant is one grant that can absorb a candidate transaction,
// with its component scores.
type QualifyingGrant struct {
	ClassID          string       `json:"class_id"`
	ClassName        string       `json:"class_name"`
	MatchingCategory string       `json:"matching_category"`
	PacingStatus     PacingStatus `json:"pacing_status"`
	Scores           FactorScores `json:"scores"`
	ConcentrationPct float64      `json:"concentration_pct"`
	IsExpired        bool         `json:"is_expired"`
}

// Candidate is an unclassified transaction with its ranked qualifying grants.
type Candidate struct {
	Transaction     Transaction
	Qualifying      []QualifyingGrant
	Diversification *VendorAccountHistory
}

// Top returns the highest-ranked qualifying grant, or nil when none qualify.
func (c *Candidate) Top() *QualifyingGrant {
	if len(c.Qualifying) == 0 {
		return nil
	}
	return &c.Qualifying[0]
}
