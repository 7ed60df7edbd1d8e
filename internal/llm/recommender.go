package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/model"
	"github.com/harborlight/grantflow/internal/service"
)

const systemPrompt = "You are a nonprofit grant accountant. You assign unclassified " +
	"expenses to grant budgets, following the pre-computed scoring exactly unless a " +
	"compelling reason exists to deviate. Respond only with the JSON object requested."

// Recommender implements the service.Recommender port on top of an LLM client.
type Recommender struct {
	client Client
	logger *slog.Logger
}

// NewRecommender creates an LLM-backed recommender.
func NewRecommender(client Client, logger *slog.Logger) *Recommender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{client: client, logger: logger}
}

// SubmitBatch sends one batch of scored candidates and parses the structured
// response. A response that does not match the expected shape is returned as
// an error wrapping common.ErrMalformedResponse; no partial recovery is
// attempted here.
func (r *Recommender) SubmitBatch(ctx context.Context, req service.BatchRequest) (*service.BatchResponse, error) {
	prompt, err := buildPrompt(req)
	if err != nil {
		return nil, fmt.Errorf("failed to build batch prompt: %w", err)
	}

	r.logger.Debug("submitting recommendation batch",
		"expenses", len(req.Candidates),
		"grants", len(req.Grants))

	content, err := r.client.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("recommendation request failed: %w", err)
	}

	resp, err := parseBatchResponse(content, len(req.Candidates))
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// batchDocument is the request payload described to the model.
type batchDocument struct {
	CurrentDate string            `json:"current_date"`
	Summary     string            `json:"summary"`
	Grants      []grantSummary    `json:"grants"`
	Expenses    []expenseDocument `json:"expenses"`
}

type grantSummary struct {
	ClassID            string             `json:"class_id"`
	ClassName          string             `json:"class_name"`
	PacingStatus       model.PacingStatus `json:"pacing_status"`
	Categories         []categorySummary  `json:"categories"`
	RemainingDays      int                `json:"remaining_days"`
	PercentTimeElapsed float64            `json:"percent_time_elapsed"`
	IsExpired          bool               `json:"is_expired"`
}

type categorySummary struct {
	AccountName           string  `json:"account_name"`
	AvailableAfterReserve float64 `json:"available_after_reserve"`
	PercentSpent          float64 `json:"percent_spent"`
}

type expenseDocument struct {
	PurchaseID      string                  `json:"purchase_id"`
	LineID          string                  `json:"line_id"`
	VendorName      string                  `json:"vendor_name"`
	AccountName     string                  `json:"account_name"`
	Amount          float64                 `json:"amount"`
	Qualifying      []model.QualifyingGrant `json:"qualifying_grants"`
	Diversification *diversificationContext `json:"diversification_context"`
}

type diversificationContext struct {
	LastGrantUsed   string   `json:"last_grant_used"`
	GrantsUsed      []string `json:"grants_used"`
	AllocationCount int      `json:"allocation_count"`
}

func buildPrompt(req service.BatchRequest) (string, error) {
	doc := batchDocument{
		CurrentDate: req.RunDate.Format("2006-01-02"),
		Summary:     req.Summary,
	}

	for _, g := range req.Grants {
		gs := grantSummary{
			ClassID:            g.ClassID,
			ClassName:          g.ClassName,
			PacingStatus:       g.Pacing.Status,
			RemainingDays:      g.RemainingDays,
			PercentTimeElapsed: g.PercentTimeElapsed,
			IsExpired:          g.IsExpired,
		}
		for _, cat := range g.Categories {
			gs.Categories = append(gs.Categories, categorySummary{
				AccountName:           cat.AccountName,
				AvailableAfterReserve: cat.AvailableAfterReserve,
				PercentSpent:          cat.PercentSpent,
			})
		}
		doc.Grants = append(doc.Grants, gs)
	}

	for _, c := range req.Candidates {
		exp := expenseDocument{
			PurchaseID:  c.Transaction.PurchaseID,
			LineID:      c.Transaction.LineID,
			VendorName:  c.Transaction.VendorName,
			AccountName: c.Transaction.AccountName,
			Amount:      c.Transaction.Amount,
			Qualifying:  c.Qualifying,
		}
		if c.Diversification != nil {
			exp.Diversification = &diversificationContext{
				LastGrantUsed:   c.Diversification.LastGrantUsed,
				GrantsUsed:      c.Diversification.GrantsUsed,
				AllocationCount: c.Diversification.AllocationCount,
			}
		}
		doc.Expenses = append(doc.Expenses, exp)
	}

	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(`Assign each expense below to a grant budget.

Input data:
%s

Instructions:
1. For each expense, pick qualifying_grants[0] (the top pre-scored grant) unless a compelling reason exists to prefer another qualifying grant. Never pick a grant outside the expense's qualifying_grants list.
2. If an expense has no qualifying grants, use action "flag_for_review" with suggested_class_id null and confidence "low".
3. Confidence is deterministic:
   - "high" when the selected grant scores 70 or more and the runner-up (if any) trails by more than 5 points
   - "medium" when the selected grant scores 50 or more
   - "low" otherwise
4. Respond with ONLY a JSON object of this exact shape, one recommendation per input expense, in input order:

{
  "recommendations": [
    {
      "purchase_id": "...",
      "line_id": "...",
      "action": "reassign" | "flag_for_review",
      "suggested_class_id": "..." or null,
      "suggested_class_name": "..." or null,
      "confidence": "high" | "medium" | "low",
      "explanation": "one sentence",
      "scoring_detail": {
        "selected_grant_score": 0,
        "runner_up_grant": "..." or null,
        "runner_up_score": 0
      }
    }
  ]
}`, string(payload)), nil
}

// parseBatchResponse strictly parses the model output. Any deviation from
// the expected shape, including a count mismatch, is a malformed response.
func parseBatchResponse(content string, expected int) (*service.BatchResponse, error) {
	content = cleanMarkdownWrapper(content)

	var parsed struct {
		Recommendations []model.Recommendation `json:"recommendations"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrMalformedResponse, err)
	}

	if parsed.Recommendations == nil {
		return nil, fmt.Errorf("%w: missing recommendations array", common.ErrMalformedResponse)
	}
	if len(parsed.Recommendations) != expected {
		return nil, fmt.Errorf("%w: got %d recommendations for %d expenses",
			common.ErrMalformedResponse, len(parsed.Recommendations), expected)
	}

	for i := range parsed.Recommendations {
		rec := &parsed.Recommendations[i]
		switch rec.Action {
		case model.ActionReassign, model.ActionFlagForReview:
		default:
			return nil, fmt.Errorf("%w: unknown action %q", common.ErrMalformedResponse, rec.Action)
		}
		switch rec.Confidence {
		case model.ConfidenceHigh, model.ConfidenceMedium, model.ConfidenceLow:
		default:
			return nil, fmt.Errorf("%w: unknown confidence %q", common.ErrMalformedResponse, rec.Confidence)
		}
	}

	return &service.BatchResponse{Recommendations: parsed.Recommendations}, nil
}

var _ service.Recommender = (*Recommender)(nil)
