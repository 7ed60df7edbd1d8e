// Package recommend batches scored candidates through the recommender port
// and validates the picks against the pre-computed qualifying sets.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/model"
	"github.com/harborlight/grantflow/internal/service"
)

// ParseFailureNote marks recommendations produced when a whole batch was
// flagged because the model response could not be parsed.
const ParseFailureNote = "[AI RESPONSE PARSE FAILURE]"

// Config holds configuration options for the recommender.
type Config struct {
	BatchSize int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{BatchSize: 30}
}

// Recommender drives the recommender port batch by batch.
type Recommender struct {
	port   service.Recommender
	logger *slog.Logger
	cfg    Config
}

// New creates a recommender over the given port.
func New(port service.Recommender, cfg Config, logger *slog.Logger) *Recommender {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recommender{port: port, cfg: cfg, logger: logger}
}

// Recommend produces one recommendation per candidate, in candidate order.
// Candidates without qualifying grants are flagged locally and never sent to
// the model. A batch whose response cannot be parsed is mapped wholesale to
// flag_for_review; any other port failure aborts the run.
func (r *Recommender) Recommend(ctx context.Context, runDate time.Time, grants []model.GrantProfile, candidates []model.Candidate) ([]model.Recommendation, error) {
	out := make([]model.Recommendation, len(candidates))

	var sendable []model.Candidate
	sendableIdx := make([]int, 0, len(candidates))
	for i := range candidates {
		if len(candidates[i].Qualifying) == 0 {
			out[i] = noQualifyingRecommendation(&candidates[i])
			continue
		}
		sendable = append(sendable, candidates[i])
		sendableIdx = append(sendableIdx, i)
	}

	for start := 0; start < len(sendable); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(sendable) {
			end = len(sendable)
		}
		batch := sendable[start:end]

		recs, err := r.recommendBatch(ctx, runDate, grants, batch)
		if err != nil {
			return nil, err
		}

		for j, rec := range recs {
			out[sendableIdx[start+j]] = rec
		}
	}

	return out, nil
}

func (r *Recommender) recommendBatch(ctx context.Context, runDate time.Time, grants []model.GrantProfile, batch []model.Candidate) ([]model.Recommendation, error) {
	req := service.BatchRequest{
		RunDate:    runDate,
		Summary:    fmt.Sprintf("%d unclassified expenses across %d grant budgets", len(batch), len(grants)),
		Grants:     grants,
		Candidates: batch,
	}

	resp, err := r.port.SubmitBatch(ctx, req)
	if err != nil {
		if errors.Is(err, common.ErrMalformedResponse) {
			r.logger.Warn("recommender response unparseable, flagging entire batch",
				"batch_size", len(batch),
				"error", err)
			return flagBatch(batch), nil
		}
		return nil, fmt.Errorf("recommendation batch failed: %w", err)
	}

	aligned, ok := alignByLine(resp.Recommendations, batch)
	if !ok {
		r.logger.Warn("recommender response does not cover the batch, flagging entire batch",
			"batch_size", len(batch))
		return flagBatch(batch), nil
	}

	return aligned, nil
}

// alignByLine matches recommendations to batch candidates by purchase and
// line id. A response that misses any candidate fails alignment.
func alignByLine(recs []model.Recommendation, batch []model.Candidate) ([]model.Recommendation, bool) {
	type lineKey struct{ purchaseID, lineID string }

	byKey := make(map[lineKey]model.Recommendation, len(recs))
	for _, rec := range recs {
		byKey[lineKey{rec.PurchaseID, rec.LineID}] = rec
	}

	aligned := make([]model.Recommendation, len(batch))
	for i := range batch {
		txn := &batch[i].Transaction
		rec, ok := byKey[lineKey{txn.PurchaseID, txn.LineID}]
		if !ok {
			return nil, false
		}
		aligned[i] = rec
	}
	return aligned, true
}

// flagBatch defensively maps every candidate in a failed batch to manual
// review. No partial-batch recovery is attempted.
func flagBatch(batch []model.Candidate) []model.Recommendation {
	recs := make([]model.Recommendation, len(batch))
	for i := range batch {
		txn := &batch[i].Transaction
		recs[i] = model.Recommendation{
			PurchaseID:  txn.PurchaseID,
			LineID:      txn.LineID,
			Action:      model.ActionFlagForReview,
			Confidence:  model.ConfidenceLow,
			Explanation: ParseFailureNote + " The AI response could not be parsed; review manually.",
		}
	}
	return recs
}

func noQualifyingRecommendation(c *model.Candidate) model.Recommendation {
	return model.Recommendation{
		PurchaseID:  c.Transaction.PurchaseID,
		LineID:      c.Transaction.LineID,
		Action:      model.ActionFlagForReview,
		Confidence:  model.ConfidenceLow,
		Explanation: "No grant budget can absorb this expense; review manually.",
	}
}
