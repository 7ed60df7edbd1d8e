// Package engine orchestrates allocation runs: loading cached ledger data,
// scoring, recommending, validating, and persisting allocation records, plus
// the ledger submission pipeline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harborlight/grantflow/internal/common"
	"github.com/harborlight/grantflow/internal/diversify"
	"github.com/harborlight/grantflow/internal/ledger"
	"github.com/harborlight/grantflow/internal/model"
	"github.com/harborlight/grantflow/internal/profile"
	"github.com/harborlight/grantflow/internal/recommend"
	"github.com/harborlight/grantflow/internal/scoring"
	"github.com/harborlight/grantflow/internal/service"
)

// Config holds configuration options for the allocation engine.
type Config struct {
	AsOf      time.Time
	StartedBy string
	// DryRun scores and recommends without creating a run or persisting
	// allocations.
	DryRun    bool
	Profile   profile.Config
	Diversify diversify.Config
	Scoring   scoring.Config
	Recommend recommend.Config
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AsOf:      time.Now(),
		StartedBy: "cli",
		Profile:   profile.DefaultConfig(),
		Diversify: diversify.DefaultConfig(),
		Scoring:   scoring.DefaultConfig(),
		Recommend: recommend.DefaultConfig(),
	}
}

// Result summarizes one allocation run.
type Result struct {
	RunID          string
	Allocations    []model.Allocation
	TotalExpenses  int
	Reassignments  int
	Flagged        int
	HighConfidence int
	DryRun         bool
}

// Engine drives the allocation pipeline over the three collaborator ports.
type Engine struct {
	store       service.Store
	ledgerPort  service.Ledger
	recommender *recommend.Recommender
	logger      *slog.Logger
	cfg         Config
}

// New creates an allocation engine.
func New(store service.Store, ledgerPort service.Ledger, port service.Recommender, cfg Config, logger *slog.Logger) *Engine {
	if cfg.AsOf.IsZero() {
		cfg.AsOf = time.Now()
	}
	if cfg.StartedBy == "" {
		cfg.StartedBy = "cli"
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.Profile.AsOf = cfg.AsOf
	cfg.Diversify.AsOf = cfg.AsOf

	return &Engine{
		store:       store,
		ledgerPort:  ledgerPort,
		recommender: recommend.New(port, cfg.Recommend, logger),
		logger:      logger,
		cfg:         cfg,
	}
}

// Allocate executes one allocation run over the cached ledger reports.
// Configuration and data preconditions are surfaced before the run record is
// created; any failure after that marks the run failed and re-propagates.
func (e *Engine) Allocate(ctx context.Context) (*Result, error) {
	if err := e.ledgerPort.CheckConnection(ctx); err != nil {
		return nil, err
	}

	budgets, txns, err := e.loadCachedData(ctx)
	if err != nil {
		return nil, err
	}

	builder := profile.NewBuilder(e.cfg.Profile)
	profiles := builder.Build(budgets, txns)
	if len(profiles) == 0 {
		return nil, fmt.Errorf("%w: no eligible grant budgets", common.ErrNoBudgetData)
	}

	budgeted := make(map[string]bool, len(profiles))
	for i := range profiles {
		budgeted[profiles[i].ClassID] = true
	}
	tracker := diversify.Build(txns, budgeted, e.cfg.Diversify)

	var unallocated []model.Transaction
	for _, txn := range txns {
		if txn.NeedsAllocation(budgeted) {
			unallocated = append(unallocated, txn)
		}
	}

	e.logger.Info("starting allocation run",
		"grants", len(profiles),
		"transactions", len(txns),
		"unallocated", len(unallocated),
		"tracked_pairs", tracker.Size(),
		"dry_run", e.cfg.DryRun)

	if len(unallocated) == 0 {
		e.logger.Info("no unallocated expenses, nothing to do")
		return &Result{DryRun: e.cfg.DryRun}, nil
	}

	if e.cfg.DryRun {
		allocations, err := e.process(ctx, "", profiles, tracker, unallocated)
		if err != nil {
			return nil, err
		}
		return summarize("", allocations, len(unallocated), true), nil
	}

	run, err := e.store.CreateRun(ctx, e.cfg.StartedBy, len(unallocated))
	if err != nil {
		return nil, err
	}

	allocations, err := e.process(ctx, run.ID, profiles, tracker, unallocated)
	if err == nil {
		err = e.store.SaveAllocations(ctx, allocations)
	}
	if err != nil {
		e.logger.Error("allocation run failed", "run_id", run.ID, "error", err)
		if failErr := e.store.FailRun(ctx, run.ID, err.Error()); failErr != nil {
			e.logger.Error("failed to mark run failed", "run_id", run.ID, "error", failErr)
		}
		return nil, err
	}

	if err := e.store.CompleteRun(ctx, run.ID, len(allocations)); err != nil {
		return nil, err
	}
	return summarize(run.ID, allocations, len(unallocated), false), nil
}

// process runs the scoring, recommendation, and validation stages.
func (e *Engine) process(ctx context.Context, runID string, profiles []model.GrantProfile, tracker *diversify.Tracker, unallocated []model.Transaction) ([]model.Allocation, error) {
	scorer := scoring.NewEngine(e.cfg.Scoring)
	runState := scoring.NewContext()

	candidates := make([]model.Candidate, len(unallocated))
	for i, txn := range unallocated {
		history := tracker.History(txn.VendorName, txn.AccountName)
		candidates[i] = scorer.Score(txn, profiles, history, runState)
	}

	recs, err := e.recommender.Recommend(ctx, e.cfg.AsOf, profiles, candidates)
	if err != nil {
		return nil, err
	}

	validated := recommend.ValidateAll(recs, candidates, profiles, e.logger)
	return buildAllocations(runID, candidates, validated), nil
}

// loadCachedData reads and parses the cached budget and transaction report
// blobs. Missing blobs are data errors surfaced before the run starts.
func (e *Engine) loadCachedData(ctx context.Context) ([]model.Budget, []model.Transaction, error) {
	budgetReport, err := e.store.GetReport(ctx, model.ReportBudgets)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: run `grantflow sync` first", common.ErrNoBudgetData)
	}
	if err != nil {
		return nil, nil, err
	}

	txnReport, err := e.store.GetReport(ctx, model.ReportTransactions)
	if errors.Is(err, common.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: run `grantflow sync` first", common.ErrNoTransactionData)
	}
	if err != nil {
		return nil, nil, err
	}

	budgets, err := ledger.ParseBudgets(budgetReport.Payload, e.logger)
	if err != nil {
		return nil, nil, err
	}
	if len(budgets) == 0 {
		return nil, nil, fmt.Errorf("%w: cached budget report is empty", common.ErrNoBudgetData)
	}

	txns, err := ledger.ParseTransactions(txnReport.Payload, e.logger)
	if err != nil {
		return nil, nil, err
	}
	if len(txns) == 0 {
		return nil, nil, fmt.Errorf("%w: cached purchase report is empty", common.ErrNoTransactionData)
	}

	return budgets, txns, nil
}

// buildAllocations turns validated recommendations into pending allocation
// records. The final grant starts out equal to the suggestion; user actions
// move it from there.
func buildAllocations(runID string, candidates []model.Candidate, recs []model.Recommendation) []model.Allocation {
	allocations := make([]model.Allocation, len(recs))
	for i, rec := range recs {
		txn := &candidates[i].Transaction
		allocations[i] = model.Allocation{
			RunID:              runID,
			PurchaseID:         txn.PurchaseID,
			LineID:             txn.LineID,
			SyncToken:          txn.SyncToken,
			VendorName:         txn.VendorName,
			AccountName:        txn.AccountName,
			Amount:             txn.Amount,
			SuggestedClassID:   rec.SuggestedClassID,
			SuggestedClassName: rec.SuggestedClassName,
			FinalClassID:       rec.SuggestedClassID,
			FinalClassName:     rec.SuggestedClassName,
			Confidence:         rec.Confidence,
			Action:             rec.Action,
			Status:             model.AllocationPending,
			Explanation:        rec.Explanation,
			Qualifying:         candidates[i].Qualifying,
			ScoringDetail:      rec.ScoringDetail,
		}
	}
	return allocations
}

func summarize(runID string, allocations []model.Allocation, totalExpenses int, dryRun bool) *Result {
	result := &Result{
		RunID:         runID,
		Allocations:   allocations,
		TotalExpenses: totalExpenses,
		DryRun:        dryRun,
	}
	for i := range allocations {
		switch allocations[i].Action {
		case model.ActionReassign:
			result.Reassignments++
			if allocations[i].Confidence == model.ConfidenceHigh {
				result.HighConfidence++
			}
		case model.ActionFlagForReview:
			result.Flagged++
		}
	}
	return result
}
