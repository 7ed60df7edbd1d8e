package engine

import (
	"context"
	"errors"

	"github.com/harborlight/grantflow/internal/model"
	"github.com/harborlight/grantflow/internal/service"
)

// stubLedger is an in-memory service.Ledger for engine tests.
type stubLedger struct {
	connErr   error
	purchases map[string]*model.Purchase
	failFetch map[string]error
	updateErr map[string]error
	updated   []*model.Purchase
}

func (l *stubLedger) CheckConnection(_ context.Context) error {
	return l.connErr
}

func (l *stubLedger) FetchReport(_ context.Context, _ model.ReportType) ([]byte, error) {
	return nil, errors.New("not used in engine tests")
}

func (l *stubLedger) GetPurchase(_ context.Context, id string) (*model.Purchase, error) {
	if err := l.failFetch[id]; err != nil {
		return nil, err
	}
	p, ok := l.purchases[id]
	if !ok {
		return nil, errors.New("purchase not found")
	}
	// Copy so patches only reach the stub through UpdatePurchase.
	clone := *p
	clone.Lines = append([]model.PurchaseLine(nil), p.Lines...)
	return &clone, nil
}

func (l *stubLedger) UpdatePurchase(_ context.Context, purchase *model.Purchase) error {
	if err := l.updateErr[purchase.ID]; err != nil {
		return err
	}
	l.updated = append(l.updated, purchase)
	return nil
}

// stubPort is a service.Recommender that deterministically picks the
// top-scored grant for every candidate.
type stubPort struct {
	err   error
	calls []service.BatchRequest
}

func (p *stubPort) SubmitBatch(_ context.Context, req service.BatchRequest) (*service.BatchResponse, error) {
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}

	resp := &service.BatchResponse{}
	for i := range req.Candidates {
		c := &req.Candidates[i]
		top := c.Top()
		resp.Recommendations = append(resp.Recommendations, model.Recommendation{
			PurchaseID:         c.Transaction.PurchaseID,
			LineID:             c.Transaction.LineID,
			Action:             model.ActionReassign,
			SuggestedClassID:   top.ClassID,
			SuggestedClassName: top.ClassName,
			Confidence:         model.ConfidenceMedium,
			Explanation:        "top-scored grant",
		})
	}
	return resp, nil
}
