package ledger

import (
	"time"

	"github.com/harborlight/grantflow/internal/model"
)

// dateLayout is the date format the ledger API uses everywhere.
const dateLayout = "2006-01-02"

// Raw wire types for ledger report payloads. These are parsed at the
// boundary into validated model types; nothing outside this package touches
// the raw shapes.

type budgetReport struct {
	Budgets []rawBudget `json:"budgets"`
}

type rawBudget struct {
	ClassID   string          `json:"class_id"`
	ClassName string          `json:"class_name"`
	StartDate string          `json:"start_date"`
	EndDate   string          `json:"end_date"`
	Lines     []rawBudgetLine `json:"lines"`
}

type rawBudgetLine struct {
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	AccountType string  `json:"account_type"`
	Amount      float64 `json:"amount"`
}

type purchaseReport struct {
	Purchases []rawPurchase `json:"purchases"`
}

type rawPurchase struct {
	ID         string            `json:"id"`
	SyncToken  string            `json:"sync_token"`
	TxnDate    string            `json:"txn_date"`
	VendorName string            `json:"vendor_name"`
	Lines      []rawPurchaseLine `json:"lines"`
}

type rawPurchaseLine struct {
	ID          string  `json:"id"`
	DetailType  string  `json:"detail_type"`
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	ClassID     string  `json:"class_id,omitempty"`
	ClassName   string  `json:"class_name,omitempty"`
	Amount      float64 `json:"amount"`
}

type classReport struct {
	Classes []rawClass `json:"classes"`
}

type rawClass struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// purchaseEnvelope wraps the single-purchase fetch/update payloads.
type purchaseEnvelope struct {
	Purchase rawPurchase `json:"purchase"`
}

func (p *rawPurchase) toModel(txnDate time.Time) *model.Purchase {
	out := &model.Purchase{
		ID:         p.ID,
		SyncToken:  p.SyncToken,
		TxnDate:    txnDate,
		VendorName: p.VendorName,
		Lines:      make([]model.PurchaseLine, len(p.Lines)),
	}
	for i, line := range p.Lines {
		out.Lines[i] = model.PurchaseLine{
			ID:          line.ID,
			DetailType:  line.DetailType,
			AccountID:   line.AccountID,
			AccountName: line.AccountName,
			ClassID:     line.ClassID,
			ClassName:   line.ClassName,
			Amount:      line.Amount,
		}
	}
	return out
}

func fromModelPurchase(p *model.Purchase) rawPurchase {
	out := rawPurchase{
		ID:         p.ID,
		SyncToken:  p.SyncToken,
		TxnDate:    p.TxnDate.Format(dateLayout),
		VendorName: p.VendorName,
		Lines:      make([]rawPurchaseLine, len(p.Lines)),
	}
	for i, line := range p.Lines {
		out.Lines[i] = rawPurchaseLine{
			ID:          line.ID,
			DetailType:  line.DetailType,
			AccountID:   line.AccountID,
			AccountName: line.AccountName,
			ClassID:     line.ClassID,
			ClassName:   line.ClassName,
			Amount:      line.Amount,
		}
	}
	return out
}
