package model

import "time"

// Transaction is a validated single expense line from a ledger purchase,
// produced by the typed conversion at the ledger boundary.
type Transaction struct {
	Date        time.Time
	PurchaseID  string
	LineID      string
	SyncToken   string
	VendorName  string
	AccountName string
	AccountID   string
	ClassID     string
	ClassName   string
	Amount      float64
}

// Classified reports whether the line already carries a class assignment.
func (t *Transaction) Classified() bool {
	return t.ClassID != ""
}

// NeedsAllocation reports whether the line should be scored against the
// grant budgets: its class is unset, or set to a class outside the budgeted
// set (for example a general-operations tracking class).
func (t *Transaction) NeedsAllocation(budgeted map[string]bool) bool {
	return t.ClassID == "" || !budgeted[t.ClassID]
}

// Purchase is the live ledger state of a purchase transaction, re-fetched
// immediately before writeback to obtain a current sync token.
type Purchase struct {
	ID         string
	SyncToken  string
	TxnDate    time.Time
	VendorName string
	Lines      []PurchaseLine
}

// PurchaseLine is one line of a ledger purchase.
type PurchaseLine struct {
	ID          string
	DetailType  string
	AccountID   string
	AccountName string
	ClassID     string
	ClassName   string
	Amount      float64
}

// ExpenseLineDetail is the ledger detail type for account-based expense
// lines; only lines of this type are eligible for class assignment.
const ExpenseLineDetail = "AccountBasedExpenseLineDetail"

// LineByID returns the purchase line with the given id, or nil.
func (p *Purchase) LineByID(id string) *PurchaseLine {
	for i := range p.Lines {
		if p.Lines[i].ID == id {
			return &p.Lines[i]
		}
	}
	return nil
}
