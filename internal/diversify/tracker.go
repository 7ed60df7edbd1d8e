// Package diversify builds a sliding-window history of which grant was last
// charged per vendor+account pair.
package diversify

import (
	"time"

	"github.com/harborlight/grantflow/internal/model"
)

// Config holds configuration options for the tracker.
type Config struct {
	AsOf time.Time
	// WindowDays is the trailing window of transaction history considered.
	WindowDays int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AsOf:       time.Now(),
		WindowDays: 120,
	}
}

// Tracker holds vendor+account allocation history inside the trailing window.
type Tracker struct {
	byKey map[string]*model.VendorAccountHistory
}

// Build scans transactions restricted to the trailing window and to lines
// already charged to a budgeted grant, and accumulates keyed history.
// budgetedGrants is the set of class ids with an active grant budget.
func Build(txns []model.Transaction, budgetedGrants map[string]bool, cfg Config) *Tracker {
	if cfg.AsOf.IsZero() {
		cfg.AsOf = time.Now()
	}
	if cfg.WindowDays <= 0 {
		cfg.WindowDays = DefaultConfig().WindowDays
	}
	windowStart := cfg.AsOf.AddDate(0, 0, -cfg.WindowDays)

	t := &Tracker{byKey: make(map[string]*model.VendorAccountHistory)}
	for _, txn := range txns {
		if txn.ClassID == "" || !budgetedGrants[txn.ClassID] {
			continue
		}
		if txn.Date.Before(windowStart) || txn.Date.After(cfg.AsOf) {
			continue
		}
		t.record(txn)
	}
	return t
}

func (t *Tracker) record(txn model.Transaction) {
	key := model.VendorAccountKey(txn.VendorName, txn.AccountName)
	h, ok := t.byKey[key]
	if !ok {
		h = &model.VendorAccountHistory{TotalByGrant: make(map[string]float64)}
		t.byKey[key] = h
	}

	h.LastGrantUsed = txn.ClassID
	if !contains(h.GrantsUsed, txn.ClassID) {
		h.GrantsUsed = append(h.GrantsUsed, txn.ClassID)
	}
	h.TotalByGrant[txn.ClassID] += txn.Amount
	h.AllocationCount++
}

// History returns the tracked history for a vendor+account pair, or nil when
// the pair has no windowed allocations.
func (t *Tracker) History(vendorName, accountName string) *model.VendorAccountHistory {
	return t.byKey[model.VendorAccountKey(vendorName, accountName)]
}

// Size returns the number of tracked vendor+account pairs.
func (t *Tracker) Size() int {
	return len(t.byKey)
}

func contains(s []string, v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}
