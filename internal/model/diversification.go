package model

// VendorAccountKey joins a vendor and account name into the key used for
// diversification history lookups.
func VendorAccountKey(vendorName, accountName string) string {
	return vendorName + "|" + accountName
}

// VendorAccountHistory tracks which grants have recently absorbed spend for
// one vendor+account pair inside the trailing diversification window.
type VendorAccountHistory struct {
	LastGrantUsed   string
	GrantsUsed      []string
	TotalByGrant    map[string]float64
	AllocationCount int
}

// Concentration is the share of a vendor+account's windowed spend already
// charged to one grant.
type Concentration struct {
	Amount  float64
	Percent float64
}

// ConcentrationByGrant recomputes per-grant concentration from the running
// totals. Derived at query time rather than maintained incrementally so the
// percentages cannot drift from the totals.
func (h *VendorAccountHistory) ConcentrationByGrant() map[string]Concentration {
	var total float64
	for _, amt := range h.TotalByGrant {
		total += amt
	}

	out := make(map[string]Concentration, len(h.TotalByGrant))
	for classID, amt := range h.TotalByGrant {
		c := Concentration{Amount: amt}
		if total > 0 {
			c.Percent = amt / total * 100
		}
		out[classID] = c
	}
	return out
}
