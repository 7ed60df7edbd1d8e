package scoring

// Context carries the mutable scoring state for a single run: the rotation
// counter used by tie-breaking and the per-account batch tracker behind the
// concentration penalty. A Context must be created per run and never shared
// across concurrent runs.
type Context struct {
	batchByAccount map[string]map[string]int
	rotation       int
}

// NewContext creates an empty per-run scoring context.
func NewContext() *Context {
	return &Context{
		batchByAccount: make(map[string]map[string]int),
	}
}

// recordPick increments the running count of transactions tentatively
// allocated to a grant for one account name within this run.
func (c *Context) recordPick(accountName, classID string) {
	counts, ok := c.batchByAccount[accountName]
	if !ok {
		counts = make(map[string]int)
		c.batchByAccount[accountName] = counts
	}
	counts[classID]++
}

// batchShare returns a grant's share of this run's tentative allocations for
// one account name, and the total count for that account.
func (c *Context) batchShare(accountName, classID string) (share float64, total int) {
	counts := c.batchByAccount[accountName]
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return 0, 0
	}
	return float64(counts[classID]) / float64(total), total
}
