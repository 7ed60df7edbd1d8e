package model

import "time"

// RunStatus is the lifecycle state of an allocation run.
type RunStatus string

// Run status constants.
const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is one execution of the scoring+recommendation pipeline. At most one
// run may be in the running state at a time.
type Run struct {
	StartedAt      time.Time
	CompletedAt    *time.Time
	ID             string
	Status         RunStatus
	StartedBy      string
	ErrorMessage   string
	TotalExpenses  int
	TotalProcessed int
	TotalSubmitted int
}

// ReportType keys a cached ledger report blob.
type ReportType string

// Cached report types.
const (
	ReportBudgets      ReportType = "budgets"
	ReportTransactions ReportType = "transactions"
	ReportClasses      ReportType = "classes"
)

// CachedReport is a raw ledger report blob with its fetch time.
type CachedReport struct {
	FetchedAt time.Time
	Type      ReportType
	Payload   []byte
}
