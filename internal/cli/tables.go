package cli

import (
	"fmt"
	"strings"

	"github.com/harborlight/grantflow/internal/model"
)

// RenderRunsTable formats recent runs as an aligned table.
func RenderRunsTable(runs []model.Run) string {
	if len(runs) == 0 {
		return SubtleStyle.Render("No runs yet.")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-36s  %-9s  %-16s  %8s  %9s  %9s",
		"RUN", "STATUS", "STARTED", "EXPENSES", "PROCESSED", "SUBMITTED")))
	b.WriteString("\n")

	for _, run := range runs {
		status := RunStatusStyle(run.Status).Render(fmt.Sprintf("%-9s", run.Status))
		b.WriteString(fmt.Sprintf("%-36s  %s  %-16s  %8d  %9d  %9d\n",
			run.ID,
			status,
			run.StartedAt.Format("2006-01-02 15:04"),
			run.TotalExpenses,
			run.TotalProcessed,
			run.TotalSubmitted))
		if run.ErrorMessage != "" {
			b.WriteString(ErrorStyle.Render("  error: " + run.ErrorMessage))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderAllocationsTable formats a run's allocations as an aligned table.
func RenderAllocationsTable(allocations []model.Allocation) string {
	if len(allocations) == 0 {
		return SubtleStyle.Render("No allocations.")
	}

	var b strings.Builder
	b.WriteString(TableHeaderStyle.Render(fmt.Sprintf("%-6s  %-24s  %-20s  %10s  %-22s  %-6s  %-9s",
		"ID", "VENDOR", "ACCOUNT", "AMOUNT", "GRANT", "CONF", "STATUS")))
	b.WriteString("\n")

	for i := range allocations {
		a := &allocations[i]
		grant := a.FinalClassName
		if grant == "" {
			grant = SubtleStyle.Render("(review)")
		}
		b.WriteString(fmt.Sprintf("%-6d  %-24s  %-20s  %10.2f  %-22s  %s  %s\n",
			a.ID,
			truncate(a.VendorName, 24),
			truncate(a.AccountName, 20),
			a.Amount,
			grant,
			ConfidenceStyle(a.Confidence).Render(fmt.Sprintf("%-6s", a.Confidence)),
			StatusStyle(a.Status).Render(string(a.Status))))
	}
	return b.String()
}

// RenderRunSummary formats the outcome box for one allocation run.
func RenderRunSummary(runID string, total, reassignments, highConfidence, flagged int, dryRun bool) string {
	title := "Allocation run complete"
	if dryRun {
		title = "Dry run complete (nothing persisted)"
	}

	lines := []string{
		TitleStyle.Render(title),
		fmt.Sprintf("Unclassified expenses:  %d", total),
		fmt.Sprintf("Grant suggestions:      %d", reassignments),
		fmt.Sprintf("  high confidence:      %d", highConfidence),
		fmt.Sprintf("Flagged for review:     %d", flagged),
	}
	if runID != "" {
		lines = append(lines, SubtleStyle.Render("run "+runID))
	}
	return BoxStyle.Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
