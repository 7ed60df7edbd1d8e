package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/harborlight/grantflow/internal/model"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull budget, purchase, and class reports from the ledger",
		Long: `Fetch the grant budget, purchase, and class reports from the accounting
ledger and cache them locally. Allocation runs read only these cached
reports, so run sync before allocate whenever the books have changed.`,
		RunE: runSync,
	}
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	client, err := createLedgerClient()
	if err != nil {
		return err
	}
	if err := client.CheckConnection(ctx); err != nil {
		return err
	}

	for _, reportType := range []model.ReportType{
		model.ReportBudgets,
		model.ReportTransactions,
		model.ReportClasses,
	} {
		payload, err := client.FetchReport(ctx, reportType)
		if err != nil {
			return err
		}
		report := &model.CachedReport{
			Type:      reportType,
			Payload:   payload,
			FetchedAt: time.Now().UTC(),
		}
		if err := store.SaveReport(ctx, report); err != nil {
			return err
		}
		slog.Info("Cached ledger report", "report_type", reportType, "bytes", len(payload))
	}

	fmt.Println("Sync complete.")
	return nil
}
