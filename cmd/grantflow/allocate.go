package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harborlight/grantflow/internal/cli"
	"github.com/harborlight/grantflow/internal/engine"
)

func allocateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Score unallocated expenses and recommend grant allocations",
		Long: `Run the allocation pipeline over the cached ledger reports: build grant
spending profiles, score every expense not yet charged to a grant class
against each grant, ask the AI recommender to pick among the qualifying
grants, and persist the resulting allocation records for review.

Examples:
  grantflow allocate                    # Full allocation run
  grantflow allocate --dry-run          # Score and recommend, persist nothing
  grantflow allocate --as-of 2025-06-01 # Score as of a specific date`,
		RunE: runAllocate,
	}

	cmd.Flags().Bool("dry-run", false, "Preview recommendations without saving")
	cmd.Flags().String("as-of", "", "Reference date for pacing math (format: 2006-01-02, default today)")
	cmd.Flags().Bool("allow-expired", false, "Include grants whose period has ended")

	_ = viper.BindPFlag("allocation.dry_run", cmd.Flags().Lookup("dry-run"))
	_ = viper.BindPFlag("allocation.as_of", cmd.Flags().Lookup("as-of"))
	_ = viper.BindPFlag("allocation.allow_expired", cmd.Flags().Lookup("allow-expired"))

	return cmd
}

func runAllocate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg := engine.DefaultConfig()
	cfg.DryRun = viper.GetBool("allocation.dry_run")
	cfg.Profile.AllowExpired = viper.GetBool("allocation.allow_expired")
	if asOf := viper.GetString("allocation.as_of"); asOf != "" {
		parsed, err := time.Parse("2006-01-02", asOf)
		if err != nil {
			return fmt.Errorf("invalid as-of date (use YYYY-MM-DD): %w", err)
		}
		cfg.AsOf = parsed
	}
	if windowDays := viper.GetInt("allocation.diversification_window_days"); windowDays > 0 {
		cfg.Diversify.WindowDays = windowDays
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	ledgerClient, err := createLedgerClient()
	if err != nil {
		return err
	}
	port, err := createRecommenderPort()
	if err != nil {
		return err
	}

	slog.Info("Starting allocation run", "dry_run", cfg.DryRun, "as_of", cfg.AsOf.Format("2006-01-02"))

	result, err := engine.New(store, ledgerClient, port, cfg, slog.Default()).Allocate(ctx)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderRunSummary(result.RunID,
		result.TotalExpenses, result.Reassignments, result.HighConfidence, result.Flagged,
		result.DryRun))

	if result.DryRun && len(result.Allocations) > 0 {
		fmt.Println(cli.RenderAllocationsTable(result.Allocations))
	}
	return nil
}
