package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/harborlight/grantflow/internal/cli"
	"github.com/harborlight/grantflow/internal/model"
)

func runsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent allocation runs",
		RunE:  runRuns,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list")
	_ = viper.BindPFlag("runs.limit", cmd.Flags().Lookup("limit"))

	cmd.AddCommand(&cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run's allocations",
		Args:  cobra.ExactArgs(1),
		RunE:  runRunsShow,
	})

	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	runs, err := store.ListRuns(ctx, viper.GetInt("runs.limit"))
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderRunsTable(runs))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	run, err := store.GetRun(ctx, args[0])
	if err != nil {
		return err
	}

	allocations, err := store.GetAllocationsByRun(ctx, run.ID)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderRunsTable([]model.Run{*run}))
	fmt.Println(cli.RenderAllocationsTable(allocations))
	return nil
}
