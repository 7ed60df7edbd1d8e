package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harborlight/grantflow/internal/cli"
)

func approveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve [allocation-id]",
		Short: "Approve allocations for submission",
		Long: `Approve one allocation by id, or every pending high-confidence
suggestion in a run with --all-high.

Examples:
  grantflow approve 42
  grantflow approve --all-high <run-id>`,
		RunE: runApprove,
	}

	cmd.Flags().Bool("all-high", false, "Approve all pending high-confidence suggestions in the given run")

	return cmd
}

func runApprove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	allHigh, _ := cmd.Flags().GetBool("all-high")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if allHigh {
		if len(args) != 1 {
			return fmt.Errorf("--all-high requires a run id")
		}
		approved, err := store.ApproveHighConfidence(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Approved %d high-confidence allocations.", approved)))
		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("an allocation id is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid allocation id %q: %w", args[0], err)
	}

	if err := store.ApproveAllocation(ctx, id); err != nil {
		return err
	}
	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Approved allocation %d.", id)))
	return nil
}
