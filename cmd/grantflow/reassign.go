package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harborlight/grantflow/internal/cli"
)

func reassignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reassign <allocation-id>...",
		Short: "Assign selected allocations to a different grant",
		Long: `Override the final grant on one or more allocations and approve them.
The original AI suggestion is preserved so the run can be reset later.

Example:
  grantflow reassign 42 43 44 --class-id c9 --class-name "Capital Grant"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runReassign,
	}

	cmd.Flags().String("class-id", "", "Target grant class id (required)")
	cmd.Flags().String("class-name", "", "Target grant class name (required)")
	_ = cmd.MarkFlagRequired("class-id")
	_ = cmd.MarkFlagRequired("class-name")

	return cmd
}

func runReassign(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	classID, _ := cmd.Flags().GetString("class-id")
	className, _ := cmd.Flags().GetString("class-name")

	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid allocation id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	if err := store.ReassignAllocations(ctx, ids, classID, className); err != nil {
		return err
	}
	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Reassigned %d allocations to %s.", len(ids), className)))
	return nil
}
