package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harborlight/grantflow/internal/cli"
)

func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <run-id>",
		Short: "Reset a run's allocations back to the AI suggestions",
		Long: `Return every non-submitted allocation of a run to its original AI
suggestion and pending status. Submitted records are left untouched.
Resetting an already-reset run is a no-op.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			reset, err := store.ResetRunAllocations(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Reset %d allocations to their AI suggestions.", reset)))
			return nil
		},
	}
}
