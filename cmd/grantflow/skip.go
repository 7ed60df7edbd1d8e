package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/harborlight/grantflow/internal/cli"
)

func skipCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "skip <allocation-id>",
		Short: "Skip an allocation so it is never submitted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid allocation id %q: %w", args[0], err)
			}

			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer closeStorage(store)

			if err := store.SkipAllocation(ctx, id); err != nil {
				return err
			}
			fmt.Println(cli.SubtleStyle.Render(fmt.Sprintf("Skipped allocation %d.", id)))
			return nil
		},
	}
}
