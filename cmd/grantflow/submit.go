package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/harborlight/grantflow/internal/cli"
	"github.com/harborlight/grantflow/internal/engine"
)

func submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit <run-id>",
		Short: "Write a run's approved allocations back to the ledger",
		Long: `Post every approved allocation of a run to the accounting ledger. Each
purchase is re-fetched live first so the write carries a current sync
token. Failures are isolated per allocation: a failed record moves to
status=error and the rest of the batch continues.`,
		Args: cobra.ExactArgs(1),
		RunE: runSubmit,
	}
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID := args[0]

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	ledgerClient, err := createLedgerClient()
	if err != nil {
		return err
	}

	submitter := engine.NewSubmitter(store, ledgerClient, nil)

	var bar *progressbar.ProgressBar
	submitter.OnProgress = func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "submitting")
		}
		_ = bar.Set(done)
	}

	result, err := submitter.Submit(ctx, runID)
	if err != nil {
		return err
	}

	if result.Failed > 0 {
		fmt.Println(cli.WarningStyle.Render(
			fmt.Sprintf("Submitted %d, failed %d — failed records are marked status=error; fix and re-approve.",
				result.Submitted, result.Failed)))
	} else {
		fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("Submitted %d allocations.", result.Submitted)))
	}
	return nil
}
