package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/nao1215/surveilscope/internal/config"
)

// NewClearCmd creates the clear command.
func NewClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the persisted detection state",
		Long: `Clear removes every stored snapshot written by 'surveilscope serve':
tracking ledger, fingerprint timeline, alerts and settings. Saved reports
listed by 'surveilscope history' are kept.

Stop the server first; a running server rewrites its state on the next event.`,
		Args: cobra.NoArgs,
		RunE: runClearCmd,
	}
	return cmd
}

// runClearCmd executes the clear command.
func runClearCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogger(cfg.Verbose)

	return runClear(cmd.Context(), cfg, cmd.OutOrStdout())
}

// runClear removes every snapshot and reports what was removed to out.
func runClear(ctx context.Context, cfg *config.Config, out io.Writer) error {
	db, err := openDB(cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	snapshots, err := db.Snapshots(ctx)
	if err != nil {
		return err
	}
	if err := db.ClearSnapshots(ctx); err != nil {
		return err
	}

	if len(snapshots) == 0 {
		fmt.Fprintln(out, "Nothing to clear.")
		return nil
	}
	total := 0
	for _, s := range snapshots {
		total += s.Size
	}
	fmt.Fprintf(out, "Cleared %d stored state parts (%d bytes).\n", len(snapshots), total)
	return nil
}
