package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/database"
	"github.com/nao1215/surveilscope/internal/log"
	"github.com/nao1215/surveilscope/internal/report"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the persisted detection state as JSON",
		Long: `Export writes the state saved by 'surveilscope serve' as one JSON
document: tracking ledger, fingerprint timeline, exfiltration and beaconing
data, alerts, settings and a forensic summary. The document can be loaded
into a running server with POST /api/v1/import.

Examples:
  surveilscope export -o surveilscope-export.json`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().StringP("output", "o", "",
		"Write the export to specified file path (default stdout)")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return err
	}
	setupLogger(cfg.Verbose)

	output, closeOutput, err := openOutput(cfg.ReportFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // reported by the write path

	return runExport(cmd.Context(), cfg, output)
}

// readOnlyStore loads snapshots and discards writes, so exporting never
// changes what is stored.
type readOnlyStore struct {
	db *database.DB
}

func (s readOnlyStore) Get(ctx context.Context, keys ...string) (map[string][]byte, error) {
	return s.db.Get(ctx, keys...)
}

func (readOnlyStore) Set(context.Context, map[string][]byte) error {
	return nil
}

// runExport restores the stored state and writes the export document.
func runExport(ctx context.Context, cfg *config.Config, output io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := openDB(cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	coord := coordinator.New(
		coordinator.WithStore(readOnlyStore{db: db}),
		coordinator.WithSettings(cfg.Settings),
		coordinator.WithLogger(log.Discard()),
	)
	defer coord.Close()

	if err := coord.LoadFromStore(ctx); err != nil {
		if !errors.Is(err, coordinator.ErrCorruptSnapshot) {
			return fmt.Errorf("failed to restore state: %w", err)
		}
		slog.Warn("some stored state could not be restored", "error", err)
	}

	_, err = report.NewJSONWriter(output, report.WithPrettyPrint()).WriteValue(coord.ExportAll())
	return err
}
