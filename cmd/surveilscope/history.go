package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/database"
	"github.com/nao1215/surveilscope/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [source]",
		Short: "List and show saved reports",
		Long: `History reads reports saved by 'analyze --save' and 'serve'.

Without arguments it lists every source with saved reports. With a source
it lists that source's reports. With --id it prints one saved report.

Examples:
  # List sources
  surveilscope history

  # List the reports of one capture
  surveilscope history session.jsonl

  # Show report 3 as Markdown
  surveilscope history --id 3 --markdown

  # Show the last report saved by the server
  surveilscope history live --latest`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64P("id", "i", 0,
		"Show the saved report with this ID")
	cmd.Flags().BoolP("latest", "L", false,
		"Show the most recent report of the given source")
	cmd.Flags().BoolP("json", "j", false,
		"Output the report in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the report in Markdown format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	id, err := cmd.Flags().GetInt64("id")
	if err != nil {
		return err
	}
	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	setupLogger(cfg.Verbose)

	source := ""
	if len(args) == 1 {
		source = args[0]
	}
	if latest {
		if source == "" {
			return errors.New("--latest needs a source")
		}
		return runLatest(cmd.Context(), cfg, cmd.OutOrStdout(), source)
	}
	return runHistory(cmd.Context(), cfg, cmd.OutOrStdout(), source, id)
}

// runLatest shows the most recent report saved for source.
func runLatest(ctx context.Context, cfg *config.Config, out io.Writer, source string) error {
	db, err := openDB(cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	saved, err := db.LatestReport(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to load latest report: %w", err)
	}
	_, err = newReportWriter(cfg, out).Write(&report.Analysis{Source: source, Report: saved})
	return err
}

// runHistory shows report id when it is positive, otherwise lists the
// reports of source, otherwise lists every source.
func runHistory(ctx context.Context, cfg *config.Config, out io.Writer, source string, id int64) error {
	db, err := openDB(cfg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	switch {
	case id > 0:
		return showReport(ctx, db, cfg, out, id)
	case source != "":
		return listReports(ctx, db, out, source)
	default:
		return listSources(ctx, db, out)
	}
}

// listSources prints every source with saved reports.
func listSources(ctx context.Context, db *database.DB, out io.Writer) error {
	sources, err := db.ListSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list sources: %w", err)
	}
	if len(sources) == 0 {
		fmt.Fprintln(out, "No saved reports found in the database.")
		fmt.Fprintln(out, "\nUse 'surveilscope analyze --save <capture>' to save one.")
		return nil
	}

	fmt.Fprintf(out, "Sources with saved reports (%d):\n\n", len(sources))
	for _, source := range sources {
		fmt.Fprintf(out, "  - %s\n", source)
	}
	fmt.Fprintln(out, "\nUse 'surveilscope history <source>' to list its reports.")
	return nil
}

// listReports prints the saved reports of one source.
func listReports(ctx context.Context, db *database.DB, out io.Writer, source string) error {
	reports, err := db.ListReports(ctx, source)
	if err != nil {
		return fmt.Errorf("failed to list reports: %w", err)
	}
	if len(reports) == 0 {
		fmt.Fprintf(out, "No saved reports found for %s\n", source)
		return nil
	}

	fmt.Fprintf(out, "Reports for %s (%d):\n\n", source, len(reports))
	fmt.Fprintf(out, "  %-6s  %-20s  %8s  %8s  %9s  %7s  %6s\n",
		"ID", "Date", "Trackers", "Printers", "High risk", "Privacy", "Alerts")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 76))
	for _, meta := range reports {
		fmt.Fprintf(out, "  %-6d  %-20s  %8d  %8d  %9d  %7d  %6d\n",
			meta.ID,
			meta.Timestamp.Format("2006-01-02 15:04:05"),
			meta.Summary.Trackers,
			meta.Summary.Fingerprinters,
			meta.Summary.HighRisk,
			meta.Summary.PrivacyScore,
			meta.Summary.Alerts,
		)
	}
	fmt.Fprintln(out, "\nUse 'surveilscope history --id <id>' to show a report.")
	return nil
}

// showReport prints one saved report with the selected writer.
func showReport(ctx context.Context, db *database.DB, cfg *config.Config, out io.Writer, id int64) error {
	saved, err := db.GetReportByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load report %d: %w", id, err)
	}
	analysis := &report.Analysis{
		Source: fmt.Sprintf("saved report #%d", id),
		Report: saved,
	}
	_, err = newReportWriter(cfg, out).Write(analysis)
	return err
}
