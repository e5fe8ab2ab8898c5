package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/database"
	"github.com/nao1215/surveilscope/internal/notify"
	"github.com/nao1215/surveilscope/internal/pipeline"
	"github.com/nao1215/surveilscope/internal/report"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <capture.jsonl>...",
		Short: "Replay recorded browser captures and report surveillance",
		Long: `Analyze replays newline-delimited JSON captures of browser events.

Each capture is analyzed in isolation: its own tracking ledger, fingerprint
timeline and alerts, with time taken from the recorded event timestamps.
Malformed lines are skipped and counted. Captures may be zstd-compressed.

Each line is one event document:
  {"kind":"request","data":{"url":"https://t.example/collect","timestamp":1741942800000}}

Examples:
  # Analyze one capture
  surveilscope analyze session.jsonl

  # Analyze several captures, four at a time, as Markdown
  surveilscope analyze --batch 4 --markdown -o report.md a.jsonl b.jsonl.zst

  # Save the reports for the history command
  surveilscope analyze --save session.jsonl`,
		Args: cobra.ArbitraryArgs,
		RunE: runAnalyzeCmd,
	}

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of captures replayed concurrently")
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("save", "s", false,
		"Save reports to the database for the history command")

	return cmd
}

// runAnalyzeCmd executes the analyze command.
func runAnalyzeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildAnalyzeConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.ValidateAnalyze(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cfg.Verbose)
	ctx, cancel := signalContext(logger)
	defer cancel()

	output, closeOutput, err := openOutput(cfg.ReportFile, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput() //nolint:errcheck // reported by the write path

	return runAnalyze(ctx, cfg, output, logger)
}

// buildAnalyzeConfig applies the analyze flags on top of the loaded config.
func buildAnalyzeConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = cmd.Flags().GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = cmd.Flags().GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("output"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = cmd.Flags().GetBool("save"); err != nil {
		return nil, err
	}
	cfg.Targets = args
	return cfg, nil
}

// runAnalyze replays every target and writes one report per capture.
func runAnalyze(ctx context.Context, cfg *config.Config, output io.Writer, logger *slog.Logger) error {
	var db *database.DB
	if cfg.SaveToDB {
		var err error
		db, err = openDB(cfg, true)
		if err != nil {
			return err
		}
		defer db.Close()
	}

	reader, err := pipeline.NewCaptureReader(pipeline.WithCaptureLogger(logger))
	if err != nil {
		return err
	}

	bp := pipeline.NewBatchProcessor(
		func() *pipeline.Pipeline {
			p := pipeline.New(pipeline.WithLogger(logger))
			p.AddSteps(
				pipeline.NewReplayStep(reader, pipeline.WithReplayLogger(logger)),
				pipeline.NewReportStep(),
			)
			if db != nil {
				p.AddStep(pipeline.NewSaveStep(db))
			}
			return p
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithRunFactory(func(source string) *pipeline.Run {
			return pipeline.NewRun(source, analyzeOptions(cfg, logger)...)
		}),
	)

	start := time.Now()
	analyses, err := bp.ProcessBatch(ctx, cfg.Targets)
	if err != nil {
		return fmt.Errorf("analysis interrupted: %w", err)
	}
	logger.Info("analysis complete", "captures", len(analyses), "elapsed", time.Since(start).Round(time.Millisecond))

	writer := newReportWriter(cfg, output)
	failed := 0
	for _, analysis := range analyses {
		if analysis.Error != "" {
			failed++
		}
		if _, err := writer.Write(analysis); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d captures could not be fully analyzed", failed, len(analyses))
	}
	return nil
}

// analyzeOptions configures the per-capture coordinator. Alerts raised during
// replay are logged, deduplicated like in the server.
func analyzeOptions(cfg *config.Config, logger *slog.Logger) []coordinator.Option {
	var notifier coordinator.Notifier = notify.NewLogNotifier(logger)
	if cfg.DedupeNotifications {
		notifier = notify.NewDedupe(notifier)
	}
	return []coordinator.Option{
		coordinator.WithSettings(cfg.Settings),
		coordinator.WithLogger(logger),
		coordinator.WithNotifier(notifier),
		coordinator.WithRequestCacheSize(cfg.RequestCacheSize),
	}
}

// newReportWriter picks the writer for the requested format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output,
			report.WithVerbose(cfg.Verbose),
			report.WithShowEmpty(cfg.Verbose),
		)
	}
}
