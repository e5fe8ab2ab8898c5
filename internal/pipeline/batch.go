package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/surveilscope/internal/report"
)

// DefaultConcurrency is the number of captures replayed at once.
const DefaultConcurrency = 4

// BatchProcessor replays several captures concurrently.
// Every capture gets its own Run and Pipeline, so no state is shared.
type BatchProcessor struct {
	pipelineFactory func() *Pipeline
	runFactory      func(source string) *Run
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent replays.
// Non-positive values keep the default.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithRunFactory replaces NewRun, e.g. to pass coordinator options.
func WithRunFactory(fn func(source string) *Run) BatchOption {
	return func(b *BatchProcessor) {
		if fn != nil {
			b.runFactory = fn
		}
	}
}

// NewBatchProcessor creates a BatchProcessor. pipelineFactory is called once
// per capture.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		runFactory:      func(source string) *Run { return NewRun(source) },
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch replays sources and returns one analysis per source, in order.
// A failed replay still yields an analysis carrying the error and whatever
// was detected before it failed. The error is non-nil only on cancellation.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, sources []string) ([]*report.Analysis, error) {
	results := make([]*report.Analysis, len(sources))
	err := bp.ProcessBatchWithCallback(ctx, sources, func(analysis *report.Analysis, index int) {
		results[index] = analysis
	})
	return results, err
}

// ProcessBatchWithCallback replays sources and calls callback as each one
// finishes. The callback runs on the worker goroutine and must be safe for
// concurrent use unless it only writes to its own index.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	sources []string,
	callback func(analysis *report.Analysis, index int),
) error {
	bp.logger.Info("starting batch replay",
		"total_sources", len(sources),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, source := range sources {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Debug("replaying capture",
				"source", source,
				"index", i+1,
				"total", len(sources),
			)

			callback(bp.process(ctx, source), i)
			return nil
		})
	}

	err := g.Wait()
	bp.logger.Info("batch replay complete",
		"total_sources", len(sources),
		"elapsed", time.Since(startTime),
	)
	return err
}

func (bp *BatchProcessor) process(ctx context.Context, source string) *report.Analysis {
	run := bp.runFactory(source)
	defer run.Close()

	if err := bp.pipelineFactory().Execute(ctx, run); err != nil {
		bp.logger.Warn("replay failed", "source", source, "error", err)
	}
	if run.Analysis.Report == nil {
		run.Analysis.Report = run.Coordinator.GenerateReport()
		run.Analysis.Alerts = run.Coordinator.Alerts()
	}
	return run.Analysis
}
