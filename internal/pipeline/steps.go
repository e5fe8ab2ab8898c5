package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/event"
	"github.com/nao1215/surveilscope/internal/metrics"
	"github.com/nao1215/surveilscope/internal/model"
)

// ReplayStep feeds a capture into the run's coordinator.
type ReplayStep struct {
	reader  *CaptureReader
	open    func(source string) (io.ReadCloser, error)
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// ReplayStepOption configures a ReplayStep.
type ReplayStepOption func(*ReplayStep)

// WithOpener replaces OpenCapture, e.g. to replay from memory.
func WithOpener(open func(source string) (io.ReadCloser, error)) ReplayStepOption {
	return func(s *ReplayStep) {
		s.open = open
	}
}

// WithReplayMetrics counts malformed lines as invalid events.
func WithReplayMetrics(m *metrics.Metrics) ReplayStepOption {
	return func(s *ReplayStep) {
		s.metrics = m
	}
}

// WithReplayLogger sets a custom logger for the replay step.
func WithReplayLogger(logger *slog.Logger) ReplayStepOption {
	return func(s *ReplayStep) {
		s.logger = logger
	}
}

// NewReplayStep creates a replay step reading captures with reader.
func NewReplayStep(reader *CaptureReader, opts ...ReplayStepOption) *ReplayStep {
	s := &ReplayStep{
		reader: reader,
		open:   OpenCapture,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Name returns the step name.
func (s *ReplayStep) Name() string {
	return "replay"
}

// Do replays run.Source. The session starts at the first recorded timestamp
// and the clock advances to each event's timestamp before it is handled.
func (s *ReplayStep) Do(ctx context.Context, run *Run) error {
	rc, err := s.open(run.Source)
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck // read-only

	unsupported := 0
	started := false
	stats, err := s.reader.Read(ctx, rc, func(ev event.Event) error {
		if ts := ev.OccurredAt(); !started && !ts.IsZero() {
			run.Coordinator.StartSession(ts)
			started = true
		}
		run.Clock.Observe(ev.OccurredAt())
		if err := run.Coordinator.Handle(ctx, ev); err != nil {
			if errors.Is(err, coordinator.ErrUnsupportedEvent) {
				unsupported++
				return nil
			}
			return err
		}
		return nil
	})

	for range stats.Malformed {
		s.metrics.Invalid()
	}
	run.Analysis.EventsProcessed += stats.Events - unsupported
	run.Analysis.EventsSkipped += stats.Malformed + unsupported

	if err != nil {
		return fmt.Errorf("replay of %s stopped: %w", run.Source, err)
	}

	s.logger.Info("capture replayed",
		"source", run.Source,
		"events", stats.Events,
		"malformed", stats.Malformed,
	)
	return nil
}

// ReportStep turns the coordinator state into the run's analysis.
type ReportStep struct{}

// NewReportStep creates a report step.
func NewReportStep() *ReportStep {
	return &ReportStep{}
}

// Name returns the step name.
func (s *ReportStep) Name() string {
	return "report"
}

// Do fills in the report and alerts.
func (s *ReportStep) Do(_ context.Context, run *Run) error {
	run.Analysis.Report = run.Coordinator.GenerateReport()
	run.Analysis.Alerts = run.Coordinator.Alerts()
	return nil
}

// ReportSaver stores generated reports. *database.DB implements it.
type ReportSaver interface {
	SaveReport(ctx context.Context, source string, report *model.SurveillanceReport) (int64, error)
}

// SaveStep stores the run's report for the history command.
type SaveStep struct {
	saver ReportSaver
}

// NewSaveStep creates a step that saves reports with saver.
func NewSaveStep(saver ReportSaver) *SaveStep {
	return &SaveStep{saver: saver}
}

// Name returns the step name.
func (s *SaveStep) Name() string {
	return "save"
}

// Do saves the report. A run without a report is an error.
func (s *SaveStep) Do(ctx context.Context, run *Run) error {
	if run.Analysis.Report == nil {
		return ErrNoReport
	}
	id, err := s.saver.SaveReport(ctx, run.Source, run.Analysis.Report)
	if err != nil {
		return fmt.Errorf("failed to save report for %s: %w", run.Source, err)
	}
	run.ReportID = id
	return nil
}
