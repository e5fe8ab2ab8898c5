package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/report"
)

// Run is the state of one capture replay as it moves through the pipeline.
type Run struct {
	// Source is the capture path or another name for the event source.
	Source string

	// Clock drives the coordinator's notion of time during replay.
	Clock *ReplayClock

	// Coordinator holds the detection state built from this source only.
	Coordinator *coordinator.Coordinator

	// Analysis is the output handed to report writers.
	Analysis *report.Analysis

	// ReportID is the database id of the saved report, 0 when not saved.
	ReportID int64

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string
}

// NewRun creates a run with a fresh Coordinator driven by a replay clock.
// The given options are applied after the clock, so WithClock in opts wins.
func NewRun(source string, opts ...coordinator.Option) *Run {
	clock := NewReplayClock(time.Now)
	all := append([]coordinator.Option{coordinator.WithClock(clock.Now)}, opts...)
	return &Run{
		Source:      source,
		Clock:       clock,
		Coordinator: coordinator.New(all...),
		Analysis:    &report.Analysis{Source: source},
	}
}

// Close releases the coordinator.
func (r *Run) Close() {
	r.Coordinator.Close()
}

// fail records err on the analysis.
func (r *Run) fail(err error) {
	if r.Analysis.Error == "" {
		r.Analysis.Error = err.Error()
	}
}

// Step is one stage of a replay.
type Step interface {
	// Do executes the step against run. A returned error stops the
	// pipeline unless it was created WithContinueOnError.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes Steps in order against a Run.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing later steps after one fails.
// The first failure is still recorded on the run's analysis.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence, checking for cancellation before each.
// It returns the first error unless the pipeline continues on error.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			run.fail(ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"source", run.Source,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"source", run.Source,
				"error", err,
			)
			run.fail(err)
			if !p.continueOnError {
				return err
			}
		}

		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
