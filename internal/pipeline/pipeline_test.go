package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/nao1215/surveilscope/internal/log"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *Run) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *Run) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies WithContinueOnError option", func(t *testing.T) {
		t.Parallel()

		p := New(WithContinueOnError(true))
		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
	})
}

// TestPipelineAddStep tests adding steps and listing their names.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	if p.StepCount() != 3 {
		t.Errorf("expected 3 steps, got %d", p.StepCount())
	}
	if got := p.StepNames(); !reflect.DeepEqual(got, []string{"first", "second", "third"}) {
		t.Errorf("got step names %v", got)
	}
}

// TestPipelineExecute tests step ordering, error handling and cancellation.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	errStep := errors.New("step failed")

	t.Run("runs steps in order", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(log.Discard()))
		first := &mockStep{name: "first"}
		second := &mockStep{name: "second"}
		p.AddSteps(first, second)

		run := newTestRun(t, "capture.jsonl")
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if first.callCount != 1 || second.callCount != 1 {
			t.Errorf("expected one call each, got %d and %d", first.callCount, second.callCount)
		}
		if !reflect.DeepEqual(run.PerformedSteps, []string{"first", "second"}) {
			t.Errorf("got performed steps %v", run.PerformedSteps)
		}
	})

	t.Run("stops on error", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(log.Discard()))
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *Run) error { return errStep }}
		after := &mockStep{name: "after"}
		p.AddSteps(failing, after)

		run := newTestRun(t, "capture.jsonl")
		err := p.Execute(context.Background(), run)
		if !errors.Is(err, errStep) {
			t.Fatalf("expected step error, got %v", err)
		}
		if after.callCount != 0 {
			t.Error("expected later step to be skipped")
		}
		if run.Analysis.Error != errStep.Error() {
			t.Errorf("expected error recorded on analysis, got %q", run.Analysis.Error)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(log.Discard()), WithContinueOnError(true))
		failing := &mockStep{name: "failing", doFunc: func(context.Context, *Run) error { return errStep }}
		after := &mockStep{name: "after"}
		p.AddSteps(failing, after)

		run := newTestRun(t, "capture.jsonl")
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if after.callCount != 1 {
			t.Error("expected later step to run")
		}
		if run.Analysis.Error == "" {
			t.Error("expected the failure to be recorded")
		}
	})

	t.Run("respects cancellation", func(t *testing.T) {
		t.Parallel()

		p := New(WithLogger(log.Discard()))
		step := &mockStep{name: "never"}
		p.AddStep(step)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		run := newTestRun(t, "capture.jsonl")
		if err := p.Execute(ctx, run); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step.callCount != 0 {
			t.Error("expected step not to run")
		}
	})
}
