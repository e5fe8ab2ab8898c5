package pipeline

import (
	"context"
	"errors"
	"os"
	"reflect"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/surveilscope/internal/database"
	"github.com/nao1215/surveilscope/internal/log"
	"github.com/nao1215/surveilscope/internal/metrics"
	"github.com/nao1215/surveilscope/internal/model"
)

// TestReplayStep tests replaying a capture into the run's coordinator.
func TestReplayStep(t *testing.T) {
	t.Parallel()

	t.Run("replays with event time", func(t *testing.T) {
		t.Parallel()

		reg := prometheus.NewRegistry()
		m := metrics.NewWith(reg, reg)
		step := NewReplayStep(newTestReader(t),
			WithOpener(memoryOpener(map[string]string{"beacon": beaconCapture})),
			WithReplayMetrics(m),
			WithReplayLogger(log.Discard()),
		)

		run := newTestRun(t, "beacon")
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if run.Analysis.EventsProcessed != 4 || run.Analysis.EventsSkipped != 1 {
			t.Errorf("got processed=%d skipped=%d, expected 4 and 1",
				run.Analysis.EventsProcessed, run.Analysis.EventsSkipped)
		}
		if got := testutil.ToFloat64(m.EventsInvalidTotal); got != 1 {
			t.Errorf("expected 1 invalid event counted, got %v", got)
		}

		alerts := run.Coordinator.Alerts()
		if len(alerts) != 1 || alerts[0].Type != model.AlertBeaconing {
			t.Fatalf("expected one beaconing alert, got %+v", alerts)
		}
		if want := baseTime.Add(10 * time.Second); !alerts[0].Timestamp.Equal(want) {
			t.Errorf("expected alert at %v, got %v", want, alerts[0].Timestamp)
		}
		if want := baseTime.Add(10 * time.Second); !run.Clock.Now().Equal(want) {
			t.Errorf("expected clock at %v, got %v", want, run.Clock.Now())
		}

		report := run.Coordinator.GenerateReport()
		if report.TotalTrackers == 0 {
			t.Error("expected the tracker hit to be recorded")
		}
		if !reflect.DeepEqual(report.BeaconingOrigins, []string{"beacon.example.org"}) {
			t.Errorf("got beaconing origins %v", report.BeaconingOrigins)
		}
	})

	t.Run("session starts at the first recorded event", func(t *testing.T) {
		t.Parallel()

		capture := `{"kind":"api-access","data":{"origin":"shop.example","method":"canvas.toDataURL","timestamp":"2025-03-14T09:00:00Z"}}
{"kind":"api-access","data":{"origin":"shop.example","method":"navigator.userAgent","timestamp":"2025-03-14T09:00:30Z"}}`
		step := NewReplayStep(newTestReader(t),
			WithOpener(memoryOpener(map[string]string{"fp": capture})),
			WithReplayLogger(log.Discard()),
		)
		run := newTestRun(t, "fp")
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := run.Coordinator.SessionStart(); !got.Equal(baseTime) {
			t.Errorf("expected session start %v, got %v", baseTime, got)
		}
		entries := run.Coordinator.TimelineForOrigin("shop.example")
		if len(entries) != 2 {
			t.Fatalf("expected 2 timeline entries, got %d", len(entries))
		}
		for _, entry := range entries {
			if entry.SessionElapsed < 0 {
				t.Errorf("%s: negative session elapsed %v", entry.Attribute, entry.SessionElapsed)
			}
		}
		if entries[1].SessionElapsed != 30*time.Second {
			t.Errorf("expected 30s elapsed, got %v", entries[1].SessionElapsed)
		}
		want := []string{"canvas.toDataURL", "navigator.userAgent"}
		if got := run.Coordinator.NewAttributesSince("shop.example", time.Time{}); !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, expected %v", got, want)
		}
	})

	t.Run("missing capture", func(t *testing.T) {
		t.Parallel()

		step := NewReplayStep(newTestReader(t),
			WithOpener(memoryOpener(nil)),
			WithReplayLogger(log.Discard()),
		)
		run := newTestRun(t, "missing")
		if err := step.Do(context.Background(), run); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})

	t.Run("reads from disk by default", func(t *testing.T) {
		t.Parallel()

		path := writeCapture(t, "capture.jsonl", beaconCapture)
		step := NewReplayStep(newTestReader(t), WithReplayLogger(log.Discard()))
		run := newTestRun(t, path)
		if err := step.Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.Analysis.EventsProcessed != 4 {
			t.Errorf("expected 4 events, got %d", run.Analysis.EventsProcessed)
		}
	})
}

// TestReportStep tests that the analysis receives the report and alerts.
func TestReportStep(t *testing.T) {
	t.Parallel()

	run := newTestRun(t, "empty")
	step := NewReportStep()
	if step.Name() != "report" {
		t.Errorf("unexpected name %q", step.Name())
	}
	if err := step.Do(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if run.Analysis.Report == nil {
		t.Fatal("expected a report")
	}
	if !run.Analysis.Report.IsClean() {
		t.Error("expected a clean report for an empty run")
	}
}

type failingSaver struct{ err error }

func (f failingSaver) SaveReport(context.Context, string, *model.SurveillanceReport) (int64, error) {
	return 0, f.err
}

// TestSaveStep tests saving reports to the database.
func TestSaveStep(t *testing.T) {
	t.Parallel()

	t.Run("saves to database", func(t *testing.T) {
		t.Parallel()

		db, err := database.Open(t.TempDir(), database.DefaultOptions())
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })

		run := newTestRun(t, "capture.jsonl")
		if err := NewReportStep().Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if err := NewSaveStep(db).Do(context.Background(), run); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if run.ReportID == 0 {
			t.Error("expected a report id")
		}

		saved, err := db.GetReportByID(context.Background(), run.ReportID)
		if err != nil {
			t.Fatalf("failed to load report: %v", err)
		}
		if saved.PrivacyScore != run.Analysis.Report.PrivacyScore {
			t.Errorf("got privacy score %d, expected %d", saved.PrivacyScore, run.Analysis.Report.PrivacyScore)
		}
	})

	t.Run("requires a report", func(t *testing.T) {
		t.Parallel()

		run := newTestRun(t, "capture.jsonl")
		if err := NewSaveStep(failingSaver{}).Do(context.Background(), run); !errors.Is(err, ErrNoReport) {
			t.Errorf("expected ErrNoReport, got %v", err)
		}
	})

	t.Run("wraps saver errors", func(t *testing.T) {
		t.Parallel()

		errDisk := errors.New("disk full")
		run := newTestRun(t, "capture.jsonl")
		run.Analysis.Report = run.Coordinator.GenerateReport()
		if err := NewSaveStep(failingSaver{err: errDisk}).Do(context.Background(), run); !errors.Is(err, errDisk) {
			t.Errorf("expected disk error, got %v", err)
		}
	})
}
