package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/database"
	"github.com/nao1215/surveilscope/internal/log"
)

// TestNewAnalyzeCmd tests the analyze command flags.
func TestNewAnalyzeCmd(t *testing.T) {
	t.Parallel()

	cmd := NewAnalyzeCmd()
	flags := map[string]string{
		"batch":    "b",
		"json":     "j",
		"markdown": "m",
		"output":   "o",
		"save":     "s",
	}
	for name, shorthand := range flags {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			t.Errorf("expected flag %q", name)
			continue
		}
		if flag.Shorthand != shorthand {
			t.Errorf("flag %q: expected shorthand %q, got %q", name, shorthand, flag.Shorthand)
		}
	}
}

// TestAnalyzeConfigValidation tests the option combinations analyze rejects.
func TestAnalyzeConfigValidation(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		modify func(*config.Config)
		want   error
	}{
		{
			name:   "no captures",
			modify: func(c *config.Config) { c.Targets = nil },
			want:   config.ErrNoTarget,
		},
		{
			name:   "zero batch size",
			modify: func(c *config.Config) { c.BatchSize = 0 },
			want:   config.ErrInvalidBatchSize,
		},
		{
			name: "json and markdown",
			modify: func(c *config.Config) {
				c.JSONReport = true
				c.MarkdownReport = true
			},
			want: config.ErrConflictingReportFormats,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := config.NewConfig()
			cfg.Targets = []string{"capture.jsonl"}
			tc.modify(cfg)
			if err := cfg.ValidateAnalyze(); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// TestRunAnalyze tests replaying captures end to end.
func TestRunAnalyze(t *testing.T) {
	t.Parallel()

	t.Run("json report", func(t *testing.T) {
		t.Parallel()
		cfg := newTestConfig(t)
		cfg.JSONReport = true
		cfg.Targets = []string{writeFile(t, t.TempDir(), "session.jsonl", beaconCapture)}

		var out bytes.Buffer
		if err := runAnalyze(context.Background(), cfg, &out, log.Discard()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var doc struct {
			Version         string `json:"version"`
			EventsProcessed int    `json:"eventsProcessed"`
			EventsSkipped   int    `json:"eventsSkipped"`
		}
		if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
			t.Fatalf("invalid JSON output: %v\n%s", err, out.String())
		}
		if doc.Version == "" {
			t.Error("expected version in the report")
		}
		if doc.EventsProcessed != 3 || doc.EventsSkipped != 1 {
			t.Errorf("expected 3 processed and 1 skipped, got %d and %d",
				doc.EventsProcessed, doc.EventsSkipped)
		}
		if !strings.Contains(out.String(), "beacon.example.org") {
			t.Error("expected the beaconing origin in the report")
		}
	})

	t.Run("text report for several captures", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		cfg := newTestConfig(t)
		cfg.BatchSize = 2
		cfg.Targets = []string{
			writeFile(t, dir, "a.jsonl", beaconCapture),
			writeFile(t, dir, "b.jsonl", beaconCapture),
		}

		var out bytes.Buffer
		if err := runAnalyze(context.Background(), cfg, &out, log.Discard()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := strings.Count(out.String(), "SURVEILSCOPE REPORT"); got != 2 {
			t.Errorf("expected 2 reports, got %d", got)
		}
	})

	t.Run("missing capture is reported and fails the run", func(t *testing.T) {
		t.Parallel()
		cfg := newTestConfig(t)
		cfg.Targets = []string{filepath.Join(t.TempDir(), "missing.jsonl")}

		var out bytes.Buffer
		err := runAnalyze(context.Background(), cfg, &out, log.Discard())
		if err == nil || !strings.Contains(err.Error(), "1 of 1") {
			t.Fatalf("expected partial failure error, got %v", err)
		}
		if !strings.Contains(out.String(), "Error:") {
			t.Error("expected the failure in the report")
		}
	})

	t.Run("save stores the report", func(t *testing.T) {
		t.Parallel()
		cfg := newTestConfig(t)
		cfg.SaveToDB = true
		capture := writeFile(t, t.TempDir(), "session.jsonl", beaconCapture)
		cfg.Targets = []string{capture}

		if err := runAnalyze(context.Background(), cfg, &bytes.Buffer{}, log.Discard()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		db, err := database.Open(cfg.DBDir, database.Options{})
		if err != nil {
			t.Fatalf("expected database to exist: %v", err)
		}
		defer db.Close()
		reports, err := db.ListReports(context.Background(), capture)
		if err != nil {
			t.Fatalf("failed to list reports: %v", err)
		}
		if len(reports) != 1 {
			t.Errorf("expected 1 saved report, got %d", len(reports))
		}
	})
}
