package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/database"
	"github.com/nao1215/surveilscope/internal/event"
	"github.com/nao1215/surveilscope/internal/log"
	"github.com/nao1215/surveilscope/internal/model"
)

// beaconCapture holds three requests to one endpoint five seconds apart and
// one malformed line.
var beaconCapture = strings.Join([]string{
	`{"kind":"request","data":{"requestId":"1","url":"https://beacon.example.org/ping","timestamp":1741942800000}}`,
	`{"kind":"request","data":{"requestId":"2","url":"https://beacon.example.org/ping","timestamp":1741942805000}}`,
	`not json`,
	`{"kind":"request","data":{"requestId":"3","url":"https://beacon.example.org/ping","timestamp":1741942810000}}`,
}, "\n")

// writeFile writes content to name inside dir.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// newTestConfig returns a default config whose database lives in a temporary directory.
func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.NewConfig()
	cfg.DBDir = t.TempDir()
	return cfg
}

// seedState replays beaconCapture into a coordinator backed by the
// database in cfg.DBDir, so the snapshots are stored.
func seedState(t *testing.T, cfg *config.Config) {
	t.Helper()
	db, err := openDB(cfg, true)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	coord := coordinator.New(
		coordinator.WithStore(db),
		coordinator.WithLogger(log.Discard()),
	)
	ctx := context.Background()
	for _, line := range strings.Split(beaconCapture, "\n") {
		ev, err := event.Decode([]byte(line))
		if err != nil {
			continue
		}
		if err := coord.Handle(ctx, ev); err != nil {
			t.Fatalf("failed to handle event: %v", err)
		}
	}
	coord.Flush()
	coord.Close()
}

// seedReport saves one report for source and returns its ID.
func seedReport(t *testing.T, cfg *config.Config, source string, report *model.SurveillanceReport) int64 {
	t.Helper()
	db, err := database.Open(cfg.DBDir, database.DefaultOptions())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	id, err := db.SaveReport(context.Background(), source, report)
	if err != nil {
		t.Fatalf("failed to save report: %v", err)
	}
	return id
}
