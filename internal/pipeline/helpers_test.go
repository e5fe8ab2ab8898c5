package pipeline

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/log"
)

var baseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// beaconCapture holds three requests five seconds apart, one malformed line,
// a comment and a tracker hit without a timestamp.
var beaconCapture = strings.Join([]string{
	`# recorded 2025-03-14`,
	`{"kind":"request","data":{"requestId":"1","url":"https://beacon.example.org/ping","tabId":1,"timestamp":1741942800000}}`,
	`{"kind":"request","data":{"requestId":"2","url":"https://beacon.example.org/ping","tabId":1,"timestamp":1741942805000}}`,
	`not json`,
	``,
	`{"kind":"request","data":{"requestId":"3","url":"https://beacon.example.org/ping","tabId":1,"timestamp":1741942810000}}`,
	`{"kind":"request","data":{"requestId":"4","url":"https://www.google-analytics.com/g/hit?gclid=abc","tabId":1}}`,
}, "\n")

// writeCapture writes content to a capture file in a temporary directory.
func writeCapture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write capture: %v", err)
	}
	return path
}

// newTestReader returns a capture reader that logs nowhere.
func newTestReader(t *testing.T, opts ...CaptureOption) *CaptureReader {
	t.Helper()
	reader, err := NewCaptureReader(append([]CaptureOption{WithCaptureLogger(log.Discard())}, opts...)...)
	if err != nil {
		t.Fatalf("failed to create capture reader: %v", err)
	}
	return reader
}

// newTestRun returns a run with a quiet coordinator closed at cleanup.
func newTestRun(t *testing.T, source string) *Run {
	t.Helper()
	run := NewRun(source, coordinator.WithLogger(log.Discard()))
	t.Cleanup(run.Close)
	return run
}

// memoryOpener serves captures from a map instead of the filesystem.
func memoryOpener(captures map[string]string) func(string) (io.ReadCloser, error) {
	return func(source string) (io.ReadCloser, error) {
		content, ok := captures[source]
		if !ok {
			return nil, os.ErrNotExist
		}
		return io.NopCloser(strings.NewReader(content)), nil
	}
}
