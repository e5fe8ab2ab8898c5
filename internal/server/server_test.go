package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/surveilscope/internal/config"
	"github.com/nao1215/surveilscope/internal/coordinator"
	"github.com/nao1215/surveilscope/internal/log"
	"github.com/nao1215/surveilscope/internal/metrics"
	"github.com/nao1215/surveilscope/internal/model"
)

var baseTime = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

// beaconEvents are three requests to the same origin five seconds apart.
const beaconEvents = `[
	{"kind":"request","data":{"requestId":"1","url":"https://beacon.example.org/ping","timestamp":"2025-03-14T09:00:00Z"}},
	{"kind":"request","data":{"requestId":"2","url":"https://beacon.example.org/ping","timestamp":"2025-03-14T09:00:05Z"}},
	{"kind":"request","data":{"requestId":"3","url":"https://beacon.example.org/ping","timestamp":"2025-03-14T09:00:10Z"}}
]`

// mixedBatch holds one valid request and one with an unparseable timestamp.
const mixedBatch = `[
	{"kind":"request","data":{"requestId":"1","url":"https://beacon.example.org/ping","timestamp":"2025-03-14T09:00:00Z"}},
	{"kind":"request","data":{"requestId":"2","url":"https://beacon.example.org/ping","timestamp":"yesterday"}}
]`

const apiAccessEvent = `{"kind":"api-access","data":{"origin":"shop.example","method":"canvas.toDataURL","timestamp":"2025-03-14T09:01:00Z"}}`

// newTestServer returns a server over a coordinator with a fixed clock.
func newTestServer(t *testing.T, opts ...Option) (*Server, *metrics.Metrics) {
	t.Helper()
	coord := coordinator.New(
		coordinator.WithClock(func() time.Time { return baseTime }),
		coordinator.WithLogger(log.Discard()),
	)
	t.Cleanup(coord.Close)

	reg := prometheus.NewRegistry()
	m := metrics.NewWith(reg, reg)
	defaults := []Option{WithLogger(log.Discard()), WithMetrics(m)}
	s, err := New(coord, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(s.Close)
	return s, m
}

// do sends a request to the server's handler and returns the recorder.
func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a JSON response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", rec.Body.String(), err)
	}
}

// TestHealthz tests the liveness endpoint.
func TestHealthz(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("got %d %q", rec.Code, rec.Body.String())
	}
}

// TestPostEvents tests event ingestion over HTTP.
func TestPostEvents(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		body         string
		wantStatus   int
		wantAccepted int
		wantInvalid  float64
	}{
		{name: "single document", body: apiAccessEvent, wantStatus: http.StatusAccepted, wantAccepted: 1},
		{name: "array", body: beaconEvents, wantStatus: http.StatusAccepted, wantAccepted: 3},
		{name: "mixed batch", body: mixedBatch, wantStatus: http.StatusAccepted, wantAccepted: 1, wantInvalid: 1},
		{name: "malformed array", body: `[{"kind":"request"`, wantStatus: http.StatusBadRequest, wantInvalid: 1},
		{name: "invalid document", body: `{"kind":"dns","data":{}}`, wantStatus: http.StatusBadRequest, wantInvalid: 1},
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, m := newTestServer(t)
			rec := do(t, s, http.MethodPost, "/api/v1/events", tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if tc.wantStatus == http.StatusAccepted {
				var result IngestResult
				decode(t, rec, &result)
				if result.Accepted != tc.wantAccepted {
					t.Errorf("expected %d accepted, got %d", tc.wantAccepted, result.Accepted)
				}
				if float64(result.Invalid) != tc.wantInvalid {
					t.Errorf("expected %v invalid in result, got %d", tc.wantInvalid, result.Invalid)
				}
			}
			if got := testutil.ToFloat64(m.EventsInvalidTotal); got != tc.wantInvalid {
				t.Errorf("expected %v invalid, got %v", tc.wantInvalid, got)
			}
		})
	}

	t.Run("body too large", func(t *testing.T) {
		t.Parallel()

		s, _ := newTestServer(t, WithMaxBodyBytes(16))
		rec := do(t, s, http.MethodPost, "/api/v1/events", apiAccessEvent)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rec.Code)
		}
	})
}

// TestAlertsAndReport tests the alert and report endpoints after ingestion.
func TestAlertsAndReport(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	if rec := do(t, s, http.MethodPost, "/api/v1/events", beaconEvents); rec.Code != http.StatusAccepted {
		t.Fatalf("ingest failed: %d", rec.Code)
	}

	testCases := []struct {
		name       string
		path       string
		wantStatus int
		wantCount  int
	}{
		{name: "all alerts", path: "/api/v1/alerts", wantStatus: http.StatusOK, wantCount: 1},
		{name: "limit zero", path: "/api/v1/alerts?limit=0", wantStatus: http.StatusOK, wantCount: 0},
		{name: "limit larger than count", path: "/api/v1/alerts?limit=5", wantStatus: http.StatusOK, wantCount: 1},
		{name: "bad limit", path: "/api/v1/alerts?limit=-1", wantStatus: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, s, http.MethodGet, tc.path, "")
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			var alerts []model.Alert
			decode(t, rec, &alerts)
			if len(alerts) != tc.wantCount {
				t.Errorf("expected %d alerts, got %d", tc.wantCount, len(alerts))
			}
		})
	}

	t.Run("report", func(t *testing.T) {
		t.Parallel()

		rec := do(t, s, http.MethodGet, "/api/v1/report", "")
		var report model.SurveillanceReport
		decode(t, rec, &report)
		if !reflect.DeepEqual(report.BeaconingOrigins, []string{"beacon.example.org"}) {
			t.Errorf("got beaconing origins %v", report.BeaconingOrigins)
		}
	})

	t.Run("exfiltration overview", func(t *testing.T) {
		t.Parallel()

		rec := do(t, s, http.MethodGet, "/api/v1/exfiltration", "")
		var overview coordinator.ExfiltrationOverview
		decode(t, rec, &overview)
		if len(overview.BeaconingPatterns) != 1 {
			t.Errorf("expected 1 beaconing pattern, got %d", len(overview.BeaconingPatterns))
		}
	})
}

// TestTimelineAndForensics tests the fingerprint timeline endpoints.
func TestTimelineAndForensics(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/events", apiAccessEvent)

	testCases := []struct {
		name        string
		path        string
		wantStatus  int
		wantEntries int
		wantNew     []string
	}{
		{name: "known origin", path: "/api/v1/timeline/shop.example", wantStatus: http.StatusOK, wantEntries: 1},
		{name: "unknown origin", path: "/api/v1/timeline/other.example", wantStatus: http.StatusOK, wantEntries: 0},
		{
			name:        "new attributes since",
			path:        "/api/v1/timeline/shop.example?since=2025-03-14T09:00:30Z",
			wantStatus:  http.StatusOK,
			wantEntries: 1,
			wantNew:     []string{"canvas.toDataURL"},
		},
		{name: "bad since", path: "/api/v1/timeline/shop.example?since=yesterday", wantStatus: http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := do(t, s, http.MethodGet, tc.path, "")
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}
			if tc.wantStatus != http.StatusOK {
				return
			}
			var resp timelineResponse
			decode(t, rec, &resp)
			if len(resp.Entries) != tc.wantEntries {
				t.Errorf("expected %d entries, got %d", tc.wantEntries, len(resp.Entries))
			}
			if tc.wantNew != nil && !reflect.DeepEqual(resp.NewAttributes, tc.wantNew) {
				t.Errorf("got new attributes %v", resp.NewAttributes)
			}
		})
	}

	t.Run("forensics", func(t *testing.T) {
		t.Parallel()

		rec := do(t, s, http.MethodGet, "/api/v1/forensics", "")
		var summary struct {
			TotalOrigins int `json:"totalOrigins"`
		}
		decode(t, rec, &summary)
		if summary.TotalOrigins != 1 {
			t.Errorf("expected 1 origin, got %d", summary.TotalOrigins)
		}
	})
}

// TestExportImportAndClear tests moving state between servers and clearing it.
func TestExportImportAndClear(t *testing.T) {
	t.Parallel()

	source, _ := newTestServer(t)
	do(t, source, http.MethodPost, "/api/v1/events", beaconEvents)

	rec := do(t, source, http.MethodGet, "/api/v1/export", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export failed: %d", rec.Code)
	}
	if !strings.HasPrefix(rec.Header().Get("Content-Disposition"), "attachment;") {
		t.Errorf("unexpected Content-Disposition %q", rec.Header().Get("Content-Disposition"))
	}
	exported := rec.Body.String()

	target, _ := newTestServer(t)
	if rec := do(t, target, http.MethodPost, "/api/v1/import", exported); rec.Code != http.StatusNoContent {
		t.Fatalf("import failed: %d %s", rec.Code, rec.Body.String())
	}

	var alerts []model.Alert
	decode(t, do(t, target, http.MethodGet, "/api/v1/alerts", ""), &alerts)
	if len(alerts) != 1 {
		t.Errorf("expected imported alert, got %d", len(alerts))
	}

	if rec := do(t, target, http.MethodDelete, "/api/v1/data", ""); rec.Code != http.StatusNoContent {
		t.Fatalf("clear failed: %d", rec.Code)
	}
	decode(t, do(t, target, http.MethodGet, "/api/v1/alerts", ""), &alerts)
	if len(alerts) != 0 {
		t.Errorf("expected no alerts after clear, got %d", len(alerts))
	}

	t.Run("rejects other major version", func(t *testing.T) {
		t.Parallel()

		rec := do(t, target, http.MethodPost, "/api/v1/import", `{"version":"2.0.0"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()

		rec := do(t, target, http.MethodPost, "/api/v1/import", `{`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})
}

// TestSettings tests reading and updating detection settings.
func TestSettings(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name          string
		body          string
		wantStatus    int
		wantThreshold int
	}{
		{name: "update threshold", body: `{"riskThreshold":70}`, wantStatus: http.StatusOK, wantThreshold: 70},
		{name: "invalid threshold", body: `{"riskThreshold":500}`, wantStatus: http.StatusBadRequest, wantThreshold: config.DefaultRiskThreshold},
		{name: "malformed", body: `[`, wantStatus: http.StatusBadRequest, wantThreshold: config.DefaultRiskThreshold},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s, _ := newTestServer(t)
			rec := do(t, s, http.MethodPut, "/api/v1/settings", tc.body)
			if rec.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rec.Code)
			}

			var settings config.Settings
			decode(t, do(t, s, http.MethodGet, "/api/v1/settings", ""), &settings)
			if settings.RiskThreshold != tc.wantThreshold {
				t.Errorf("expected threshold %d, got %d", tc.wantThreshold, settings.RiskThreshold)
			}
		})
	}
}

// TestMetricsEndpoint tests that counters are exposed.
func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	do(t, s, http.MethodPost, "/api/v1/events", apiAccessEvent)

	rec := do(t, s, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "surveilscope_events_total") {
		t.Error("expected events counter in metrics output")
	}
}

// TestStream tests that alerts reach websocket clients.
func TestStream(t *testing.T) {
	t.Parallel()

	s, _ := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to dial stream: %v", err)
	}
	defer resp.Body.Close()
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for s.hub.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	post, err := http.Post(ts.URL+"/api/v1/events", "application/json", bytes.NewBufferString(beaconEvents))
	if err != nil {
		t.Fatalf("failed to post events: %v", err)
	}
	_ = post.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg streamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("failed to read stream: %v", err)
		}
		if msg.Type != streamAlert {
			continue
		}
		if msg.Alert == nil || msg.Alert.Type != model.AlertBeaconing {
			t.Errorf("unexpected alert message %+v", msg)
		}
		return
	}
}

type fakeSubscriber struct {
	subject string
	handler nats.MsgHandler
}

func (f *fakeSubscriber) Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.subject = subject
	f.handler = cb
	return &nats.Subscription{Subject: subject}, nil
}

// TestNATSIngest tests event ingestion from the message bus.
func TestNATSIngest(t *testing.T) {
	t.Parallel()

	s, m := newTestServer(t)
	sub := &fakeSubscriber{}
	if _, err := s.subscribeNATS(sub, config.DefaultEventSubject); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.subject != config.DefaultEventSubject {
		t.Errorf("subscribed to %q", sub.subject)
	}

	sub.handler(&nats.Msg{Subject: config.DefaultEventSubject, Data: []byte(beaconEvents)})
	sub.handler(&nats.Msg{Subject: config.DefaultEventSubject, Data: []byte("garbage")})
	sub.handler(&nats.Msg{Subject: config.DefaultEventSubject, Data: []byte(mixedBatch)})

	var alerts []model.Alert
	decode(t, do(t, s, http.MethodGet, "/api/v1/alerts", ""), &alerts)
	if len(alerts) != 1 {
		t.Errorf("expected 1 alert from bus events, got %d", len(alerts))
	}
	if got := testutil.ToFloat64(m.EventsInvalidTotal); got != 2 {
		t.Errorf("expected 2 invalid documents, got %v", got)
	}
}

// TestRun tests serving and graceful shutdown.
func TestRun(t *testing.T) {
	t.Parallel()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	s, _ := newTestServer(t, WithPruneInterval(10*time.Millisecond), WithShutdownTimeout(time.Second))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx, addr) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never came up: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}
