package ledger

import (
	"encoding/json"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/nao1215/surveilscope/internal/model"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestTrackingLedgerRecord(t *testing.T) {
	t.Parallel()

	t.Run("known tracker with two methods over two hours", func(t *testing.T) {
		t.Parallel()
		l := NewTrackingLedger(nil, func(origin string) bool { return origin == "tracker.example" })

		var profile *TrackingProfile
		for i := range 5 {
			profile = l.Record(Activity{
				Origin:        "tracker.example",
				Type:          ActivityCookie,
				Timestamp:     t0.Add(time.Duration(i) * 30 * time.Minute),
				Cookie:        i == 0,
				URLParameters: i == 1,
			})
		}

		if got := profile.TrackingMethods.Items(); !reflect.DeepEqual(got, []string{MethodCookies, MethodURLParameters}) {
			t.Errorf("unexpected methods %v", got)
		}
		if profile.RiskScore != 52 {
			t.Errorf("expected risk score 52, got %d", profile.RiskScore)
		}
		if !profile.FirstSeen.Equal(t0) || !profile.LastSeen.Equal(t0.Add(2*time.Hour)) {
			t.Errorf("unexpected span %v - %v", profile.FirstSeen, profile.LastSeen)
		}
		if l.Score(profile) != profile.RiskScore {
			t.Error("expected rescoring an unchanged profile to give the same score")
		}
	})

	t.Run("every flag maps to its method", func(t *testing.T) {
		t.Parallel()
		l := NewTrackingLedger(nil, nil)
		profile := l.Record(Activity{
			Origin:          "x.example",
			Type:            ActivityRequest,
			Timestamp:       t0,
			ThirdParty:      true,
			URLParameters:   true,
			Cookie:          true,
			ResponseHeaders: true,
		})
		want := []string{MethodThirdPartyTracker, MethodURLParameters, MethodCookies, MethodResponseHeaders}
		if got := profile.TrackingMethods.Items(); !reflect.DeepEqual(got, want) {
			t.Errorf("got %v, expected %v", got, want)
		}
		if profile.RiskScore != 41 {
			t.Errorf("expected 41, got %d", profile.RiskScore)
		}
	})

	t.Run("stored activities are bounded", func(t *testing.T) {
		t.Parallel()
		l := NewTrackingLedger(nil, nil)
		var profile *TrackingProfile
		for i := range MaxStoredActivities + 5 {
			profile = l.Record(Activity{Origin: "x.example", URL: fmt.Sprint(i), Timestamp: t0})
		}
		if len(profile.Activities) != MaxStoredActivities {
			t.Errorf("expected %d stored activities, got %d", MaxStoredActivities, len(profile.Activities))
		}
		if profile.ActivityCount != MaxStoredActivities+5 {
			t.Errorf("expected count %d, got %d", MaxStoredActivities+5, profile.ActivityCount)
		}
		if profile.Activities[0].URL != "5" {
			t.Errorf("expected oldest activities to be dropped, first is %q", profile.Activities[0].URL)
		}
	})
}

func TestTrackingLedgerExportImport(t *testing.T) {
	t.Parallel()

	l := NewTrackingLedger(nil, nil)
	l.Record(Activity{Origin: "a.example", Timestamp: t0, Cookie: true})
	l.Record(Activity{Origin: "b.example", Timestamp: t0, URLParameters: true})

	exported := l.Export()
	exported[0].Value.TrackingMethods.Add("mutated")
	if p, _ := l.Get("a.example"); p.TrackingMethods.Has("mutated") {
		t.Fatal("expected export to be a deep copy")
	}

	data, err := json.Marshal(l.Export())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded []model.Pair[string, *TrackingProfile]
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	restored := NewTrackingLedger(nil, nil)
	restored.Import(decoded)
	again, err := json.Marshal(restored.Export())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(again) != string(data) {
		t.Errorf("round trip changed state\n got: %s\nwant: %s", again, data)
	}
	if restored.Len() != 2 {
		t.Errorf("expected 2 profiles, got %d", restored.Len())
	}
}

// TestLedgersIgnoreOutOfOrderTimestamps tests that a late event never moves
// lastSeen backwards and only ever widens the observed span.
func TestLedgersIgnoreOutOfOrderTimestamps(t *testing.T) {
	t.Parallel()

	times := []time.Time{t0, t0.Add(3 * time.Hour), t0.Add(-time.Hour)}

	t.Run("tracking", func(t *testing.T) {
		t.Parallel()
		l := NewTrackingLedger(nil, func(string) bool { return true })

		previousScore := 0
		var profile *TrackingProfile
		for _, ts := range times {
			profile = l.Record(Activity{Origin: "www.google-analytics.com", Type: ActivityRequest, Timestamp: ts, ThirdParty: true})
			if profile.RiskScore < previousScore {
				t.Errorf("risk score dropped from %d to %d", previousScore, profile.RiskScore)
			}
			previousScore = profile.RiskScore
		}
		if !profile.LastSeen.Equal(t0.Add(3 * time.Hour)) {
			t.Errorf("lastSeen moved to %v", profile.LastSeen)
		}
		if !profile.FirstSeen.Equal(t0.Add(-time.Hour)) {
			t.Errorf("expected firstSeen to widen to %v, got %v", t0.Add(-time.Hour), profile.FirstSeen)
		}
	})

	t.Run("exfiltration", func(t *testing.T) {
		t.Parallel()
		l := NewExfiltrationLedger(nil)

		var profile *ExfiltrationProfile
		for _, ts := range times {
			profile = l.Record(ExfiltrationAttempt{Origin: "collect.example", Timestamp: ts, Severity: model.SeverityMedium})
		}
		if !profile.LastSeen.Equal(t0.Add(3 * time.Hour)) {
			t.Errorf("lastSeen moved to %v", profile.LastSeen)
		}
		if !profile.FirstSeen.Equal(t0.Add(-time.Hour)) {
			t.Errorf("expected firstSeen %v, got %v", t0.Add(-time.Hour), profile.FirstSeen)
		}
	})
}

func TestHeaderFingerprintLedger(t *testing.T) {
	t.Parallel()

	l := NewHeaderFingerprintLedger(nil)
	l.Record("x.example", HeaderAttempt{Timestamp: t0, Methods: []string{"detailed-user-agent", "accept-header-analysis"}})
	profile := l.Record("x.example", HeaderAttempt{Timestamp: t0, Methods: []string{"accept-header-analysis"}})

	if profile.AttemptCount != 2 {
		t.Errorf("expected 2 attempts, got %d", profile.AttemptCount)
	}
	if profile.RiskScore != 20 {
		t.Errorf("expected risk 20, got %d", profile.RiskScore)
	}
	if l.Len() != 1 {
		t.Errorf("expected 1 origin, got %d", l.Len())
	}
}

func TestExfiltrationLedgerSeverityOnlyEscalates(t *testing.T) {
	t.Parallel()

	sequence := []model.Severity{
		model.SeverityMedium, model.SeverityHigh, model.SeverityLow, model.SeverityMedium,
	}
	l := NewExfiltrationLedger(nil)
	var profile *ExfiltrationProfile
	for i, sev := range sequence {
		profile = l.Record(ExfiltrationAttempt{
			Origin:    "x.example",
			Timestamp: t0.Add(time.Duration(i) * time.Second),
			DataTypes: []string{fmt.Sprintf("type-%d", i%2)},
			Severity:  sev,
		})
		if i >= 1 && profile.Severity != model.SeverityHigh {
			t.Errorf("after attempt %d expected HIGH, got %v", i, profile.Severity)
		}
	}

	if profile.TotalAttempts != 4 {
		t.Errorf("expected 4 attempts, got %d", profile.TotalAttempts)
	}
	if got := profile.DataTypes.Items(); !reflect.DeepEqual(got, []string{"type-0", "type-1"}) {
		t.Errorf("expected data types to be unioned, got %v", got)
	}
	if !profile.FirstSeen.Equal(t0) || !profile.LastSeen.Equal(t0.Add(3*time.Second)) {
		t.Errorf("unexpected first/last seen %v %v", profile.FirstSeen, profile.LastSeen)
	}
	if l.TotalAttempts() != 4 {
		t.Errorf("expected total 4, got %d", l.TotalAttempts())
	}
}

func TestBeaconingLedgerObserve(t *testing.T) {
	t.Parallel()

	observe := func(l *BeaconingLedger, offsets ...time.Duration) (Detection, bool) {
		var (
			d  Detection
			ok bool
		)
		for _, off := range offsets {
			d, ok = l.Observe("beacon.example.com", BeaconSample{Timestamp: t0.Add(off)}, t0.Add(off))
		}
		return d, ok
	}

	t.Run("regular intervals are detected", func(t *testing.T) {
		t.Parallel()
		l := NewBeaconingLedger(nil)
		d, ok := observe(l, 0, 5*time.Second, 10*time.Second)
		if !ok {
			t.Fatal("expected detection")
		}
		if d.Pattern.Interval != 5*time.Second {
			t.Errorf("expected 5s interval, got %v", d.Pattern.Interval)
		}
		if d.Pattern.Confidence != 1.0 {
			t.Errorf("expected confidence 1, got %v", d.Pattern.Confidence)
		}
		if !d.Pattern.DetectedAt.Equal(t0.Add(10 * time.Second)) {
			t.Errorf("unexpected detection time %v", d.Pattern.DetectedAt)
		}
		p, _ := l.Get("beacon.example.com")
		if !p.IsBeaconing {
			t.Error("expected profile to be flagged")
		}
	})

	t.Run("irregular intervals are not detected", func(t *testing.T) {
		t.Parallel()
		l := NewBeaconingLedger(nil)
		if _, ok := observe(l, 0, 5*time.Second, 20*time.Second); ok {
			t.Error("expected no detection")
		}
		p, _ := l.Get("beacon.example.com")
		if p.IsBeaconing {
			t.Error("expected profile not to be flagged")
		}
	})

	t.Run("interval bounds", func(t *testing.T) {
		t.Parallel()
		testCases := []struct {
			name     string
			interval time.Duration
			want     bool
		}{
			{"too fast", 500 * time.Millisecond, false},
			{"lower bound", time.Second, true},
			{"upper bound", 5 * time.Minute, true},
			{"too slow", 6 * time.Minute, false},
			{"same instant", 0, false},
		}
		for _, tc := range testCases {
			l := NewBeaconingLedger(nil)
			if _, ok := observe(l, 0, tc.interval, 2*tc.interval); ok != tc.want {
				t.Errorf("%s: detected = %v, expected %v", tc.name, ok, tc.want)
			}
		}
	})

	t.Run("tolerance boundary", func(t *testing.T) {
		t.Parallel()
		l := NewBeaconingLedger(nil)
		// intervals 9s and 11s: avg 10s, deviation exactly 0.2
		d, ok := observe(l, 0, 9*time.Second, 20*time.Second)
		if !ok {
			t.Fatal("expected detection at the tolerance boundary")
		}
		if d.Pattern.Confidence < 0.799 || d.Pattern.Confidence > 0.801 {
			t.Errorf("expected confidence 0.8, got %v", d.Pattern.Confidence)
		}
	})

	t.Run("flag is sticky and window is bounded", func(t *testing.T) {
		t.Parallel()
		l := NewBeaconingLedger(nil)
		observe(l, 0, 5*time.Second, 10*time.Second)
		// alternating 1s and 10s gaps never look regular
		offsets := make([]time.Duration, 0, 60)
		next := time.Minute
		for i := range 60 {
			if i%2 == 0 {
				next += time.Second
			} else {
				next += 10 * time.Second
			}
			offsets = append(offsets, next)
		}
		if _, ok := observe(l, offsets...); ok {
			t.Fatal("expected irregular traffic not to be detected")
		}
		p, _ := l.Get("beacon.example.com")
		if !p.IsBeaconing {
			t.Error("expected flag to stay set")
		}
		if len(p.Requests) != BeaconWindow {
			t.Errorf("expected window of %d, got %d", BeaconWindow, len(p.Requests))
		}
		if len(l.Beaconing()) != 1 {
			t.Errorf("expected 1 beaconing origin, got %d", len(l.Beaconing()))
		}
	})
}

func TestPriceLedger(t *testing.T) {
	t.Parallel()

	t.Run("burst of price requests", func(t *testing.T) {
		t.Parallel()
		l := NewPriceLedger(nil)
		var h *PriceHistory
		for i := range 4 {
			ts := t0.Add(time.Duration(i) * time.Second)
			h = l.Record("shop.example", 7, PricePoint{Timestamp: ts, URL: "https://shop.example/cart"}, ts)
			if i < 3 && h.PersonalizedPricing {
				t.Errorf("unexpected verdict after %d points", i+1)
			}
		}
		if !h.PersonalizedPricing {
			t.Error("expected personalized pricing after 4 recent points")
		}
		if l.PersonalizedCount() != 1 {
			t.Errorf("expected 1 flagged history, got %d", l.PersonalizedCount())
		}
	})

	t.Run("spread out requests", func(t *testing.T) {
		t.Parallel()
		l := NewPriceLedger(nil)
		var h *PriceHistory
		for i := range 5 {
			ts := t0.Add(time.Duration(i) * 3 * time.Minute)
			h = l.Record("shop.example", 1, PricePoint{Timestamp: ts}, ts)
		}
		if h.PersonalizedPricing {
			t.Error("expected no verdict when points are spread out")
		}
	})

	t.Run("histories are per tab and bounded", func(t *testing.T) {
		t.Parallel()
		l := NewPriceLedger(nil)
		for i := range MaxPricePoints + 1 {
			l.Record("shop.example", 1, PricePoint{Timestamp: t0}, t0.Add(time.Duration(i)*time.Hour))
		}
		l.Record("shop.example", 2, PricePoint{Timestamp: t0}, t0)
		if l.Len() != 2 {
			t.Errorf("expected 2 histories, got %d", l.Len())
		}
		h, ok := l.Get("shop.example", 1)
		if !ok || len(h.PricePoints) != MaxPricePoints {
			t.Errorf("expected %d points", MaxPricePoints)
		}
	})
}

func TestAlertLog(t *testing.T) {
	t.Parallel()

	l := NewAlertLog()
	for i := range MaxAlerts + 20 {
		sev := model.SeverityMedium
		if i%10 == 0 {
			sev = model.SeverityHigh
		}
		l.Append(model.Alert{ID: fmt.Sprint(i), Severity: sev})
	}

	if l.Len() != MaxAlerts {
		t.Fatalf("expected %d alerts, got %d", MaxAlerts, l.Len())
	}
	alerts := l.Alerts()
	if alerts[0].ID != "20" || alerts[len(alerts)-1].ID != "119" {
		t.Errorf("expected oldest alerts dropped first, got %s..%s", alerts[0].ID, alerts[len(alerts)-1].ID)
	}
	if got := l.Last(3); len(got) != 3 || got[2].ID != "119" {
		t.Errorf("unexpected last alerts %v", got)
	}
	if got := l.CountAtLeast(model.SeverityHigh); got != 10 {
		t.Errorf("expected 10 high alerts, got %d", got)
	}

	l.Restore(alerts[:5])
	if l.Len() != 5 {
		t.Errorf("expected 5 alerts after restore, got %d", l.Len())
	}
	l.Clear()
	if l.Len() != 0 || len(l.Alerts()) != 0 {
		t.Error("expected empty log after clear")
	}
}
