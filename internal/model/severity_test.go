package model

import (
	"encoding/json"
	"testing"
)

// TestSeverityString tests the String method of Severity.
func TestSeverityString(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityLow, "LOW"},
		{SeverityMedium, "MEDIUM"},
		{SeverityHigh, "HIGH"},
		{SeverityCritical, "CRITICAL"},
		{Severity(999), "UNKNOWN"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			t.Parallel()
			if tc.severity.String() != tc.expected {
				t.Errorf("got %q, expected %q", tc.severity.String(), tc.expected)
			}
		})
	}
}

// TestSeverityOrdering tests that severity levels are ordered correctly.
// Low < Medium < High < Critical
func TestSeverityOrdering(t *testing.T) {
	t.Parallel()

	if SeverityLow >= SeverityMedium {
		t.Error("expected Low < Medium")
	}
	if SeverityMedium >= SeverityHigh {
		t.Error("expected Medium < High")
	}
	if SeverityHigh >= SeverityCritical {
		t.Error("expected High < Critical")
	}
}

// TestParseSeverity tests parsing severity names.
func TestParseSeverity(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		input    string
		expected Severity
		wantErr  bool
	}{
		{"LOW", SeverityLow, false},
		{"medium", SeverityMedium, false},
		{" High ", SeverityHigh, false},
		{"CRITICAL", SeverityCritical, false},
		{"INFO", SeverityLow, true},
		{"", SeverityLow, true},
	}

	for _, tc := range testCases {
		t.Run(tc.input, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSeverity(tc.input)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ParseSeverity(%q) error = %v, wantErr %v", tc.input, err, tc.wantErr)
			}
			if got != tc.expected {
				t.Errorf("ParseSeverity(%q) = %v, expected %v", tc.input, got, tc.expected)
			}
		})
	}
}

// TestSeverityJSON tests that severities serialize as names.
func TestSeverityJSON(t *testing.T) {
	t.Parallel()

	t.Run("marshals as name", func(t *testing.T) {
		t.Parallel()
		data, err := json.Marshal(map[string]Severity{"s": SeverityHigh})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"s":"HIGH"}` {
			t.Errorf("got %s", data)
		}
	})

	t.Run("unmarshals name", func(t *testing.T) {
		t.Parallel()
		var v struct {
			S Severity `json:"s"`
		}
		if err := json.Unmarshal([]byte(`{"s":"critical"}`), &v); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if v.S != SeverityCritical {
			t.Errorf("got %v, expected CRITICAL", v.S)
		}
	})

	t.Run("rejects unknown name", func(t *testing.T) {
		t.Parallel()
		var v struct {
			S Severity `json:"s"`
		}
		if err := json.Unmarshal([]byte(`{"s":"bogus"}`), &v); err == nil {
			t.Error("expected error for unknown severity")
		}
	})

	t.Run("rejects out of range value", func(t *testing.T) {
		t.Parallel()
		if _, err := json.Marshal(Severity(42)); err == nil {
			t.Error("expected error for out of range severity")
		}
	})
}

// TestMaxSeverity tests that MaxSeverity never downgrades.
func TestMaxSeverity(t *testing.T) {
	t.Parallel()

	all := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}
	for _, a := range all {
		for _, b := range all {
			got := MaxSeverity(a, b)
			if got < a || got < b {
				t.Errorf("MaxSeverity(%v, %v) = %v", a, b, got)
			}
			if got != a && got != b {
				t.Errorf("MaxSeverity(%v, %v) = %v, expected one of the inputs", a, b, got)
			}
		}
	}
}
