package main

import (
	"bytes"
	"strings"
	"testing"
)

// TestBuildInfo tests that version details never come back empty.
func TestBuildInfo(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		get  func() string
	}{
		{name: "version", get: getVersion},
		{name: "commit", get: getCommit},
		{name: "date", get: getDate},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if tc.get() == "" {
				t.Errorf("%s returned empty string", tc.name)
			}
		})
	}
}

// TestVcsSettingMissing tests that unknown build settings are empty.
func TestVcsSettingMissing(t *testing.T) {
	t.Parallel()

	if got := vcsSetting("no.such.setting"); got != "" {
		t.Errorf("expected empty value, got %q", got)
	}
}

// TestVersionCmd tests the version command output.
func TestVersionCmd(t *testing.T) {
	t.Parallel()

	cmd := NewVersionCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(nil)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "surveilscope version") {
		t.Errorf("unexpected output %q", out.String())
	}
}
