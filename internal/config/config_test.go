package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestNewConfig verifies that NewConfig returns a Config with all expected default values.
// Changes to defaults must be intentional: these subtests fail when they drift.
func TestNewConfig(t *testing.T) {
	t.Parallel()

	cfg := NewConfig()

	t.Run("default ListenAddress is loopback", func(t *testing.T) {
		t.Parallel()
		if cfg.ListenAddress != "127.0.0.1:8787" {
			t.Errorf("expected ListenAddress to be '127.0.0.1:8787', got '%s'", cfg.ListenAddress)
		}
	})

	t.Run("default BatchSize is 4", func(t *testing.T) {
		t.Parallel()
		if cfg.BatchSize != 4 {
			t.Errorf("expected BatchSize to be 4, got %d", cfg.BatchSize)
		}
	})

	t.Run("default subjects", func(t *testing.T) {
		t.Parallel()
		if cfg.EventSubject != "surveilscope.events" || cfg.AlertSubject != "surveilscope.alerts" {
			t.Errorf("unexpected subjects %q, %q", cfg.EventSubject, cfg.AlertSubject)
		}
	})

	t.Run("NATS is disabled", func(t *testing.T) {
		t.Parallel()
		if cfg.NATSURL != "" {
			t.Errorf("expected empty NATSURL, got %q", cfg.NATSURL)
		}
	})

	t.Run("default PruneInterval is one hour", func(t *testing.T) {
		t.Parallel()
		if cfg.PruneInterval != time.Hour {
			t.Errorf("expected PruneInterval to be 1h, got %v", cfg.PruneInterval)
		}
	})

	t.Run("default DBDir is the XDG data directory", func(t *testing.T) {
		t.Parallel()
		if cfg.DBDir != XDGDataDir() {
			t.Errorf("expected DBDir %q, got %q", XDGDataDir(), cfg.DBDir)
		}
	})

	t.Run("default settings", func(t *testing.T) {
		t.Parallel()
		if !reflect.DeepEqual(cfg.Settings, DefaultSettings()) {
			t.Errorf("expected default settings, got %+v", cfg.Settings)
		}
	})
}

// TestDefaultSettings pins every detection default.
func TestDefaultSettings(t *testing.T) {
	t.Parallel()

	s := DefaultSettings()
	if !s.EnableTrackingDetection || !s.EnableFingerprintingDetection || !s.EnablePriceTracking ||
		!s.EnableNetworkAnalysis || !s.RealTimeAlerts {
		t.Errorf("expected every feature enabled, got %+v", s)
	}
	if s.RiskThreshold != 50 {
		t.Errorf("expected risk threshold 50, got %d", s.RiskThreshold)
	}
	if s.DataRetentionDays != 30 {
		t.Errorf("expected retention 30, got %d", s.DataRetentionDays)
	}
	if s.CustomTrackers == nil || len(s.CustomTrackers) != 0 {
		t.Errorf("expected empty non-nil custom trackers, got %#v", s.CustomTrackers)
	}
}

// TestConfigValidate tests the Validate method with various configurations.
// Each test case is designed to test one specific validation rule.
func TestConfigValidate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		modify  func(*Config)
		wantErr error
	}{
		{name: "defaults are valid", modify: func(*Config) {}},
		{name: "zero batch size", modify: func(c *Config) { c.BatchSize = 0 }, wantErr: ErrInvalidBatchSize},
		{name: "negative batch size", modify: func(c *Config) { c.BatchSize = -1 }, wantErr: ErrInvalidBatchSize},
		{
			name:    "json and markdown both enabled",
			modify:  func(c *Config) { c.JSONReport, c.MarkdownReport = true, true },
			wantErr: ErrConflictingReportFormats,
		},
		{name: "json only", modify: func(c *Config) { c.JSONReport = true }},
		{name: "zero cache size", modify: func(c *Config) { c.RequestCacheSize = 0 }, wantErr: ErrInvalidCacheSize},
		{name: "negative prune interval", modify: func(c *Config) { c.PruneInterval = -time.Second }, wantErr: ErrInvalidPruneInterval},
		{name: "zero prune interval", modify: func(c *Config) { c.PruneInterval = 0 }},
		{
			name:    "nats without event subject",
			modify:  func(c *Config) { c.NATSURL, c.EventSubject = "nats://127.0.0.1:4222", "" },
			wantErr: ErrMissingSubject,
		},
		{name: "risk threshold above 100", modify: func(c *Config) { c.Settings.RiskThreshold = 101 }, wantErr: ErrInvalidRiskThreshold},
		{name: "negative retention", modify: func(c *Config) { c.Settings.DataRetentionDays = -1 }, wantErr: ErrInvalidRetention},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := NewConfig()
			tc.modify(cfg)
			err := cfg.Validate()
			if tc.wantErr == nil {
				if err != nil {
					t.Errorf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}
}

// TestConfigValidateCommands tests the per-command validation helpers.
func TestConfigValidateCommands(t *testing.T) {
	t.Parallel()

	t.Run("analyze without targets returns ErrNoTarget", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		if err := cfg.ValidateAnalyze(); !errors.Is(err, ErrNoTarget) {
			t.Errorf("expected ErrNoTarget, got %v", err)
		}
	})

	t.Run("analyze with a target is valid", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.Targets = []string{"capture.jsonl"}
		if err := cfg.ValidateAnalyze(); err != nil {
			t.Errorf("expected nil, got %v", err)
		}
	})

	t.Run("serve without listen address", func(t *testing.T) {
		t.Parallel()
		cfg := NewConfig()
		cfg.ListenAddress = ""
		if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingListenAddress) {
			t.Errorf("expected ErrMissingListenAddress, got %v", err)
		}
	})
}

// TestSettingsMerge tests partial settings updates.
func TestSettingsMerge(t *testing.T) {
	t.Parallel()

	off := false
	threshold := 70

	t.Run("nil fields keep current values", func(t *testing.T) {
		t.Parallel()
		base := DefaultSettings()
		got := base.Merge(SettingsPatch{})
		if !reflect.DeepEqual(got, base) {
			t.Errorf("expected unchanged settings, got %+v", got)
		}
	})

	t.Run("set fields override", func(t *testing.T) {
		t.Parallel()
		got := DefaultSettings().Merge(SettingsPatch{EnablePriceTracking: &off, RiskThreshold: &threshold})
		if got.EnablePriceTracking {
			t.Error("expected price tracking disabled")
		}
		if got.RiskThreshold != 70 {
			t.Errorf("expected threshold 70, got %d", got.RiskThreshold)
		}
		if !got.EnableTrackingDetection {
			t.Error("expected tracking detection untouched")
		}
	})

	t.Run("custom trackers are unioned", func(t *testing.T) {
		t.Parallel()
		base := DefaultSettings()
		base.CustomTrackers = []string{"a.example"}
		got := base.Merge(SettingsPatch{CustomTrackers: []string{" b.example ", "a.example", ""}})
		want := []string{"a.example", "b.example"}
		if !reflect.DeepEqual(got.CustomTrackers, want) {
			t.Errorf("got %v, expected %v", got.CustomTrackers, want)
		}
		if len(base.CustomTrackers) != 1 {
			t.Error("merge must not mutate the receiver")
		}
	})
}

// TestLoadConfigFile tests YAML loading.
func TestLoadConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns ErrConfigNotFound for non-existent file", func(t *testing.T) {
		t.Parallel()

		cfg, err := LoadConfigFile("/nonexistent/path/.surveilscope")
		if !errors.Is(err, ErrConfigNotFound) {
			t.Fatalf("expected ErrConfigNotFound, got: %v", err)
		}
		if cfg != nil {
			t.Error("expected nil config when file not found")
		}
	})

	t.Run("loads valid YAML config", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".surveilscope")

		content := `settings:
  riskThreshold: 65
  enablePriceTracking: false
  customTrackers:
    - metrics.example.net
server:
  listen: 127.0.0.1:9999
nats:
  url: nats://127.0.0.1:4222
notifications:
  dedupe: false
`
		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		file, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		cfg := NewConfig()
		file.Apply(cfg)

		if cfg.Settings.RiskThreshold != 65 {
			t.Errorf("expected threshold 65, got %d", cfg.Settings.RiskThreshold)
		}
		if cfg.Settings.EnablePriceTracking {
			t.Error("expected price tracking disabled")
		}
		if !cfg.Settings.EnableNetworkAnalysis {
			t.Error("expected unset options to keep defaults")
		}
		if !reflect.DeepEqual(cfg.Settings.CustomTrackers, []string{"metrics.example.net"}) {
			t.Errorf("unexpected custom trackers %v", cfg.Settings.CustomTrackers)
		}
		if cfg.ListenAddress != "127.0.0.1:9999" {
			t.Errorf("unexpected listen address %q", cfg.ListenAddress)
		}
		if cfg.NATSURL != "nats://127.0.0.1:4222" {
			t.Errorf("unexpected NATS URL %q", cfg.NATSURL)
		}
		if cfg.EventSubject != DefaultEventSubject {
			t.Errorf("expected default event subject, got %q", cfg.EventSubject)
		}
		if cfg.DedupeNotifications {
			t.Error("expected dedupe disabled")
		}
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".surveilscope")

		if err := os.WriteFile(configPath, []byte(`invalid: yaml: content: [}`), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfigFile(configPath); err == nil {
			t.Error("expected error for invalid YAML")
		}
	})

	t.Run("template parses to the defaults", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), ".surveilscope")
		if err := WriteTemplate(configPath, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		file, err := LoadConfigFile(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		cfg := NewConfig()
		file.Apply(cfg)
		if !reflect.DeepEqual(cfg, NewConfig()) {
			t.Errorf("expected template to match defaults, got %+v", cfg)
		}
	})
}

// TestWriteTemplate tests the init template writer.
func TestWriteTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".surveilscope")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := WriteTemplate(path, false); !errors.Is(err, ErrConfigExists) {
		t.Errorf("expected ErrConfigExists, got %v", err)
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Errorf("expected forced overwrite to succeed, got %v", err)
	}

	data, err := os.ReadFile(path) //nolint:gosec // test file
	if err != nil {
		t.Fatalf("failed to read template: %v", err)
	}
	if !strings.Contains(string(data), "riskThreshold: 50") {
		t.Error("expected template to document riskThreshold")
	}
}

// TestFindConfigFile tests config file discovery.
func TestFindConfigFile(t *testing.T) {
	t.Parallel()

	t.Run("returns explicit path if exists", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("settings: {}"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		if got := FindConfigFile(configPath); got != configPath {
			t.Errorf("expected %q, got %q", configPath, got)
		}
	})

	t.Run("returns empty for non-existent explicit path", func(t *testing.T) {
		t.Parallel()
		if got := FindConfigFile("/nonexistent/config.yaml"); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})
}

// TestLoad tests the combined defaults-plus-file loader.
func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("explicit missing path is an error", func(t *testing.T) {
		t.Parallel()
		if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})

	t.Run("explicit file is applied", func(t *testing.T) {
		t.Parallel()
		configPath := filepath.Join(t.TempDir(), "custom.yaml")
		if err := os.WriteFile(configPath, []byte("server:\n  listen: 127.0.0.1:1234\n"), 0600); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}
		cfg, err := Load(configPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.ListenAddress != "127.0.0.1:1234" {
			t.Errorf("unexpected listen address %q", cfg.ListenAddress)
		}
		if cfg.ConfigFilePath != configPath {
			t.Errorf("expected ConfigFilePath %q, got %q", configPath, cfg.ConfigFilePath)
		}
	})
}

// TestXDGDirs tests that the XDG helpers end in the application name.
func TestXDGDirs(t *testing.T) {
	t.Parallel()

	for name, dir := range map[string]string{
		"data":   XDGDataDir(),
		"config": XDGConfigDir(),
		"cache":  XDGCacheDir(),
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if filepath.Base(dir) != AppName {
				t.Errorf("expected %s dir to end in %q, got %q", name, AppName, dir)
			}
		})
	}
}
