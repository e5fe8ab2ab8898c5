package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "surveilscope"

	// DefaultListenAddress binds the HTTP API to the loopback interface only.
	// Captured traffic describes the user's browsing and must not be exposed.
	DefaultListenAddress = "127.0.0.1:8787"

	// DefaultBatchSize is the number of capture files replayed concurrently.
	DefaultBatchSize = 4

	// DefaultEventSubject is the NATS subject the server ingests events from.
	DefaultEventSubject = "surveilscope.events"

	// DefaultAlertSubject is the NATS subject alerts are published on.
	DefaultAlertSubject = "surveilscope.alerts"

	// DefaultRequestCacheSize is how many request phases are remembered to
	// correlate headers and responses with the request that started them.
	DefaultRequestCacheSize = 1024

	// DefaultPruneInterval is how often the server applies data retention.
	DefaultPruneInterval = time.Hour

	// DefaultShutdownTimeout bounds graceful server shutdown.
	DefaultShutdownTimeout = 10 * time.Second
)

// Config holds all process-level options for surveilscope.
// It is populated from CLI flags and the optional config file and passed
// down explicitly; nothing reads it from global state.
type Config struct {
	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .surveilscope is searched in the current and home directories.
	ConfigFilePath string

	// Settings are the detection options handed to the coordinator.
	Settings Settings

	// Targets are the capture files to replay (analyze command).
	Targets []string

	// BatchSize is the number of capture files replayed concurrently.
	BatchSize int

	// JSONReport selects JSON report output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown report output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile is the output file path for the report. Empty means stdout.
	ReportFile string

	// DBDir is the directory holding the SQLite database.
	// Defaults to the XDG data directory (~/.local/share/surveilscope on Linux).
	DBDir string

	// SaveToDB stores analyze reports in the database for the history command.
	SaveToDB bool

	// ListenAddress is the host:port the HTTP API listens on.
	ListenAddress string

	// NATSURL enables the message bus when non-empty.
	NATSURL string

	// EventSubject is the NATS subject events are consumed from.
	EventSubject string

	// AlertSubject is the NATS subject alerts are published on.
	AlertSubject string

	// DedupeNotifications suppresses repeated notifications with the same text.
	DedupeNotifications bool

	// RequestCacheSize bounds the request correlation cache.
	RequestCacheSize int

	// PruneInterval is how often the server applies data retention.
	PruneInterval time.Duration
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Settings:            DefaultSettings(),
		BatchSize:           DefaultBatchSize,
		DBDir:               XDGDataDir(),
		ListenAddress:       DefaultListenAddress,
		EventSubject:        DefaultEventSubject,
		AlertSubject:        DefaultAlertSubject,
		DedupeNotifications: true,
		RequestCacheSize:    DefaultRequestCacheSize,
		PruneInterval:       DefaultPruneInterval,
	}
}

// XDGDataDir returns the XDG data directory for surveilscope.
// On Linux: ~/.local/share/surveilscope
// On macOS: ~/Library/Application Support/surveilscope
// On Windows: %LOCALAPPDATA%\surveilscope
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for surveilscope.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for surveilscope.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// Validate checks the options shared by every command.
// It returns the first problem found as a sentinel error.
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}
	if c.RequestCacheSize <= 0 {
		return ErrInvalidCacheSize
	}
	if c.PruneInterval < 0 {
		return ErrInvalidPruneInterval
	}
	if c.NATSURL != "" && (c.EventSubject == "" || c.AlertSubject == "") {
		return ErrMissingSubject
	}
	return c.Settings.Validate()
}

// ValidateAnalyze checks the options of the analyze command.
func (c *Config) ValidateAnalyze() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	return c.Validate()
}

// ValidateServe checks the options of the serve command.
func (c *Config) ValidateServe() error {
	if c.ListenAddress == "" {
		return ErrMissingListenAddress
	}
	return c.Validate()
}
