package config

// File represents the structure of the .surveilscope configuration file.
// Every section is optional; missing values keep the defaults from NewConfig.
//
// Example configuration file:
//
//	settings:
//	  riskThreshold: 60
//	  customTrackers:
//	    - metrics.example.net
//	server:
//	  listen: 127.0.0.1:8787
//	nats:
//	  url: nats://127.0.0.1:4222
//	notifications:
//	  dedupe: true
type File struct {
	// Settings overrides individual detection options.
	Settings *SettingsPatch `yaml:"settings,omitempty"`

	// Server configures the HTTP API.
	Server ServerSection `yaml:"server,omitempty"`

	// NATS configures the optional message bus.
	NATS NATSSection `yaml:"nats,omitempty"`

	// Notifications configures the notification sink.
	Notifications NotificationSection `yaml:"notifications,omitempty"`
}

// ServerSection holds HTTP server options.
type ServerSection struct {
	Listen string `yaml:"listen,omitempty"`
}

// NATSSection holds message bus options.
type NATSSection struct {
	URL          string `yaml:"url,omitempty"`
	EventSubject string `yaml:"eventSubject,omitempty"`
	AlertSubject string `yaml:"alertSubject,omitempty"`
}

// NotificationSection holds notification sink options.
type NotificationSection struct {
	Dedupe *bool `yaml:"dedupe,omitempty"`
}

// Apply copies every value set in the file onto cfg.
// CLI flags are applied afterwards by the caller and win over the file.
func (f *File) Apply(cfg *Config) {
	if f == nil || cfg == nil {
		return
	}
	if f.Settings != nil {
		cfg.Settings = cfg.Settings.Merge(*f.Settings)
	}
	if f.Server.Listen != "" {
		cfg.ListenAddress = f.Server.Listen
	}
	if f.NATS.URL != "" {
		cfg.NATSURL = f.NATS.URL
	}
	if f.NATS.EventSubject != "" {
		cfg.EventSubject = f.NATS.EventSubject
	}
	if f.NATS.AlertSubject != "" {
		cfg.AlertSubject = f.NATS.AlertSubject
	}
	if f.Notifications.Dedupe != nil {
		cfg.DedupeNotifications = *f.Notifications.Dedupe
	}
}
