// Package config loads the server configuration from an optional YAML file.
// Listen address, log level and key paths also have flag/env counterparts in
// cmd/server; the file mainly describes the watcher sources, which do not
// map well onto flags.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration document.
type Config struct {
	Server        ServerConfig  `yaml:"server"`
	Auth          AuthConfig    `yaml:"auth"`
	Watchers      []FileWatcher `yaml:"watchers"`
	System        SystemWatcher `yaml:"system"`
	Notifications Notifications `yaml:"notifications"`
}

// ServerConfig holds the gateway and HTTP tunables.
type ServerConfig struct {
	HTTPAddr          string        `yaml:"http_addr"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	TimeoutMultiple   int           `yaml:"timeout_multiple"`
	RateLimit         int           `yaml:"rate_limit"`
	RateWindow        time.Duration `yaml:"rate_window"`
}

// AuthConfig holds the token-verification settings. When PublicKeyPath is
// empty the server generates an ephemeral key pair, which verifies nothing
// issued elsewhere — fine for development, useless in production.
type AuthConfig struct {
	PublicKeyPath string `yaml:"public_key_path"`
	Issuer        string `yaml:"issuer"`
}

// FileWatcher describes one JSON snapshot file to poll.
type FileWatcher struct {
	// Name identifies the watcher in logs and metrics.
	Name string `yaml:"name"`

	// Room is the allow-listed room the watcher broadcasts into.
	Room string `yaml:"room"`

	// Path is the JSON snapshot file written by the producing subsystem.
	Path string `yaml:"path"`

	// Interval is the polling cadence. High-volatility sources (camera,
	// backup progress) should poll fast; coarse ones slower.
	Interval time.Duration `yaml:"interval"`
}

// SystemWatcher configures the built-in host metrics source.
type SystemWatcher struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	DiskPath string        `yaml:"disk_path"`
}

// Notifications configures the in-memory history ring.
type Notifications struct {
	HistorySize int `yaml:"history_size"`
}

// Default returns the configuration used when no file is given: the standard
// snapshot paths of the capture host and a 30s system sampler.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:          ":8080",
			HeartbeatInterval: 30 * time.Second,
			TimeoutMultiple:   3,
			RateLimit:         100,
			RateWindow:        time.Minute,
		},
		Auth: AuthConfig{
			Issuer: "snapstream",
		},
		Watchers: []FileWatcher{
			{Name: "dslr", Room: "dslr-monitoring", Path: "/var/run/snapstream/dslr_status.json", Interval: 2 * time.Second},
			{Name: "camera", Room: "camera-status", Path: "/var/run/snapstream/camera_status.json", Interval: 5 * time.Second},
			{Name: "backup", Room: "backup-status", Path: "/var/run/snapstream/backup_status.json", Interval: 2 * time.Second},
			{Name: "upload", Room: "upload-progress", Path: "/var/run/snapstream/upload_progress.json", Interval: 3 * time.Second},
		},
		System: SystemWatcher{
			Enabled:  true,
			Interval: 30 * time.Second,
			DiskPath: "/",
		},
		Notifications: Notifications{
			HistorySize: 100,
		},
	}
}

// Load reads and parses the YAML file at path, layering it over Default.
// Fields absent from the file keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for i, w := range c.Watchers {
		if w.Name == "" {
			return fmt.Errorf("config: watcher %d has no name", i)
		}
		if w.Room == "" || w.Path == "" {
			return fmt.Errorf("config: watcher %q needs both room and path", w.Name)
		}
		if w.Interval <= 0 {
			return fmt.Errorf("config: watcher %q has non-positive interval", w.Name)
		}
	}
	if c.System.Enabled && c.System.Interval <= 0 {
		return fmt.Errorf("config: system watcher has non-positive interval")
	}
	return nil
}
