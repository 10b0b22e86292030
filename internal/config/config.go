package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the optional config file inside the data directory.
const FileName = "config.yaml"

// Config holds all webshell configuration.
type Config struct {
	// Core settings
	AppName       string `yaml:"app_name"`
	InitialTarget string `yaml:"initial_target"`

	Window        WindowConfig        `yaml:"window"`
	Browser       BrowserConfig       `yaml:"browser"`
	Store         StoreConfig         `yaml:"store"`
	Registration  RegistrationConfig  `yaml:"registration"`
	Probe         ProbeConfig         `yaml:"probe"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// WindowConfig configures the shell window.
type WindowConfig struct {
	Title    string `yaml:"title"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
	Dark     bool   `yaml:"dark"`
	Maximize bool   `yaml:"maximize"` // applied when the window is shown at launch
}

// BrowserConfig configures the embedded browser surface.
type BrowserConfig struct {
	Bin               string   `yaml:"bin"`   // empty = let rod find or download Chromium
	Flags             []string `yaml:"flags"` // extra Chromium flags, "--name=value" or "--name"
	Headless          bool     `yaml:"headless"`
	NavigationTimeout string   `yaml:"navigation_timeout"`
}

// StoreConfig configures the persisted key/value store.
type StoreConfig struct {
	File         string `yaml:"file"`
	SyncInterval string `yaml:"sync_interval"` // "0" disables periodic cookie sync
}

// RegistrationConfig configures run-at-login registration.
type RegistrationConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Name            string `yaml:"name"`
	RecheckInterval string `yaml:"recheck_interval"`
	Watch           bool   `yaml:"watch"`
}

// ProbeConfig configures the startup connectivity check.
type ProbeConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Timeout string `yaml:"timeout"`
}

// NotificationsConfig configures desktop notifications.
type NotificationsConfig struct {
	AppName string `yaml:"app_name"`
	Icon    string `yaml:"icon"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"` // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"`
	JSONFormat bool            `yaml:"json_format"`
	Categories map[string]bool `yaml:"categories"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		AppName:       "WebviewBrowser",
		InitialTarget: "https://youtu.be/",

		Window: WindowConfig{
			Title:    "YouTube",
			Width:    1280,
			Height:   1024,
			Dark:     true,
			Maximize: true,
		},

		Browser: BrowserConfig{
			NavigationTimeout: "30s",
		},

		Store: StoreConfig{
			File:         "cookies.json",
			SyncInterval: "1m",
		},

		Registration: RegistrationConfig{
			Enabled:         true,
			Name:            "YouTube",
			RecheckInterval: "1h",
			Watch:           true,
		},

		Probe: ProbeConfig{
			Enabled: true,
			URL:     "https://www.google.com",
			Timeout: "5s",
		},

		Notifications: NotificationsConfig{
			AppName: "YouTube",
			Icon:    "trendsignite",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Validate rejects configurations the shell cannot start with.
func (c *Config) Validate() error {
	if c.AppName == "" {
		return fmt.Errorf("app_name must not be empty")
	}
	if filepath.Base(c.AppName) != c.AppName {
		return fmt.Errorf("app_name %q must not contain path separators", c.AppName)
	}
	if c.InitialTarget == "" {
		return fmt.Errorf("initial_target must not be empty")
	}
	if c.Store.File == "" {
		return fmt.Errorf("store.file must not be empty")
	}
	if c.Registration.Enabled && c.Registration.Name == "" {
		return fmt.Errorf("registration.name must not be empty when registration is enabled")
	}
	return nil
}

// GetNavigationTimeout returns the browser navigation timeout as a duration.
func (c *Config) GetNavigationTimeout() time.Duration {
	return parseDuration(c.Browser.NavigationTimeout, 30*time.Second)
}

// GetSyncInterval returns the cookie sync interval; zero disables periodic sync.
func (c *Config) GetSyncInterval() time.Duration {
	return parseDuration(c.Store.SyncInterval, time.Minute)
}

// GetRecheckInterval returns the registration re-check interval; zero disables it.
func (c *Config) GetRecheckInterval() time.Duration {
	return parseDuration(c.Registration.RecheckInterval, time.Hour)
}

// GetProbeTimeout returns the connectivity probe timeout.
func (c *Config) GetProbeTimeout() time.Duration {
	return parseDuration(c.Probe.Timeout, 5*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "0" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}
