package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete surveyctl configuration
type Config struct {
	Service   ServiceConfig   `mapstructure:"service" yaml:"service"`
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`
	TUI       TUIConfig       `mapstructure:"tui" yaml:"tui"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Paths     PathsConfig     `mapstructure:"paths" yaml:"paths"`
}

// ServiceConfig locates the survey service
type ServiceConfig struct {
	// BaseURL is the REST API root, e.g. "http://127.0.0.1:8000/api"
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// TelemetryURL is the stream URL template; "{id}" is replaced by the mission id
	TelemetryURL string `mapstructure:"telemetry_url" yaml:"telemetry_url"`
	// RequestTimeoutMs bounds every REST request (default: 10000)
	RequestTimeoutMs int `mapstructure:"request_timeout_ms" yaml:"request_timeout_ms"`
}

// TelemetryConfig controls the telemetry stream
type TelemetryConfig struct {
	// BufferSize is the capacity of the event channel handed to the session
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size"`
	// KeepaliveIntervalMs is how often the stream is pinged. A connection
	// that answers nothing for two intervals is dropped. 0 disables pings.
	KeepaliveIntervalMs int           `mapstructure:"keepalive_interval_ms" yaml:"keepalive_interval_ms"`
	Backoff             BackoffConfig `mapstructure:"backoff" yaml:"backoff"`
}

// BackoffConfig shapes the reconnect delay after the stream drops
type BackoffConfig struct {
	InitialIntervalMs int `mapstructure:"initial_interval_ms" yaml:"initial_interval_ms"`
	MaxIntervalMs     int `mapstructure:"max_interval_ms" yaml:"max_interval_ms"`
	// Multiplier grows the delay after each failed attempt (must be >= 1)
	Multiplier float64 `mapstructure:"multiplier" yaml:"multiplier"`
	// RandomizationFactor spreads delays by +/- this fraction (0 to 1)
	RandomizationFactor float64 `mapstructure:"randomization_factor" yaml:"randomization_factor"`
}

// TUIConfig controls the terminal UI
type TUIConfig struct {
	// Theme is the color theme: "default", "dracula", "nord", "gruvbox" or "monochrome"
	Theme string `mapstructure:"theme" yaml:"theme"`
	// ShowWaypoints lists the planned waypoints under the mission details
	ShowWaypoints bool `mapstructure:"show_waypoints" yaml:"show_waypoints"`
}

// LoggingConfig controls debug logging
type LoggingConfig struct {
	// Enabled controls whether logs are written at all (default: true)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Level is "debug", "info", "warn" or "error" (default: "info")
	Level string `mapstructure:"level" yaml:"level"`
	// MaxSizeMB is the size at which the log file is rotated (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	// MaxBackups is the number of rotated files kept (default: 3)
	MaxBackups int `mapstructure:"max_backups" yaml:"max_backups"`
	// Compress gzips rotated files (default: false)
	Compress bool `mapstructure:"compress" yaml:"compress"`
}

// PathsConfig controls where surveyctl stores data
type PathsConfig struct {
	// StateDir holds the log file. Empty means $XDG_STATE_HOME/surveyctl.
	// Supports ~ for home directory expansion.
	StateDir string `mapstructure:"state_dir" yaml:"state_dir"`
}

// ResolveStateDir returns the state directory with defaults and ~ applied.
func (p *PathsConfig) ResolveStateDir() string {
	path := p.StateDir
	if path == "" {
		if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
			return filepath.Join(xdg, "surveyctl")
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return ".surveyctl"
		}
		return filepath.Join(home, ".local", "state", "surveyctl")
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}
	return path
}

// LogFile returns the path `watch` logs to.
func (p *PathsConfig) LogFile() string {
	return filepath.Join(p.ResolveStateDir(), "surveyctl.log")
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BaseURL:          "http://127.0.0.1:8000/api",
			TelemetryURL:     "ws://127.0.0.1:8000/ws/missions/{id}",
			RequestTimeoutMs: 10000,
		},
		Telemetry: TelemetryConfig{
			BufferSize:          64,
			KeepaliveIntervalMs: 15000,
			Backoff: BackoffConfig{
				InitialIntervalMs:   500,
				MaxIntervalMs:       30000,
				Multiplier:          2.0,
				RandomizationFactor: 0.2,
			},
		},
		TUI: TUIConfig{
			Theme:         "default",
			ShowWaypoints: false,
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			Compress:   false,
		},
		Paths: PathsConfig{
			StateDir: "",
		},
	}
}

// RequestTimeout returns the REST request timeout as a time.Duration
func (c *ServiceConfig) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

// TelemetryURLFor expands the stream URL template for a mission.
func (c *ServiceConfig) TelemetryURLFor(missionID string) string {
	return strings.ReplaceAll(c.TelemetryURL, "{id}", missionID)
}

// KeepaliveInterval returns the stream ping interval as a time.Duration
func (c *TelemetryConfig) KeepaliveInterval() time.Duration {
	return time.Duration(c.KeepaliveIntervalMs) * time.Millisecond
}

// InitialInterval returns the first reconnect delay as a time.Duration
func (c *BackoffConfig) InitialInterval() time.Duration {
	return time.Duration(c.InitialIntervalMs) * time.Millisecond
}

// MaxInterval returns the reconnect delay cap as a time.Duration
func (c *BackoffConfig) MaxInterval() time.Duration {
	return time.Duration(c.MaxIntervalMs) * time.Millisecond
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Service defaults
	viper.SetDefault("service.base_url", defaults.Service.BaseURL)
	viper.SetDefault("service.telemetry_url", defaults.Service.TelemetryURL)
	viper.SetDefault("service.request_timeout_ms", defaults.Service.RequestTimeoutMs)

	// Telemetry defaults
	viper.SetDefault("telemetry.buffer_size", defaults.Telemetry.BufferSize)
	viper.SetDefault("telemetry.keepalive_interval_ms", defaults.Telemetry.KeepaliveIntervalMs)
	viper.SetDefault("telemetry.backoff.initial_interval_ms", defaults.Telemetry.Backoff.InitialIntervalMs)
	viper.SetDefault("telemetry.backoff.max_interval_ms", defaults.Telemetry.Backoff.MaxIntervalMs)
	viper.SetDefault("telemetry.backoff.multiplier", defaults.Telemetry.Backoff.Multiplier)
	viper.SetDefault("telemetry.backoff.randomization_factor", defaults.Telemetry.Backoff.RandomizationFactor)

	// TUI defaults
	viper.SetDefault("tui.theme", defaults.TUI.Theme)
	viper.SetDefault("tui.show_waypoints", defaults.TUI.ShowWaypoints)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	viper.SetDefault("logging.compress", defaults.Logging.Compress)

	// Paths defaults
	viper.SetDefault("paths.state_dir", defaults.Paths.StateDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults when the
// loaded configuration is invalid.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "surveyctl")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".surveyctl"
	}
	return filepath.Join(home, ".config", "surveyctl")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
