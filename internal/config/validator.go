package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "telemetry.buffer_size")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidThemes returns the list of valid TUI themes
func ValidThemes() []string {
	return []string{"default", "dracula", "nord", "gruvbox", "monochrome"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateService()...)
	errors = append(errors, c.validateTelemetry()...)
	errors = append(errors, c.validateTUI()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePaths()...)

	return errors
}

func (c *Config) validateService() []ValidationError {
	var errors []ValidationError

	if err := checkURL(c.Service.BaseURL, "http", "https"); err != "" {
		errors = append(errors, ValidationError{
			Field:   "service.base_url",
			Value:   c.Service.BaseURL,
			Message: err,
		})
	}

	if err := checkURL(c.Service.TelemetryURL, "ws", "wss"); err != "" {
		errors = append(errors, ValidationError{
			Field:   "service.telemetry_url",
			Value:   c.Service.TelemetryURL,
			Message: err,
		})
	} else if !strings.Contains(c.Service.TelemetryURL, "{id}") {
		errors = append(errors, ValidationError{
			Field:   "service.telemetry_url",
			Value:   c.Service.TelemetryURL,
			Message: "must contain the {id} placeholder",
		})
	}

	if c.Service.RequestTimeoutMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "service.request_timeout_ms",
			Value:   c.Service.RequestTimeoutMs,
			Message: "must be positive",
		})
	}

	return errors
}

// checkURL returns a message describing why raw is unusable, or "".
func checkURL(raw string, schemes ...string) string {
	if raw == "" {
		return "must not be empty"
	}
	u, err := url.Parse(strings.ReplaceAll(raw, "{id}", "0"))
	if err != nil {
		return "is not a valid URL"
	}
	if !slices.Contains(schemes, u.Scheme) {
		return fmt.Sprintf("scheme must be one of: %s", strings.Join(schemes, ", "))
	}
	if u.Host == "" {
		return "must include a host"
	}
	return ""
}

func (c *Config) validateTelemetry() []ValidationError {
	var errors []ValidationError
	b := c.Telemetry.Backoff

	if c.Telemetry.BufferSize <= 0 {
		errors = append(errors, ValidationError{
			Field:   "telemetry.buffer_size",
			Value:   c.Telemetry.BufferSize,
			Message: "must be positive",
		})
	}

	if c.Telemetry.KeepaliveIntervalMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "telemetry.keepalive_interval_ms",
			Value:   c.Telemetry.KeepaliveIntervalMs,
			Message: "must not be negative (0 disables keepalive)",
		})
	}

	if b.InitialIntervalMs <= 0 {
		errors = append(errors, ValidationError{
			Field:   "telemetry.backoff.initial_interval_ms",
			Value:   b.InitialIntervalMs,
			Message: "must be positive",
		})
	}

	if b.MaxIntervalMs < b.InitialIntervalMs {
		errors = append(errors, ValidationError{
			Field:   "telemetry.backoff.max_interval_ms",
			Value:   b.MaxIntervalMs,
			Message: fmt.Sprintf("must be at least initial_interval_ms (%d)", b.InitialIntervalMs),
		})
	}

	if b.Multiplier < 1 {
		errors = append(errors, ValidationError{
			Field:   "telemetry.backoff.multiplier",
			Value:   b.Multiplier,
			Message: "must be at least 1",
		})
	}

	if b.RandomizationFactor < 0 || b.RandomizationFactor > 1 {
		errors = append(errors, ValidationError{
			Field:   "telemetry.backoff.randomization_factor",
			Value:   b.RandomizationFactor,
			Message: "must be between 0 and 1",
		})
	}

	return errors
}

func (c *Config) validateTUI() []ValidationError {
	var errors []ValidationError

	if c.TUI.Theme != "" && !slices.Contains(ValidThemes(), c.TUI.Theme) {
		errors = append(errors, ValidationError{
			Field:   "tui.theme",
			Value:   c.TUI.Theme,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidThemes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}

func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	if c.Paths.StateDir == "" {
		return nil
	}

	if strings.ContainsRune(c.Paths.StateDir, '\x00') {
		errors = append(errors, ValidationError{
			Field:   "paths.state_dir",
			Value:   c.Paths.StateDir,
			Message: "path contains invalid null character",
		})
	}

	const maxPathLength = 4096
	if len(c.Paths.StateDir) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   "paths.state_dir",
			Value:   c.Paths.StateDir,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}
