package config

import (
	"fmt"
	"strings"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path to the field (e.g. "limits.requests_per_minute").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the formatted field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects all validation failures in a configuration.
type ValidationError struct {
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "configuration validation failed with %d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Validate checks the configuration and returns a ValidationError listing
// every failed rule, or nil when the configuration is valid.
func Validate(cfg *Config) error {
	var errs []FieldError

	if cfg.Server.ListenAddress == "" {
		errs = append(errs, FieldError{"server.listen_address", "must not be empty"})
	}

	if cfg.Limits.RequestsPerMinute < 0 {
		errs = append(errs, FieldError{"limits.requests_per_minute", "must not be negative"})
	}
	if cfg.Limits.RequestsPerHour < 0 {
		errs = append(errs, FieldError{"limits.requests_per_hour", "must not be negative"})
	}
	if cfg.Limits.DailyQuota < 0 {
		errs = append(errs, FieldError{"limits.daily_quota", "must not be negative"})
	}
	if cfg.Limits.MonthlyQuota < 0 {
		errs = append(errs, FieldError{"limits.monthly_quota", "must not be negative"})
	}

	if cfg.Budget.Daily < 0 {
		errs = append(errs, FieldError{"budget.daily", "must not be negative"})
	}
	if cfg.Budget.Monthly < 0 {
		errs = append(errs, FieldError{"budget.monthly", "must not be negative"})
	}
	if cfg.Budget.CostPerThousandChars < 0 {
		errs = append(errs, FieldError{"budget.cost_per_thousand_chars", "must not be negative"})
	}
	if cfg.Budget.WarningThreshold < 0 || cfg.Budget.WarningThreshold > 1 {
		errs = append(errs, FieldError{"budget.warning_threshold", "must be between 0 and 1"})
	}

	if cfg.Retry.MaxAttempts < 0 {
		errs = append(errs, FieldError{"retry.max_attempts", "must not be negative"})
	}
	if cfg.Retry.BaseDelay <= 0 {
		errs = append(errs, FieldError{"retry.base_delay", "must be positive"})
	}
	if cfg.Retry.MaxDelay < cfg.Retry.BaseDelay {
		errs = append(errs, FieldError{"retry.max_delay", "must be at least base_delay"})
	}
	if cfg.Retry.Multiplier < 1 {
		errs = append(errs, FieldError{"retry.multiplier", "must be at least 1"})
	}

	if cfg.Queue.MaxQueueSize <= 0 {
		errs = append(errs, FieldError{"queue.max_queue_size", "must be positive"})
	}
	if cfg.Queue.BatchSize <= 0 {
		errs = append(errs, FieldError{"queue.batch_size", "must be positive"})
	}
	if cfg.Queue.MaxConcurrency <= 0 {
		errs = append(errs, FieldError{"queue.max_concurrency", "must be positive"})
	}
	if cfg.Queue.PollInterval <= 0 {
		errs = append(errs, FieldError{"queue.poll_interval", "must be positive"})
	}

	switch cfg.Storage.Backend {
	case "memory":
	case "sqlite":
		if cfg.Storage.SQLite.Path == "" {
			errs = append(errs, FieldError{"storage.sqlite.path", "must not be empty"})
		}
	default:
		errs = append(errs, FieldError{"storage.backend",
			fmt.Sprintf("unknown backend %q, must be \"memory\" or \"sqlite\"", cfg.Storage.Backend)})
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level",
			fmt.Sprintf("unknown level %q", cfg.Telemetry.Logging.Level)})
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format",
			fmt.Sprintf("unknown format %q, must be \"json\" or \"text\"", cfg.Telemetry.Logging.Format)})
	}

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}
