package cli

import "fmt"

// ConfigError reports an invalid or unloadable configuration. Field names
// the offending config key when one is known.
type ConfigError struct {
	Field   string
	Message string
}

// NewConfigError builds a ConfigError. field may be empty when the
// failure is not tied to a single key.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Message
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// CommandError wraps a subcommand failure so the top level can report
// which command failed while callers still unwrap the cause.
type CommandError struct {
	Command string
	Err     error
}

// NewCommandError wraps err as a failure of the named subcommand.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{Command: command, Err: err}
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("sherpa %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
