package cli

import (
	"errors"
	"fmt"

	"mercator-hq/janitor/pkg/cleanup"
)

// Process exit codes.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitInvalid        = 2
	ExitNotFound       = 3
	ExitConflict       = 4
	ExitHandlerMissing = 5
)

// ConfigError represents an error in configuration.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config error: %s", e.Message)
	}
	return fmt.Sprintf("config error in %s: %s", e.Field, e.Message)
}

// CommandError represents an error from a command execution.
type CommandError struct {
	Command string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command %s failed: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Message: message,
	}
}

// NewCommandError creates a new CommandError.
func NewCommandError(command string, err error) *CommandError {
	return &CommandError{
		Command: command,
		Err:     err,
	}
}

// ExitCode returns the process exit code for err.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var (
		cfgErr  *ConfigError
		missing *cleanup.HandlerMissingError
	)
	switch {
	case errors.As(err, &cfgErr), cleanup.IsValidation(err):
		return ExitInvalid
	case cleanup.IsNotFound(err):
		return ExitNotFound
	case cleanup.IsConflict(err):
		return ExitConflict
	case errors.As(err, &missing):
		return ExitHandlerMissing
	default:
		return ExitFailure
	}
}
