package cli

import (
	"errors"
	"fmt"
	"testing"

	"mercator-hq/janitor/pkg/cleanup"
)

func TestConfigError(t *testing.T) {
	err := &ConfigError{
		Field:   "server.listen_address",
		Message: "missing required field",
	}

	expected := "config error in server.listen_address: missing required field"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}

	bare := NewConfigError("", "failed to load config")
	if bare.Error() != "config error: failed to load config" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestCommandError(t *testing.T) {
	underlyingErr := errors.New("underlying error")
	err := NewCommandError("serve", underlyingErr)

	expected := "command serve failed: underlying error"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
	if !errors.Is(err, underlyingErr) {
		t.Error("CommandError should unwrap to the underlying error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"generic", errors.New("boom"), ExitFailure},
		{"config", NewConfigError("storage.backend", "unknown"), ExitInvalid},
		{"validation", cleanup.NewValidationError("itemId", "is required"), ExitInvalid},
		{"not found", cleanup.NewNotFoundError("run", "r1"), ExitNotFound},
		{"conflict", cleanup.NewConflictError("r1", cleanup.ErrAlreadyActive), ExitConflict},
		{"handler missing", cleanup.NewHandlerMissingError("orphans"), ExitHandlerMissing},
		{"wrapped in command error", NewCommandError("start", cleanup.NewConflictError("r1", cleanup.ErrAlreadyActive)), ExitConflict},
		{"wrapped with fmt", fmt.Errorf("tick: %w", cleanup.NewNotFoundError("run", "r1")), ExitNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
