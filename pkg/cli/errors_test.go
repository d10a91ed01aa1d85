package cli

import (
	"errors"
	"fmt"
	"testing"
)

func TestConfigError(t *testing.T) {
	err := NewConfigError("policy.mix_file", "missing required field")

	expected := "config error in policy.mix_file: missing required field"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestCommandError(t *testing.T) {
	inner := errors.New("parcel truncated")
	err := NewCommandError("decode", inner)

	if err.Error() != "command decode failed: parcel truncated" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, inner) {
		t.Error("CommandError does not unwrap to its cause")
	}
}

func TestExitError(t *testing.T) {
	inner := errors.New("2 findings")
	err := NewExitError(ExitFindings, inner)

	if err.Error() != "2 findings" || !errors.Is(err, inner) {
		t.Errorf("ExitError = %v", err)
	}
	if got := (&ExitError{Code: 4}).Error(); got != "exit status 4" {
		t.Errorf("Error() = %q", got)
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"plain", errors.New("boom"), ExitFailure},
		{"config", NewConfigError("output", "bad"), ExitUsage},
		{"wrapped config", fmt.Errorf("load: %w", NewConfigError("output", "bad")), ExitUsage},
		{"exit error", NewExitError(ExitFindings, nil), ExitFindings},
		{"wrapped exit error", NewCommandError("lint", NewExitError(ExitFindings, errors.New("x"))), ExitFindings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
