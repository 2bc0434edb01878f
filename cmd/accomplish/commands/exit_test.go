package commands

import (
	"errors"
	"fmt"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/accomplish-dev/accomplish-cli/internal/apiclient"
	"github.com/accomplish-dev/accomplish-cli/internal/authflow"
)

func TestExitErrorMapsTaxonomy(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unauthenticated", apiclient.ErrUnauthenticated, exitCodeAuth},
		{"access denied", authflow.ErrAccessDenied, exitCodeAuth},
		{"expired", authflow.ErrExpired, exitCodeAuth},
		{"protocol violation", authflow.ErrProtocolViolation, exitCodeAuth},
		{"wrapped unauthenticated", fmt.Errorf("status: %w", apiclient.ErrUnauthenticated), exitCodeAuth},
		{"unavailable", apiclient.ErrUnavailable, exitCodeUnavailable},
		{"rate limited", apiclient.ErrRateLimited, exitCodeUnavailable},
		{"network failure", authflow.ErrNetworkFailure, exitCodeUnavailable},
		{"rejected", &apiclient.RejectedError{Status: 422, Message: "bad entry"}, exitCodeOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := exitError(tt.err)
			var coder cli.ExitCoder
			if !errors.As(err, &coder) {
				t.Fatalf("exitError(%v) = %v, want cli.ExitCoder", tt.err, err)
			}
			if coder.ExitCode() != tt.code {
				t.Fatalf("exit code = %d, want %d", coder.ExitCode(), tt.code)
			}
		})
	}
}

func TestExitErrorPassesThroughUnknown(t *testing.T) {
	plain := errors.New("something else")
	if got := exitError(plain); got != plain {
		t.Fatalf("exitError(plain) = %v, want the error unchanged", got)
	}
	if got := exitError(nil); got != nil {
		t.Fatalf("exitError(nil) = %v, want nil", got)
	}
}

func TestOperationFailedCode(t *testing.T) {
	err := operationFailed("recap generation failed")
	var coder cli.ExitCoder
	if !errors.As(err, &coder) {
		t.Fatalf("operationFailed = %v, want cli.ExitCoder", err)
	}
	if coder.ExitCode() != exitCodeOperation {
		t.Fatalf("exit code = %d, want %d", coder.ExitCode(), exitCodeOperation)
	}
}
