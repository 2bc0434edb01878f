package commands

import (
	"errors"

	"github.com/urfave/cli/v3"

	"github.com/accomplish-dev/accomplish-cli/internal/apiclient"
	"github.com/accomplish-dev/accomplish-cli/internal/authflow"
)

// Exit codes, stable for scripting.
const (
	exitCodeAuth        = 2 // authentication failure: credential invalid, refresh failed, login denied
	exitCodeUnavailable = 3 // network/service failure after retries were exhausted
	exitCodeOperation   = 4 // the server rejected or failed the requested operation
)

// exitError maps the error taxonomy onto distinct process exit codes.
// Returns nil unchanged so actions can `return exitError(err)`.
func exitError(err error) error {
	if err == nil {
		return nil
	}

	var rejected *apiclient.RejectedError
	switch {
	case errors.Is(err, apiclient.ErrUnauthenticated),
		errors.Is(err, authflow.ErrAccessDenied),
		errors.Is(err, authflow.ErrExpired),
		errors.Is(err, authflow.ErrProtocolViolation):
		return cli.Exit(err.Error(), exitCodeAuth)

	case errors.Is(err, apiclient.ErrUnavailable),
		errors.Is(err, apiclient.ErrRateLimited),
		errors.Is(err, authflow.ErrNetworkFailure):
		return cli.Exit(err.Error(), exitCodeUnavailable)

	case errors.As(err, &rejected):
		return cli.Exit(err.Error(), exitCodeOperation)

	default:
		return err
	}
}

// operationFailed builds an exit for stream-level operation failures.
func operationFailed(reason string) error {
	return cli.Exit(reason, exitCodeOperation)
}
