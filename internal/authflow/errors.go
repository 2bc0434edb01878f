package authflow

import "errors"

var (
	// ErrProtocolViolation indicates a malformed provider response (missing
	// required device-authorization fields, unparseable token payload).
	// Always fatal, never retried: it signals incompatibility, not transience.
	ErrProtocolViolation = errors.New("authorization server protocol violation")

	// ErrNetworkFailure indicates polling gave up after its bounded
	// transport-error retry budget.
	ErrNetworkFailure = errors.New("network failure during authentication")

	// ErrAccessDenied indicates the user declined the authorization request.
	ErrAccessDenied = errors.New("access denied")

	// ErrExpired indicates the device authorization expired before the user
	// approved it.
	ErrExpired = errors.New("device authorization expired")

	// ErrCancelled indicates the login flow was interrupted by the user.
	ErrCancelled = errors.New("login cancelled")

	// ErrTimedOut indicates the callback listener's wait deadline elapsed
	// before a valid redirect arrived.
	ErrTimedOut = errors.New("timed out waiting for authorization callback")
)
