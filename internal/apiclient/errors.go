package apiclient

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable indicates the request kept failing with transport
	// errors or server errors until the retry budget ran out.
	ErrUnavailable = errors.New("service unavailable")

	// ErrRateLimited indicates the retry budget ran out while the server
	// kept answering 429. Transient 429s that eventually succeed are not
	// surfaced as errors, only hinted through OnRateLimit.
	ErrRateLimited = errors.New("rate limited")

	// ErrUnauthenticated indicates there is no usable credential: none is
	// stored, or a refresh attempt was rejected. The caller must re-run
	// the login flow; no automatic re-login is attempted.
	ErrUnauthenticated = errors.New("not authenticated, run login again")
)

// RejectedError is a non-retryable 4xx response (other than 401/429).
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request rejected (status %d)", e.Status)
	}
	return fmt.Sprintf("request rejected (status %d): %s", e.Status, e.Message)
}

// transientError marks a response or transport failure as retryable and
// remembers whether the last failure was rate limiting, so exhaustion can be
// classified after the retry loop gives up.
type transientError struct {
	cause       error
	rateLimited bool
}

func (e *transientError) Error() string { return e.cause.Error() }

func (e *transientError) Unwrap() error { return e.cause }
