// Package apiclient is the authenticated HTTP transport for the Accomplish
// API.
//
// Every request goes through a per-request retry loop: transport failures and
// 5xx responses back off exponentially with jitter, 429 responses honor the
// server's Retry-After header, and a 401 triggers exactly one single-flight
// token refresh followed by one replay. Anything left after the retry budget
// maps onto a small error taxonomy (ErrUnavailable, ErrRateLimited,
// ErrUnauthenticated, RejectedError) that the CLI layer turns into exit
// codes.
package apiclient
