package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2"
)

// Scopes requested by the CLI.
const Scopes = "user:read,user:write," +
	"project:read,project:write," +
	"worklog:read,worklog:write," +
	"repo:read,repo:write"

// slow_down protocol step: the interval only ever grows, by this much.
// A var so tests can compress the timeline.
var slowDownStep = 5 * time.Second

const (
	// Ceiling for slow_down growth. The protocol leaves repeated slow_down
	// behavior unspecified, so growth is capped here.
	intervalCeiling = 30 * time.Second

	defaultPollInterval = 5 * time.Second
	maxTransportRetries = 3
)

// Endpoints locates the authorization server paths for one API base.
type Endpoints struct {
	DeviceAuthorizationURL string
	TokenURL               string
	AuthorizationURL       string
}

// EndpointsForBase derives the Accomplish auth endpoints from the API base URL.
func EndpointsForBase(baseURL string) Endpoints {
	base := strings.TrimRight(baseURL, "/")
	return Endpoints{
		DeviceAuthorizationURL: base + "/auth/device/code",
		TokenURL:               base + "/auth/device/token",
		AuthorizationURL:       base + "/auth/authorize",
	}
}

// DeviceAuthorization is the short-lived state of one in-progress login.
// Discarded on success, expiry, or denial.
type DeviceAuthorization struct {
	DeviceCode              string
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time
	Interval                time.Duration
}

type deviceCodeResponse struct {
	DeviceCode              string `json:"device_code"`
	UserCode                string `json:"user_code"`
	VerificationURI         string `json:"verification_uri"`
	VerificationURIComplete string `json:"verification_uri_complete,omitempty"`
	ExpiresIn               int    `json:"expires_in"`
	Interval                int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	Scope        string `json:"scope,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDesc    string `json:"error_description,omitempty"`
}

// AuthenticatorOption configures an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithHTTPClient sets the HTTP client used for auth endpoint calls.
func WithHTTPClient(hc *http.Client) AuthenticatorOption {
	return func(a *Authenticator) { a.http = hc }
}

// WithOutput redirects user-facing flow messages (defaults to stdout).
func WithOutput(out io.Writer) AuthenticatorOption {
	return func(a *Authenticator) { a.out = out }
}

// WithBrowserOpener overrides how verification URLs are opened.
// Pass a func returning an error to simulate environments without a browser.
func WithBrowserOpener(open func(url string) error) AuthenticatorOption {
	return func(a *Authenticator) { a.openBrowser = open }
}

// Authenticator orchestrates the OAuth device-authorization grant.
type Authenticator struct {
	http        *http.Client
	endpoints   Endpoints
	clientID    string
	out         io.Writer
	openBrowser func(url string) error
}

// NewAuthenticator creates an Authenticator for the given endpoints and
// public client id.
func NewAuthenticator(endpoints Endpoints, clientID string, opts ...AuthenticatorOption) (*Authenticator, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id cannot be empty")
	}
	a := &Authenticator{
		http:        &http.Client{Timeout: 30 * time.Second},
		endpoints:   endpoints,
		clientID:    clientID,
		out:         os.Stdout,
		openBrowser: OpenBrowser,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Begin requests a device authorization and presents the verification URI to
// the user. A browser is opened best-effort; the URI is always printed for
// manual use.
func (a *Authenticator) Begin(ctx context.Context) (*DeviceAuthorization, error) {
	payload := map[string]string{
		"client_id": a.clientID,
		"scope":     Scopes,
	}

	var resp deviceCodeResponse
	if err := a.postJSON(ctx, a.endpoints.DeviceAuthorizationURL, payload, &resp); err != nil {
		return nil, err
	}

	if resp.DeviceCode == "" || resp.UserCode == "" || resp.VerificationURI == "" ||
		resp.ExpiresIn <= 0 || resp.Interval <= 0 {
		return nil, fmt.Errorf("%w: device authorization response missing required fields", ErrProtocolViolation)
	}

	auth := &DeviceAuthorization{
		DeviceCode:              resp.DeviceCode,
		UserCode:                resp.UserCode,
		VerificationURI:         resp.VerificationURI,
		VerificationURIComplete: resp.VerificationURIComplete,
		ExpiresAt:               time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second),
		Interval:                time.Duration(resp.Interval) * time.Second,
	}

	fmt.Fprintf(a.out, "Visit %s and enter code: %s\n", auth.VerificationURI, auth.UserCode)

	target := auth.VerificationURIComplete
	if target == "" {
		target = auth.VerificationURI
	}
	if err := a.openBrowser(target); err != nil {
		// Non-fatal: the printed URI covers headless environments.
		slog.DebugContext(ctx, "could not open browser", "error", err)
	}

	return auth, nil
}

// Complete polls the token endpoint until the user approves, the
// authorization expires, or the flow is cancelled. slow_down responses grow
// the interval monotonically; transport errors are retried up to a bounded
// count without resetting the expiry clock.
func (a *Authenticator) Complete(ctx context.Context, auth *DeviceAuthorization) (*oauth2.Token, error) {
	interval := auth.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	netBackOff := backoff.NewExponentialBackOff()
	netBackOff.InitialInterval = interval
	netBackOff.MaxInterval = intervalCeiling
	netFailures := 0

	for {
		if time.Now().After(auth.ExpiresAt) {
			return nil, ErrExpired
		}

		wait := interval
		tok, err := a.pollToken(ctx, auth.DeviceCode)
		switch {
		case err == nil:
			return tok, nil

		case errors.Is(err, errAuthorizationPending):
			netFailures = 0
			netBackOff.Reset()

		case errors.Is(err, errSlowDown):
			netFailures = 0
			netBackOff.Reset()
			// Protocol requirement: never decrease, grow by a fixed step.
			interval = min(interval+slowDownStep, intervalCeiling)
			wait = interval
			slog.DebugContext(ctx, "authorization server requested slow down", "interval", interval)

		case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrProtocolViolation):
			return nil, err

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: %v", ErrCancelled, err)

		default:
			// Transport-level failure: bounded retries with backoff, and the
			// overall expiry clock keeps running.
			netFailures++
			if netFailures > maxTransportRetries {
				return nil, fmt.Errorf("%w: %v", ErrNetworkFailure, err)
			}
			wait = netBackOff.NextBackOff()
			slog.DebugContext(ctx, "device token poll failed", "attempt", netFailures, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-time.After(wait):
		}
	}
}

var (
	errAuthorizationPending = fmt.Errorf("authorization pending")
	errSlowDown             = fmt.Errorf("slow down")
)

// pollToken performs one token-endpoint poll for the device grant.
func (a *Authenticator) pollToken(ctx context.Context, deviceCode string) (*oauth2.Token, error) {
	payload := map[string]string{
		"client_id":   a.clientID,
		"device_code": deviceCode,
		"grant_type":  "urn:ietf:params:oauth:grant-type:device_code",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoints.TokenURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, fmt.Errorf("%w: unparseable token response: %v", ErrProtocolViolation, err)
	}

	if tokenResp.Error != "" {
		switch tokenResp.Error {
		case "authorization_pending":
			return nil, errAuthorizationPending
		case "slow_down":
			return nil, errSlowDown
		case "access_denied":
			return nil, ErrAccessDenied
		case "expired_token":
			return nil, ErrExpired
		default:
			return nil, fmt.Errorf("%w: token error %q: %s", ErrProtocolViolation, tokenResp.Error, tokenResp.ErrorDesc)
		}
	}
	if tokenResp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response missing access_token", ErrProtocolViolation)
	}

	return tokenFromResponse(&tokenResp), nil
}

// postJSON posts a JSON payload and decodes a JSON response, classifying
// transport and protocol failures.
func (a *Authenticator) postJSON(ctx context.Context, url string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return fmt.Errorf("%w: %v", ErrNetworkFailure, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: device authorization failed (%d): %s", ErrProtocolViolation, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: unparseable device authorization response: %v", ErrProtocolViolation, err)
	}
	return nil
}

func tokenFromResponse(resp *tokenResponse) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
		TokenType:    resp.TokenType,
	}
	if resp.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	if resp.Scope != "" {
		tok = tok.WithExtra(map[string]any{"scope": resp.Scope})
	}
	return tok
}
