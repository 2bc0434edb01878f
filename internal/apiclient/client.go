package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/accomplish-dev/accomplish-cli/internal/credstore"
)

// Default retry policy. Applied per request, not per logical operation.
const (
	defaultMaxAttempts     = 4
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 10 * time.Second
	defaultTimeout         = 30 * time.Second
)

// Request describes one API call. Constructed per call, stateless.
type Request struct {
	Method       string
	Path         string
	Query        url.Values
	Body         any
	RequiresAuth bool
}

// Refresher exchanges a refresh token for a replacement credential.
// Implemented by the auth flow; the client never constructs credentials
// on its own.
type Refresher interface {
	Refresh(ctx context.Context, cred *credstore.Credential) (*credstore.Credential, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRefresher enables refresh-on-401 using the given Refresher.
func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

// WithMaxAttempts caps the retry loop at n attempts per request.
func WithMaxAttempts(n uint) Option {
	return func(c *Client) { c.maxAttempts = n }
}

// WithRetryIntervals overrides the backoff schedule bounds.
func WithRetryIntervals(initial, ceiling time.Duration) Option {
	return func(c *Client) {
		c.initialInterval = initial
		c.maxInterval = ceiling
	}
}

// WithOnRateLimit registers a hook invoked once per request on the first 429,
// with the wait the client is about to honor. Retries continue regardless.
func WithOnRateLimit(fn func(wait time.Duration)) Option {
	return func(c *Client) { c.onRateLimit = fn }
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// Client is the authenticated HTTP transport for the Accomplish API.
// It injects the active profile's bearer token, retries transient failures
// with jittered exponential backoff, honors Retry-After on 429, and performs
// a single-flight token refresh on 401.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	store   credstore.Store
	profile string

	refresher   Refresher
	onRateLimit func(wait time.Duration)
	userAgent   string

	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration

	// Active credential, read-shared by concurrent requests and replaced
	// wholesale after a refresh.
	cred atomic.Pointer[credstore.Credential]
	sf   singleflight.Group
}

// New creates a Client for the given base URL, reading credentials for
// profile from store.
func New(baseURL string, store credstore.Store, profile string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("missing credential store")
	}
	if profile == "" {
		return nil, fmt.Errorf("profile cannot be empty")
	}

	c := &Client{
		baseURL:         parsed,
		http:            &http.Client{Timeout: defaultTimeout},
		store:           store,
		profile:         profile,
		userAgent:       userAgent(),
		maxAttempts:     defaultMaxAttempts,
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Do sends the request, retrying per the client's policy, and decodes the
// JSON response into out when out is non-nil.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
	}

	// Per logical request: at most one refresh-and-replay, one rate-limit hint.
	refreshed := false
	hinted := false

	operation := func() ([]byte, error) {
		httpReq, err := c.newHTTPRequest(ctx, req, bodyBytes)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		// The credential this attempt sends; on 401 it identifies which
		// credential the server rejected.
		var attemptCred *credstore.Credential
		if req.RequiresAuth {
			attemptCred, err = c.authCredential(ctx)
			if err != nil {
				return nil, backoff.Permanent(err)
			}
			httpReq.Header.Set("Authorization", "Bearer "+attemptCred.AccessToken)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, &transientError{cause: err}
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &transientError{cause: fmt.Errorf("reading response: %w", err)}
		}

		switch {
		case resp.StatusCode < 300:
			return respBody, nil

		case resp.StatusCode == http.StatusUnauthorized && req.RequiresAuth:
			if refreshed {
				return nil, backoff.Permanent(ErrUnauthenticated)
			}
			refreshed = true
			if err := c.refreshCredential(ctx, attemptCred); err != nil {
				return nil, backoff.Permanent(err)
			}
			// Replay the original request immediately with the fresh token.
			return nil, &backoff.RetryAfterError{Duration: 0}

		case resp.StatusCode == http.StatusTooManyRequests:
			wait := retryAfter(resp)
			if !hinted {
				hinted = true
				if c.onRateLimit != nil {
					c.onRateLimit(wait)
				}
			}
			slog.DebugContext(ctx, "rate limited", "path", req.Path, "retry_after", wait)
			if wait > 0 {
				// Retry-After overrides the exponential schedule.
				return nil, &backoff.RetryAfterError{Duration: wait}
			}
			return nil, &transientError{cause: errors.New("http 429"), rateLimited: true}

		case resp.StatusCode >= 500:
			return nil, &transientError{cause: fmt.Errorf("http %d", resp.StatusCode)}

		default:
			return nil, backoff.Permanent(&RejectedError{
				Status:  resp.StatusCode,
				Message: errorMessage(respBody),
			})
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval

	respBody, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(c.maxAttempts),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.DebugContext(ctx, "retrying request",
				"method", req.Method, "path", req.Path, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return classify(err)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// Stream performs a single-attempt request and hands the response body to
// the caller, for server-push endpoints. The caller owns the ReadCloser.
// No retries: reconnect policy belongs to the consuming session.
func (c *Client) Stream(ctx context.Context, req Request) (io.ReadCloser, error) {
	httpReq, err := c.newHTTPRequest(ctx, req, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")
	if req.RequiresAuth {
		cred, err := c.authCredential(ctx)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+cred.AccessToken)
	}

	// The client's overall timeout covers request/response pairs; it would
	// cut a long-lived stream short, so streaming uses a copy without it.
	streamHTTP := *c.http
	streamHTTP.Timeout = 0

	resp, err := streamHTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, ErrUnauthenticated
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
		default:
			return nil, &RejectedError{Status: resp.StatusCode, Message: errorMessage(body)}
		}
	}
	return resp.Body, nil
}

func (c *Client) newHTTPRequest(ctx context.Context, req Request, body []byte) (*http.Request, error) {
	full := *c.baseURL
	full.Path = path.Join(full.Path, req.Path)
	if req.Query != nil {
		full.RawQuery = req.Query.Encode()
	}

	var payload io.Reader
	if body != nil {
		payload = bytes.NewReader(body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, full.String(), payload)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("X-Request-Id", uuid.NewString())
	return httpReq, nil
}

// credential returns the active credential, loading it from the store on
// first use. A missing credential surfaces as ErrUnauthenticated.
func (c *Client) credential(ctx context.Context) (*credstore.Credential, error) {
	if cred := c.cred.Load(); cred != nil {
		return cred, nil
	}

	v, err, _ := c.sf.Do("load:"+c.profile, func() (any, error) {
		if cred := c.cred.Load(); cred != nil {
			return cred, nil
		}
		cred, err := c.store.Load(ctx, c.profile)
		if err != nil {
			if errors.Is(err, credstore.ErrNotFound) {
				return nil, ErrUnauthenticated
			}
			return nil, fmt.Errorf("loading credential: %w", err)
		}
		c.cred.Store(cred)
		return cred, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*credstore.Credential), nil
}

// authCredential returns a credential fit to send. A credential past its
// recorded expiry would only earn a 401, so it is refreshed up front.
func (c *Client) authCredential(ctx context.Context) (*credstore.Credential, error) {
	cred, err := c.credential(ctx)
	if err != nil {
		return nil, err
	}
	if cred.Expired() && c.refresher != nil {
		if err := c.refreshCredential(ctx, cred); err != nil {
			return nil, err
		}
		cred = c.cred.Load()
	}
	return cred, nil
}

// refreshCredential performs a single-flight token refresh: concurrent 401s
// share one refresh call and all observe its result. The replacement
// credential is persisted before any request replays. rejected is the
// credential the failed attempt sent; if the active credential is already a
// different one, the refresh it needs has happened and none is issued.
func (c *Client) refreshCredential(ctx context.Context, rejected *credstore.Credential) error {
	_, err, _ := c.sf.Do("refresh:"+c.profile, func() (any, error) {
		current := c.cred.Load()
		if current != rejected && current != nil {
			return nil, nil
		}
		if c.refresher == nil || current == nil || current.RefreshToken == "" {
			return nil, ErrUnauthenticated
		}

		fresh, err := c.refresher.Refresh(ctx, current)
		if err != nil {
			slog.WarnContext(ctx, "token refresh rejected", "profile", c.profile, "error", err)
			return nil, fmt.Errorf("%w: refresh failed", ErrUnauthenticated)
		}
		if err := c.store.Save(ctx, c.profile, fresh); err != nil {
			return nil, fmt.Errorf("persisting refreshed credential: %w", err)
		}
		c.cred.Store(fresh)
		slog.DebugContext(ctx, "credential refreshed", "profile", c.profile)
		return nil, nil
	})
	return err
}

// classify maps a failed retry loop to the public error taxonomy.
func classify(err error) error {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected
	}
	if errors.Is(err, ErrUnauthenticated) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var transient *transientError
	if errors.As(err, &transient) && transient.rateLimited {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}
	var retryAfterErr *backoff.RetryAfterError
	if errors.As(err, &retryAfterErr) {
		// Retry budget ran out while honoring Retry-After waits.
		return fmt.Errorf("%w: retry budget exhausted", ErrRateLimited)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// retryAfter parses the Retry-After response header (delta-seconds form).
func retryAfter(resp *http.Response) time.Duration {
	raw := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if raw == "" {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// errorMessage extracts a human-readable message from an error response body.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if len(body) > 0 {
		_ = json.Unmarshal(body, &payload)
	}
	msg := strings.TrimSpace(payload.Error)
	if msg == "" {
		msg = strings.TrimSpace(payload.Message)
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	return msg
}
