package authflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/accomplish-dev/accomplish-cli/internal/credstore"
)

// TokenRefresher exchanges refresh tokens for replacement credentials via
// the oauth2 package, with request bodies rewritten to the JSON encoding the
// Accomplish token endpoint expects.
type TokenRefresher struct {
	clientID string
	tokenURL string
	base     http.RoundTripper
}

// NewTokenRefresher creates a TokenRefresher for the given token endpoint.
func NewTokenRefresher(endpoints Endpoints, clientID string, opts ...RefresherOption) (*TokenRefresher, error) {
	if clientID == "" {
		return nil, fmt.Errorf("client id cannot be empty")
	}
	r := &TokenRefresher{
		clientID: clientID,
		tokenURL: endpoints.TokenURL,
		base:     http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// RefresherOption configures a TokenRefresher.
type RefresherOption func(*TokenRefresher)

// WithRefreshTransport sets a custom base transport for refresh requests.
func WithRefreshTransport(rt http.RoundTripper) RefresherOption {
	return func(r *TokenRefresher) { r.base = rt }
}

// Refresh exchanges the credential's refresh token for a replacement
// credential. The previous credential is not mutated.
func (r *TokenRefresher) Refresh(ctx context.Context, cred *credstore.Credential) (*credstore.Credential, error) {
	if cred == nil || cred.RefreshToken == "" {
		return nil, fmt.Errorf("no refresh token available")
	}

	cfg := &oauth2.Config{
		ClientID: r.clientID,
		Endpoint: oauth2.Endpoint{
			TokenURL:  r.tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &jsonTokenTransport{base: r.base},
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	// Deliberately omit the current access token so the source refreshes
	// unconditionally: a 401 already told us the access token is bad.
	src := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cred.RefreshToken})
	fresh, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	return CredentialFromToken(cred.Profile, fresh), nil
}

// CredentialFromToken converts an oauth2 token into the stored credential
// shape for a profile.
func CredentialFromToken(profile string, tok *oauth2.Token) *credstore.Credential {
	cred := &credstore.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
		Profile:      profile,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		cred.Scope = scope
	}
	return cred
}

// jsonTokenTransport converts the oauth2 package's form-encoded token
// requests to the JSON encoding the Accomplish token endpoint requires.
// It only ever sees token endpoint traffic.
type jsonTokenTransport struct {
	base http.RoundTripper
}

// Compile-time check that jsonTokenTransport implements http.RoundTripper.
var _ http.RoundTripper = (*jsonTokenTransport)(nil)

func (t *jsonTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// The body is consumed entirely and replaced, never forwarded.
	defer func() { _ = req.Body.Close() }()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	formData, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing form data: %w", err)
	}

	jsonData := make(map[string]string, len(formData))
	for key, values := range formData {
		jsonData[key] = values[0] // OAuth2 parameters are single-valued
	}

	jsonBody, err := json.Marshal(jsonData)
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON request: %w", err)
	}

	newReq := req.Clone(req.Context())
	newReq.Body = io.NopCloser(bytes.NewReader(jsonBody))
	newReq.ContentLength = int64(len(jsonBody))
	newReq.Header.Set("Content-Type", "application/json")

	return t.base.RoundTrip(newReq)
}
