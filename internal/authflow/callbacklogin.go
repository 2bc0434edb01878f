package authflow

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

const callbackWaitTimeout = 2 * time.Minute

// LoginWithCallback performs the redirect-capture variant of the login flow:
// instead of polling the token endpoint, the browser redirect lands on a
// local single-shot listener and the received authorization code is
// exchanged once for a token. PKCE protects the exchange; the listener's
// state value protects the redirect.
func (a *Authenticator) LoginWithCallback(ctx context.Context) (*oauth2.Token, error) {
	listener, err := StartListener(ctx)
	if err != nil {
		return nil, err
	}
	defer listener.Close()

	verifier := oauth2.GenerateVerifier()

	cfg := &oauth2.Config{
		ClientID:    a.clientID,
		RedirectURL: listener.URL(),
		Scopes:      []string{Scopes},
		Endpoint: oauth2.Endpoint{
			AuthURL:   a.endpoints.AuthorizationURL,
			TokenURL:  a.endpoints.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}

	authURL := cfg.AuthCodeURL(listener.State(), oauth2.S256ChallengeOption(verifier))

	fmt.Fprintf(a.out, "Open the following URL in your browser:\n%s\n", authURL)
	if err := a.openBrowser(authURL); err != nil {
		slog.DebugContext(ctx, "could not open browser", "error", err)
	}

	grant, err := listener.Wait(ctx, callbackWaitTimeout)
	if err != nil {
		return nil, err
	}

	// Token exchange happens exactly once, through the JSON-converting
	// transport the Accomplish token endpoint requires.
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: &jsonTokenTransport{base: baseTransport(a.http)},
	}
	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	tok, err := cfg.Exchange(exchangeCtx, grant.Code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("%w: token exchange failed: %v", ErrNetworkFailure, err)
	}
	return tok, nil
}

func baseTransport(hc *http.Client) http.RoundTripper {
	if hc != nil && hc.Transport != nil {
		return hc.Transport
	}
	return http.DefaultTransport
}
