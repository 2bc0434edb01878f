package authflow

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/httplog/v3"
)

const callbackPath = "/callback"

// successPage is shown in the browser once the redirect has been captured.
const successPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Accomplish CLI</title>
<style>
body { font-family: -apple-system, "Segoe UI", Helvetica, Arial, sans-serif;
       max-width: 620px; margin: 28px auto; text-align: center; }
.box { border: 1px solid #e1e4e8; padding: 24px; margin: 28px; }
</style>
</head>
<body>
<div class="box">
<h1>Successfully authenticated Accomplish CLI</h1>
<p>You may now close this tab and return to the terminal.</p>
</div>
</body>
</html>
`

// Grant is the authorization code delivered by the browser redirect.
type Grant struct {
	Code  string
	State string
}

// Listener receives exactly one browser redirect carrying an authorization
// code, validated against a per-session CSRF state value, then shuts down.
type Listener struct {
	ln     net.Listener
	server *http.Server
	state  string

	resultCh   chan Grant
	serveErrCh chan error
	completed  atomic.Bool
	deliver    sync.Once
	closeOnce  sync.Once
}

// StartListener binds an ephemeral local port and begins serving the
// single-shot callback endpoint. The caller must Close the listener.
func StartListener(ctx context.Context) (*Listener, error) {
	state, err := randomState()
	if err != nil {
		return nil, fmt.Errorf("generating state: %w", err)
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("starting callback listener: %w", err)
	}

	l := &Listener{
		ln:         ln,
		state:      state,
		resultCh:   make(chan Grant, 1),
		serveErrCh: make(chan error, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+callbackPath, l.handleCallback)

	handler := applyMiddlewares(mux,
		httplog.RequestLogger(slog.Default(), &httplog.Options{
			Schema: httplog.SchemaECS.Concise(true),
			Level:  slog.LevelDebug,
		}),
		recovery,
	)

	l.server = &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.serveErrCh <- err
		}
	}()

	return l, nil
}

// URL is the redirect target to register with the authorization request.
func (l *Listener) URL() string {
	return fmt.Sprintf("http://%s%s", l.ln.Addr().String(), callbackPath)
}

// State is the per-session CSRF value embedded in the authorization request.
func (l *Listener) State() string {
	return l.state
}

// Wait blocks until the first valid redirect arrives, the timeout elapses
// (ErrTimedOut), or ctx is cancelled (ErrCancelled). The listener is torn
// down before Wait returns.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) (Grant, error) {
	defer l.Close()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return Grant{}, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
	case err := <-l.serveErrCh:
		return Grant{}, fmt.Errorf("callback server failed: %w", err)
	case <-timer.C:
		return Grant{}, ErrTimedOut
	case grant := <-l.resultCh:
		return grant, nil
	}
}

// Close tears down the listener socket. Safe to call more than once.
func (l *Listener) Close() {
	l.closeOnce.Do(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.server.Shutdown(shutdownCtx)
	})
}

func (l *Listener) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// A mismatched state never satisfies the awaiter: it protects against
	// cross-session redirect injection.
	if q.Get("state") != l.state {
		http.Error(w, "invalid state", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Error(w, "missing code", http.StatusBadRequest)
		return
	}

	// Single-shot: the first valid request wins, later ones are refused.
	if !l.completed.CompareAndSwap(false, true) {
		http.Error(w, "authorization already completed", http.StatusGone)
		return
	}

	l.deliver.Do(func() {
		l.resultCh <- Grant{Code: code, State: q.Get("state")}
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(successPage))
}

// recovery recovers from panics in the callback handler and returns HTTP 500.
func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recover() != nil {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// applyMiddlewares applies middlewares to a handler in the order they appear.
// The first middleware in the slice is the outermost (executes first).
func applyMiddlewares(h http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

func randomState() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
