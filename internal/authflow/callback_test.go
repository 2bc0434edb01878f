package authflow

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"
)

func startTestListener(t *testing.T) *Listener {
	t.Helper()
	l, err := StartListener(context.Background())
	if err != nil {
		t.Fatalf("StartListener: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

// redirect simulates the browser hitting the callback with the given query
// parameters and returns status and body.
func redirect(t *testing.T, l *Listener, params url.Values) (int, string) {
	t.Helper()
	resp, err := http.Get(l.URL() + "?" + params.Encode())
	if err != nil {
		t.Fatalf("GET callback: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestCallbackDeliversFirstValidGrant(t *testing.T) {
	l := startTestListener(t)

	grantCh := make(chan Grant, 1)
	errCh := make(chan error, 1)
	go func() {
		g, err := l.Wait(context.Background(), 5*time.Second)
		grantCh <- g
		errCh <- err
	}()

	status, body := redirect(t, l, url.Values{
		"code":  {"authz-code-1"},
		"state": {l.State()},
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d, want 200", status)
	}
	if !strings.Contains(body, "Successfully authenticated") {
		t.Errorf("body missing success page: %q", body)
	}

	select {
	case g := <-grantCh:
		if err := <-errCh; err != nil {
			t.Fatalf("Wait: %v", err)
		}
		if g.Code != "authz-code-1" {
			t.Errorf("Code = %q", g.Code)
		}
		if g.State != l.State() {
			t.Errorf("State = %q, want %q", g.State, l.State())
		}
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after valid redirect")
	}
}

func TestCallbackRejectsMismatchedState(t *testing.T) {
	l := startTestListener(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// With only an invalid redirect arriving, the awaiter must stay
		// unsatisfied until the timeout.
		if _, err := l.Wait(context.Background(), 200*time.Millisecond); !errors.Is(err, ErrTimedOut) {
			t.Errorf("Wait err = %v, want ErrTimedOut", err)
		}
	}()

	status, _ := redirect(t, l, url.Values{
		"code":  {"authz-code-1"},
		"state": {"forged-state"},
	})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}

	<-done
}

func TestCallbackRejectsMissingCode(t *testing.T) {
	l := startTestListener(t)

	status, _ := redirect(t, l, url.Values{"state": {l.State()}})
	if status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestCallbackRefusesSecondRequest(t *testing.T) {
	l := startTestListener(t)

	params := url.Values{"code": {"authz-code-1"}, "state": {l.State()}}
	if status, _ := redirect(t, l, params); status != http.StatusOK {
		t.Fatalf("first redirect status = %d, want 200", status)
	}

	params.Set("code", "authz-code-2")
	if status, _ := redirect(t, l, params); status != http.StatusGone {
		t.Errorf("second redirect status = %d, want 410", status)
	}

	// The delivered grant is still the first one.
	g, err := l.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if g.Code != "authz-code-1" {
		t.Errorf("Code = %q, want the first grant", g.Code)
	}
}

func TestWaitTimesOut(t *testing.T) {
	l := startTestListener(t)

	start := time.Now()
	_, err := l.Wait(context.Background(), 50*time.Millisecond)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("err = %v, want ErrTimedOut", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("Wait returned after %v, before the timeout", elapsed)
	}
}

func TestWaitCancellation(t *testing.T) {
	l := startTestListener(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := l.Wait(ctx, 5*time.Second)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestListenerURLIsLoopback(t *testing.T) {
	l := startTestListener(t)

	u, err := url.Parse(l.URL())
	if err != nil {
		t.Fatalf("parsing %q: %v", l.URL(), err)
	}
	if u.Hostname() != "127.0.0.1" {
		t.Errorf("host = %q, want 127.0.0.1", u.Hostname())
	}
	if u.Path != "/callback" {
		t.Errorf("path = %q, want /callback", u.Path)
	}
	if l.State() == "" {
		t.Error("State is empty")
	}
}
