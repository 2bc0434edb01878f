package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/accomplish-dev/accomplish-cli/internal/api"
	"github.com/accomplish-dev/accomplish-cli/internal/apiclient"
	"github.com/accomplish-dev/accomplish-cli/internal/authflow"
	"github.com/accomplish-dev/accomplish-cli/internal/credstore"
	"github.com/accomplish-dev/accomplish-cli/internal/stream"
)

// App wires one profile's configuration into the services the commands use.
// Construction performs no I/O; credentials are loaded on first use.
type App struct {
	cfg    *Config
	store  credstore.Store
	client *apiclient.Client
	api    *api.Client
}

// New creates an App from validated configuration.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	settings := newSettings(opts)

	store, err := cfg.Credentials.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to create credential store: %w", err)
	}

	endpoints := authflow.EndpointsForBase(cfg.API.BaseURL)
	refresher, err := authflow.NewTokenRefresher(endpoints, cfg.API.ClientID)
	if err != nil {
		return nil, fmt.Errorf("failed to create token refresher: %w", err)
	}

	clientOpts := []apiclient.Option{
		apiclient.WithHTTPClient(&http.Client{Timeout: cfg.HTTP.Timeout}),
		apiclient.WithRefresher(refresher),
		apiclient.WithMaxAttempts(uint(cfg.HTTP.MaxAttempts)),
	}
	if settings.onRateLimit != nil {
		clientOpts = append(clientOpts, apiclient.WithOnRateLimit(settings.onRateLimit))
	}

	client, err := apiclient.New(cfg.API.BaseURL, store, cfg.Profile, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	return &App{
		cfg:    cfg,
		store:  store,
		client: client,
		api:    api.NewClient(client),
	}, nil
}

// Option adjusts App construction.
type Option func(*settings)

type settings struct {
	onRateLimit func(wait time.Duration)
}

func newSettings(opts []Option) *settings {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithRateLimitHook surfaces rate-limit hints (first 429 per request) to the
// CLI layer.
func WithRateLimitHook(fn func(wait time.Duration)) Option {
	return func(s *settings) { s.onRateLimit = fn }
}

// Config returns the active configuration.
func (a *App) Config() *Config {
	return a.cfg
}

// Store returns the credential store for the active profile.
func (a *App) Store() credstore.Store {
	return a.store
}

// API returns the typed endpoint client.
func (a *App) API() *api.Client {
	return a.api
}

// Authenticator builds the device-flow authenticator for the configured API.
func (a *App) Authenticator(opts ...authflow.AuthenticatorOption) (*authflow.Authenticator, error) {
	return authflow.NewAuthenticator(
		authflow.EndpointsForBase(a.cfg.API.BaseURL),
		a.cfg.API.ClientID,
		opts...,
	)
}

// RecapSession creates a streaming session observing recap operations.
func (a *App) RecapSession() *stream.Session {
	return stream.NewSession(a.client, api.RecapStreamRequest, api.RecapStatusRequest)
}
