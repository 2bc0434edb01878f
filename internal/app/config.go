package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/accomplish-dev/accomplish-cli/internal/credstore"
)

// LogFormat represents the logging output format.
type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
	LogFormatOTel LogFormat = "otel"
)

// CredentialStorageType represents the supported credential backends.
type CredentialStorageType string

const (
	CredentialStorageTypeFile    CredentialStorageType = "file"
	CredentialStorageTypeKeyring CredentialStorageType = "keyring"
)

// Default configuration values
const (
	DefaultConfigLogLevel       = slog.LevelInfo
	DefaultConfigLogFormat      = LogFormatText
	DefaultConfigProfile        = "default"
	DefaultConfigAPIBaseURL     = "https://accomplish.dev"
	DefaultConfigClientID       = "90w0AXnlNgnh2XBJdexYjw"
	DefaultConfigStorage        = CredentialStorageTypeFile
	DefaultConfigKeyringService = "accomplish-cli"
	DefaultConfigHTTPTimeout    = 30 * time.Second
	DefaultConfigMaxAttempts    = 4
)

// APIConfig holds the Accomplish API endpoints and client identity.
type APIConfig struct {
	BaseURL  string `json:"base_url" validate:"required,url"`
	ClientID string `json:"client_id" validate:"required"`
}

// CredentialsConfig describes where credentials are persisted.
type CredentialsConfig struct {
	Storage CredentialStorageType `json:"storage" validate:"required,oneof=file keyring"`

	// Storage-specific settings (mutually exclusive based on Storage type)
	Dir            string `json:"dir,omitempty"`             // For file storage: credentials directory
	KeyringService string `json:"keyring_service,omitempty"` // For keyring storage: service name
}

// NewStore creates a credential Store from the credentials configuration.
func (c *CredentialsConfig) NewStore() (credstore.Store, error) {
	switch c.Storage {
	case CredentialStorageTypeFile:
		return credstore.NewFileStore(c.Dir)
	case CredentialStorageTypeKeyring:
		return credstore.NewKeyringStore(c.KeyringService)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
}

// HTTPConfig holds transport tuning for API calls.
type HTTPConfig struct {
	Timeout     time.Duration `json:"timeout"`
	MaxAttempts int           `json:"max_attempts" validate:"omitempty,min=1,max=10"`
}

// Config holds the application's configuration for one profile.
type Config struct {
	// LogLevel for logging output. The slog.Level zero value is Info,
	// which is also the documented default.
	LogLevel    slog.Level        `json:"log_level"`
	LogFormat   LogFormat         `json:"log_format" validate:"oneof=text json otel"`
	Profile     string            `json:"profile"`
	API         APIConfig         `json:"api"`
	Credentials CredentialsConfig `json:"credentials"`
	HTTP        HTTPConfig        `json:"http"`
}

// Default creates a new Config with default values applied.
func Default() (*Config, error) {
	cfg := &Config{}
	if err := cfg.ApplyDefaults(); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}
	return cfg, nil
}

// ApplyDefaults fills unset config fields with sensible defaults.
func (c *Config) ApplyDefaults() error {
	if c.LogFormat == "" {
		c.LogFormat = DefaultConfigLogFormat
	}
	if c.Profile == "" {
		c.Profile = DefaultConfigProfile
	}
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultConfigAPIBaseURL
	}
	if c.API.ClientID == "" {
		c.API.ClientID = DefaultConfigClientID
	}
	if c.Credentials.Storage == "" {
		c.Credentials.Storage = DefaultConfigStorage
	}
	if c.HTTP.Timeout == 0 {
		c.HTTP.Timeout = DefaultConfigHTTPTimeout
	}
	if c.HTTP.MaxAttempts == 0 {
		c.HTTP.MaxAttempts = DefaultConfigMaxAttempts
	}

	// Dynamic defaults based on storage type
	switch c.Credentials.Storage {
	case CredentialStorageTypeFile:
		if c.Credentials.Dir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return fmt.Errorf("credentials.dir required (auto-detect failed: %w)", err)
			}
			c.Credentials.Dir = filepath.Join(home, ".accomplish", "credentials")
		}
	case CredentialStorageTypeKeyring:
		if c.Credentials.KeyringService == "" {
			c.Credentials.KeyringService = DefaultConfigKeyringService
		}
	}

	return nil
}

// Validate validates the configuration using struct tags and enum values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Credentials.Storage {
	case CredentialStorageTypeFile:
		if c.Credentials.Dir == "" {
			return errors.New("dir required for file storage")
		}
	case CredentialStorageTypeKeyring:
		if c.Credentials.KeyringService == "" {
			return errors.New("keyring_service required for keyring storage")
		}
	}

	return nil
}
