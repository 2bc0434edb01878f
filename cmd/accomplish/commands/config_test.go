package commands

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/accomplish-dev/accomplish-cli/internal/app"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func noEnv() []string { return nil }

func TestLoadConfigSelectsProfileSection(t *testing.T) {
	path := writeConfigFile(t, `
[default]
[default.api]
base_url = "https://accomplish.dev"
client_id = "default-client"

[prod]
log_level = "debug"
[prod.api]
base_url = "https://prod.accomplish.dev"
client_id = "prod-client"
[prod.credentials]
storage = "keyring"
`)

	cfg, err := loadConfig(path, nil, noEnv)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Profile != "default" || cfg.API.ClientID != "default-client" {
		t.Errorf("default profile config = %+v", cfg)
	}
	if cfg.Credentials.Storage != app.CredentialStorageTypeFile {
		t.Errorf("Storage = %q, want file default", cfg.Credentials.Storage)
	}
}

func TestLoadConfigForProfile(t *testing.T) {
	path := writeConfigFile(t, `
[default.api]
client_id = "default-client"

[prod]
log_level = "debug"
[prod.api]
base_url = "https://prod.accomplish.dev"
client_id = "prod-client"
[prod.credentials]
storage = "keyring"
keyring_service = "accomplish-prod"
`)

	cfg, err := loadConfigForProfile(path, "prod", nil, noEnv)
	if err != nil {
		t.Fatalf("loadConfigForProfile: %v", err)
	}
	if cfg.Profile != "prod" || cfg.API.ClientID != "prod-client" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.API.BaseURL != "https://prod.accomplish.dev" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.Credentials.Storage != app.CredentialStorageTypeKeyring ||
		cfg.Credentials.KeyringService != "accomplish-prod" {
		t.Errorf("Credentials = %+v", cfg.Credentials)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
}

func TestLoadConfigEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
[default.api]
base_url = "https://accomplish.dev"
client_id = "from-file"
`)

	cfg, err := loadConfig(path, nil, func() []string {
		return []string{
			"ACCOMPLISH_API__CLIENT_ID=from-env",
			"ACCOMPLISH_HTTP__TIMEOUT=10s",
		}
	})
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.API.ClientID != "from-env" {
		t.Errorf("ClientID = %q, want env to win over file", cfg.API.ClientID)
	}
	if cfg.HTTP.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v", cfg.HTTP.Timeout)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.toml"), nil, noEnv); err == nil {
		t.Fatal("explicit missing config file accepted")
	}

	// Without an explicit path, a missing default file falls back cleanly.
	cfg, err := loadConfig("", nil, noEnv)
	if err != nil {
		t.Fatalf("loadConfig without file: %v", err)
	}
	if cfg.API.BaseURL != app.DefaultConfigAPIBaseURL {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.ClientID != app.DefaultConfigClientID {
		t.Errorf("ClientID = %q", cfg.API.ClientID)
	}
	if cfg.LogLevel != app.DefaultConfigLogLevel {
		t.Errorf("LogLevel = %v, want %v", cfg.LogLevel, app.DefaultConfigLogLevel)
	}
}

func TestLoadConfigInvalidLogFormat(t *testing.T) {
	path := writeConfigFile(t, `
[default]
log_format = "yaml"
`)
	if _, err := loadConfig(path, nil, noEnv); err == nil {
		t.Fatal("invalid log format accepted")
	}
}
