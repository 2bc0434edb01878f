package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// KeyringStore keeps credentials in the OS-native secret service
// (macOS Keychain, Windows Credential Manager, Linux Secret Service).
// The profile name is used as the keyring account.
type KeyringStore struct {
	service string
}

// Compile-time check to ensure KeyringStore implements Store
var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a KeyringStore under the given service identifier.
func NewKeyringStore(service string) (*KeyringStore, error) {
	if service == "" {
		return nil, fmt.Errorf("service cannot be empty")
	}
	return &KeyringStore{service: service}, nil
}

// Load returns the credential stored in the keyring for the profile.
func (k *KeyringStore) Load(ctx context.Context, profile string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if profile == "" {
		return nil, fmt.Errorf("profile cannot be empty")
	}

	raw, err := keyring.Get(k.service, profile)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal([]byte(raw), &cred); err != nil {
		return nil, fmt.Errorf("corrupt keyring entry for profile %s: %w", profile, err)
	}
	if cred.AccessToken == "" {
		return nil, ErrNotFound
	}
	cred.Profile = profile
	return &cred, nil
}

// Save persists the credential to the keyring, overwriting any existing entry.
func (k *KeyringStore) Save(ctx context.Context, profile string, cred *Credential) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile == "" {
		return fmt.Errorf("profile cannot be empty")
	}
	if cred == nil || cred.AccessToken == "" {
		return fmt.Errorf("refusing to persist credential without access token")
	}

	stored := *cred
	stored.Profile = profile
	data, err := json.Marshal(&stored)
	if err != nil {
		return err
	}
	return keyring.Set(k.service, profile, string(data))
}

// Delete removes the keyring entry for the profile if present.
func (k *KeyringStore) Delete(ctx context.Context, profile string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile == "" {
		return fmt.Errorf("profile cannot be empty")
	}

	err := keyring.Delete(k.service, profile)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
