package credstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no credential is stored for the requested profile.
// Loading an empty or unusable credential also reports ErrNotFound so that
// callers treat both cases as "log in again".
var ErrNotFound = errors.New("credential not found")

// Credential is the stored authentication state for one profile.
type Credential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scope        string    `json:"scope,omitempty"`
	ExpiresAt    time.Time `json:"expires_at,omitzero"`
	Profile      string    `json:"profile"`
}

// Expired reports whether the access token is past its expiry.
// Credentials without a recorded expiry never report expired.
func (c *Credential) Expired() bool {
	return !c.ExpiresAt.IsZero() && time.Now().After(c.ExpiresAt)
}

// Store reads and writes credentials to persistent storage.
type Store interface {
	// Load returns the credential for the profile. Returns ErrNotFound if
	// none is stored or the stored credential has an empty access token.
	Load(ctx context.Context, profile string) (*Credential, error)

	// Save persists the credential for the profile, replacing any existing
	// one. Credentials with an empty access token are rejected.
	Save(ctx context.Context, profile string, cred *Credential) error

	// Delete removes the credential for the profile. Deleting a profile
	// with no stored credential is not an error.
	Delete(ctx context.Context, profile string) error
}
