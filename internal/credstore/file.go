package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const credentialFileName = "credential.json"

// FileStore keeps one credential file per profile under a base directory,
// mirroring <dir>/<profile>/credential.json. Writes use temp file + rename
// for crash safety and set 0600 permissions.
type FileStore struct {
	dir string
}

// Compile-time check to ensure FileStore implements Store
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore rooted at dir, creating it with 0700
// permissions if it doesn't exist.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("credential directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(profile string) string {
	return filepath.Join(f.dir, profile, credentialFileName)
}

// Load reads the credential for the profile. Returns ErrNotFound if the file
// is missing, unreadable as a credential, or carries no access token.
func (f *FileStore) Load(ctx context.Context, profile string) (*Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if profile == "" {
		return nil, fmt.Errorf("profile cannot be empty")
	}

	path := f.path(profile)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.Mode().Perm() != 0600 {
		return nil, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", path, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("corrupt credential file %s: %w", path, err)
	}
	if cred.AccessToken == "" {
		return nil, ErrNotFound
	}
	cred.Profile = profile
	return &cred, nil
}

// Save atomically writes the credential using temp file + rename.
// Sets file permissions to 0600 (owner read/write only).
func (f *FileStore) Save(ctx context.Context, profile string, cred *Credential) error {
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

	dir := filepath.Dir(f.path(profile))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	// Secure temp file in same directory for atomic rename
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	// Cleanup deferred for all exit paths
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if _, err := tempFile.Write(data); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	// Atomic rename to final location
	return os.Rename(tempName, f.path(profile))
}

// Delete removes the credential file for the profile if present.
func (f *FileStore) Delete(ctx context.Context, profile string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if profile == "" {
		return fmt.Errorf("profile cannot be empty")
	}

	err := os.Remove(f.path(profile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
