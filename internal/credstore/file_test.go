package credstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	want := &Credential{
		AccessToken:  "at-123",
		RefreshToken: "rt-456",
		TokenType:    "bearer",
		Scope:        "worklog:read worklog:write",
		ExpiresAt:    time.Now().Add(time.Hour).Truncate(time.Second),
	}
	if err := store.Save(ctx, "default", want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "default")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.AccessToken != want.AccessToken ||
		got.RefreshToken != want.RefreshToken ||
		got.TokenType != want.TokenType ||
		got.Scope != want.Scope ||
		!got.ExpiresAt.Equal(want.ExpiresAt) {
		t.Errorf("round trip mismatch: got %+v want %+v", got, want)
	}
	if got.Profile != "default" {
		t.Errorf("Profile = %q, want %q", got.Profile, "default")
	}
}

func TestFileStoreLoadMissingProfile(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, err := store.Load(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load missing profile: err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreDeleteThenLoad(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Save(ctx, "default", &Credential{AccessToken: "at"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(ctx, "default"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(ctx, "default"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after delete: err = %v, want ErrNotFound", err)
	}

	// Deleting again is a no-op.
	if err := store.Delete(ctx, "default"); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestFileStoreRejectsEmptyAccessToken(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Save(context.Background(), "default", &Credential{RefreshToken: "rt"}); err == nil {
		t.Error("Save with empty access token succeeded, want error")
	}
}

func TestFileStoreEmptyTokenOnDiskIsNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	path := filepath.Join(dir, "default", credentialFileName)
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"access_token":""}`), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(context.Background(), "default"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load empty token: err = %v, want ErrNotFound", err)
	}
}

func TestFileStoreRejectsInsecurePermissions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Save(ctx, "default", &Credential{AccessToken: "at"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path := filepath.Join(dir, "default", credentialFileName)
	if err := os.Chmod(path, 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := store.Load(ctx, "default"); err == nil {
		t.Error("Load with 0644 permissions succeeded, want error")
	}
}

func TestFileStoreSavePermissions(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Save(ctx, "default", &Credential{AccessToken: "at"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "default", credentialFileName))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credential file permissions = %04o, want 0600", perm)
	}
}

func TestFileStoreProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := store.Save(ctx, "default", &Credential{AccessToken: "at-default"}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "prod", &Credential{AccessToken: "at-prod"}); err != nil {
		t.Fatal(err)
	}

	cred, err := store.Load(ctx, "prod")
	if err != nil {
		t.Fatalf("Load prod: %v", err)
	}
	if cred.AccessToken != "at-prod" {
		t.Errorf("prod access token = %q, want %q", cred.AccessToken, "at-prod")
	}

	if err := store.Delete(ctx, "prod"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx, "default"); err != nil {
		t.Errorf("default profile affected by prod delete: %v", err)
	}
}

func TestCredentialExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{"no recorded expiry", time.Time{}, false},
		{"future expiry", time.Now().Add(time.Hour), false},
		{"past expiry", time.Now().Add(-time.Minute), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := &Credential{AccessToken: "at", ExpiresAt: tt.expiresAt}
			if got := cred.Expired(); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
