// Package credstore provides persistent storage for per-profile credentials.
//
// Supports two storage backends with different security tradeoffs:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//
// Each profile holds at most one Credential; a credential is replaced
// wholesale on refresh and removed on logout.
package credstore
