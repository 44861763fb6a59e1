// Package tokenstore provides persistent storage for the JSON documents the
// client keeps between runs: the client settings and the OAuth token set.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: Local filesystem storage with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Env: Read-only environment variable access (requires external secret management)
//
// Refreshing tokens requires writable storage (file or keyring). Env storage
// suits scripted runs that only ever read a token minted elsewhere.
package tokenstore
