// Package keychain provides secret storage backed by the host's native
// credential store.
//
// Secrets are addressed by a scope and a key:
//   - macOS: Keychain generic passwords, Service = scope, Account = key
//   - Linux: Secret Service items with attributes {service: scope, username: key}
//   - Windows: Credential Manager generic credentials named "scope:key"
//
// Other platforms fall back to MemoryStore, which does not persist.
package keychain

import "errors"

// DefaultScope is the service namespace all keyring-mcp secrets share.
const DefaultScope = "keyring-mcp"

// ErrNotFound is returned by Get when a secret does not exist in the store.
var ErrNotFound = errors.New("secret not found")

// ErrListUnavailable is returned by List when the backend can store and read
// items but cannot enumerate them here, such as a headless session with no
// reachable Secret Service.
var ErrListUnavailable = errors.New("secret enumeration unavailable")

// Store is the interface for secret storage operations.
//
// Set overwrites any existing value. Delete reports whether an entry existed.
// List returns keys only, in whatever order the backend produces them.
type Store interface {
	Set(scope, key, value string) error
	Get(scope, key string) (string, error)
	Delete(scope, key string) (bool, error)
	List(scope string) ([]string, error)
}
